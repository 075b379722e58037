package blink

import "time"

// Event is one debounced blink of one eye, from the frame the signal rose
// to the frame it fell.
type Event struct {
	Eye   Eye           `json:"eye"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	// Detections is the number of frames the classifier fired during the event.
	Detections int `json:"detections"`
}

// Duration returns how long the blink signal stayed asserted.
func (e Event) Duration() time.Duration {
	return e.End - e.Start
}

// EventRecorder turns a stream of FrameStates into rising edges and closed
// Events for both eyes.
type EventRecorder struct {
	left  *Event
	right *Event
}

// Record consumes one frame. It returns the eyes whose signal rose on this
// frame and the events that closed on it.
func (r *EventRecorder) Record(fs FrameState) (rose []Eye, closed []Event) {
	for _, eye := range []Eye{EyeLeft, EyeRight} {
		st := fs.Eye(eye)
		open := r.slot(eye)

		switch {
		case st.Blinking && *open == nil:
			*open = &Event{Eye: eye, Start: fs.At}
			rose = append(rose, eye)
		case !st.Blinking && *open != nil:
			ev := **open
			ev.End = fs.At
			closed = append(closed, ev)
			*open = nil
		}

		if *open != nil && st.Detected {
			(*open).Detections++
		}
	}
	return rose, closed
}

// Open returns the event in progress for eye, if any.
func (r *EventRecorder) Open(eye Eye) (Event, bool) {
	open := r.slot(eye)
	if *open == nil {
		return Event{}, false
	}
	return **open, true
}

// Flush closes every open event at now and returns them.
func (r *EventRecorder) Flush(now time.Duration) []Event {
	var closed []Event
	for _, eye := range []Eye{EyeLeft, EyeRight} {
		open := r.slot(eye)
		if *open == nil {
			continue
		}
		ev := **open
		ev.End = now
		closed = append(closed, ev)
		*open = nil
	}
	return closed
}

func (r *EventRecorder) slot(eye Eye) **Event {
	if eye == EyeRight {
		return &r.right
	}
	return &r.left
}

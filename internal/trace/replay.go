package trace

import (
	"github.com/ayusman/palak/internal/blink"
)

// Replay feeds samples through a fresh FaceTracker and returns the blink
// events found, in the order they closed. A missing face clears both eyes'
// history and closes any open event. Events still open after the last
// sample are closed at its timestamp. fn, if non-nil, is called after every
// sample.
func Replay(samples []Sample, cfg blink.Config, fn func(Sample, blink.FrameState)) ([]blink.Event, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracker := blink.NewFaceTracker(cfg, nil)
	var rec blink.EventRecorder
	var events []blink.Event

	for _, s := range samples {
		var fs blink.FrameState
		if s.Missing {
			tracker.Reset()
			events = append(events, rec.Flush(s.At)...)
			fs = blink.FrameState{At: s.At}
		} else {
			fs = tracker.ObserveAt(s.Left, s.Right, s.At)
			_, closed := rec.Record(fs)
			events = append(events, closed...)
		}

		if fn != nil {
			fn(s, fs)
		}
	}

	if n := len(samples); n > 0 {
		events = append(events, rec.Flush(samples[n-1].At)...)
	}

	return events, nil
}

// Dip is a run of frames where one or both eyes read a reduced lid distance.
type Dip struct {
	// Start is the first frame of the dip.
	Start int
	// Len is the number of frames the dip lasts.
	Len int
	// Depth is the lid distance during the dip.
	Depth float64
	// Eye limits the dip to one eye. Empty means both.
	Eye blink.Eye
}

// Synthetic builds a trace of frames samples at fps with a constant baseline
// lid distance, overlaid with dips. A negative frame count gives an empty
// trace.
func Synthetic(frames int, fps float64, baseline float64, dips ...Dip) []Sample {
	frames = max(frames, 0)
	samples := make([]Sample, frames)
	for i := range samples {
		samples[i] = Sample{
			Frame: i,
			At:    blink.FrameTime(i, fps),
			Left:  baseline,
			Right: baseline,
		}
	}

	for _, d := range dips {
		for i := d.Start; i < d.Start+d.Len && i < frames; i++ {
			if i < 0 {
				continue
			}
			if d.Eye != blink.EyeRight {
				samples[i].Left = d.Depth
			}
			if d.Eye != blink.EyeLeft {
				samples[i].Right = d.Depth
			}
		}
	}

	return samples
}

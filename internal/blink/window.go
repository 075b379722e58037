// Package blink classifies per-frame eyelid gap measurements into a debounced
// per-eye "is blinking" signal.
//
// The pipeline for one eye is: Window (last 13 measurements) -> Classifier
// (middle third dips below both outer thirds) -> Hold (keeps the signal
// asserted for a fixed duration after each detection). EyeTracker composes the
// three, and FaceTracker runs two independent EyeTrackers side by side.
//
// Nothing in this package spawns goroutines, sleeps or takes locks. Time is
// passed in explicitly as a time.Duration offset on a monotonic clock.
package blink

// WindowSize is the number of frames held by a Window.
// At 30 FPS this is roughly 433ms of history.
const WindowSize = 13

// SegmentSize is the number of samples averaged in each compared segment.
const SegmentSize = 3

// Segment is a half-open index range [Start, End) within a full Window,
// where index 0 is the oldest sample.
type Segment struct {
	Start int
	End   int
}

// Len returns the number of samples covered by the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// The three compared segments of a full window. Indices 3-4 and 8-9 are
// guard bands that are never averaged.
var (
	earlySegment = Segment{Start: 0, End: SegmentSize}
	midSegment   = Segment{Start: 5, End: 5 + SegmentSize}
	lateSegment  = Segment{Start: WindowSize - SegmentSize, End: WindowSize}
)

// Window is a fixed-capacity FIFO of eyelid gap measurements backed by a ring
// buffer. Once full, each Push overwrites the oldest value.
// The zero value is an empty window ready for use.
type Window struct {
	buf   [WindowSize]float64
	head  int // index of the oldest value
	count int
}

// Push appends a measurement, evicting the oldest one when the window is full.
// Any value is accepted, including zero and negative gaps.
func (w *Window) Push(v float64) {
	if w.count < WindowSize {
		w.buf[(w.head+w.count)%WindowSize] = v
		w.count++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % WindowSize
}

// IsFull reports whether the window holds WindowSize measurements.
func (w *Window) IsFull() bool {
	return w.count == WindowSize
}

// Len returns the number of measurements currently held.
func (w *Window) Len() int {
	return w.count
}

// At returns the i-th measurement, 0 being the oldest.
// It panics if i is out of range.
func (w *Window) At(i int) float64 {
	if i < 0 || i >= w.count {
		panic("blink: window index out of range")
	}
	return w.buf[(w.head+i)%WindowSize]
}

// Values returns a copy of the held measurements, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	for i := range out {
		out[i] = w.buf[(w.head+i)%WindowSize]
	}
	return out
}

// Segments returns the early, middle and late segments of the window.
// They are only meaningful once the window is full.
func (w *Window) Segments() (early, mid, late Segment) {
	return earlySegment, midSegment, lateSegment
}

// Mean returns the average of the measurements covered by s.
// Returns 0 for an empty segment.
func (w *Window) Mean(s Segment) float64 {
	if s.Len() <= 0 {
		return 0
	}
	var sum float64
	for i := s.Start; i < s.End; i++ {
		sum += w.At(i)
	}
	return sum / float64(s.Len())
}

// Reset empties the window.
func (w *Window) Reset() {
	w.head = 0
	w.count = 0
}

package blink

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid blink config")

// Eye identifies which eye a tracker follows.
type Eye string

const (
	// EyeLeft is the subject's left eye.
	EyeLeft Eye = "left"
	// EyeRight is the subject's right eye.
	EyeRight Eye = "right"
)

// Config holds the tunable parameters of an EyeTracker.
type Config struct {
	// HoldDuration is how long a blink stays asserted after the last detection.
	HoldDuration time.Duration `json:"hold_duration"`

	// Tolerance is the relative margin used by the Classifier (0 = strict).
	Tolerance float64 `json:"tolerance"`
}

// DefaultConfig returns the reference configuration: 150ms hold, no tolerance.
func DefaultConfig() Config {
	return Config{
		HoldDuration: DefaultHoldDuration,
		Tolerance:    0,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.HoldDuration <= 0 {
		return fmt.Errorf("%w: hold duration must be positive, got %s", ErrInvalidConfig, c.HoldDuration)
	}
	if c.Tolerance < 0 || c.Tolerance >= 1 {
		return fmt.Errorf("%w: tolerance must be in [0, 1), got %g", ErrInvalidConfig, c.Tolerance)
	}
	return nil
}

// Clock returns the current time as an offset on a monotonic timeline.
type Clock func() time.Duration

// MonotonicClock returns a Clock measuring elapsed time since the call.
func MonotonicClock() Clock {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// FrameTime converts a zero-based frame counter into elapsed time at fps.
// Non-positive fps is treated as 30.
func FrameTime(frame int, fps float64) time.Duration {
	if fps <= 0 {
		fps = 30
	}
	return time.Duration(float64(frame) / fps * float64(time.Second))
}

// EyeTracker turns one eye's stream of lid distances into a debounced blink
// signal. It owns its window, classifier and hold state and is not safe for
// concurrent use; call it from a single frame loop in capture order.
type EyeTracker struct {
	eye        Eye
	clock      Clock
	window     Window
	classifier Classifier
	hold       *Hold
	detected   bool
	frames     int
}

// NewEyeTracker creates a tracker for eye. A nil clock defaults to
// MonotonicClock. The config is not validated here; see Config.Validate.
func NewEyeTracker(eye Eye, cfg Config, clock Clock) *EyeTracker {
	if clock == nil {
		clock = MonotonicClock()
	}
	return &EyeTracker{
		eye:        eye,
		clock:      clock,
		classifier: Classifier{Tolerance: cfg.Tolerance},
		hold:       NewHold(cfg.HoldDuration),
	}
}

// Observe records the lid distance for the current frame, stamped with the
// tracker's clock, and returns whether the eye is currently blinking.
func (t *EyeTracker) Observe(distance float64) bool {
	return t.ObserveAt(distance, t.clock())
}

// ObserveAt records the lid distance for a frame captured at now and returns
// whether the eye is currently blinking.
func (t *EyeTracker) ObserveAt(distance float64, now time.Duration) bool {
	t.window.Push(distance)
	t.frames++
	t.detected = t.classifier.Classify(&t.window)
	return t.hold.Update(t.detected, now)
}

// Eye returns the eye this tracker follows.
func (t *EyeTracker) Eye() Eye {
	return t.eye
}

// Detected returns the raw classifier output for the last observed frame.
func (t *EyeTracker) Detected() bool {
	return t.detected
}

// Blinking returns the debounced signal for the last observed frame.
func (t *EyeTracker) Blinking() bool {
	return t.hold.Blinking()
}

// Frames returns how many frames were observed since creation or the last Reset.
func (t *EyeTracker) Frames() int {
	return t.frames
}

// Window returns a copy of the current measurements, oldest first.
func (t *EyeTracker) Window() []float64 {
	return t.window.Values()
}

// Reset discards all history, as if the tracker had just been created.
func (t *EyeTracker) Reset() {
	t.window.Reset()
	t.hold.Reset()
	t.detected = false
	t.frames = 0
}

// EyeState is the per-frame output for one eye.
type EyeState struct {
	Distance float64 `json:"distance"`
	Detected bool    `json:"detected"`
	Blinking bool    `json:"blinking"`
}

// FrameState is the per-frame output for both eyes.
type FrameState struct {
	At    time.Duration `json:"at"`
	Left  EyeState      `json:"left"`
	Right EyeState      `json:"right"`
}

// Eye returns the state of the given eye.
func (f FrameState) Eye(eye Eye) EyeState {
	if eye == EyeRight {
		return f.Right
	}
	return f.Left
}

// FaceTracker runs one independent EyeTracker per eye.
type FaceTracker struct {
	Left  *EyeTracker
	Right *EyeTracker
}

// NewFaceTracker creates trackers for both eyes sharing the same config and
// clock but no state.
func NewFaceTracker(cfg Config, clock Clock) *FaceTracker {
	if clock == nil {
		clock = MonotonicClock()
	}
	return &FaceTracker{
		Left:  NewEyeTracker(EyeLeft, cfg, clock),
		Right: NewEyeTracker(EyeRight, cfg, clock),
	}
}

// ObserveAt feeds one frame's lid distances for both eyes.
func (f *FaceTracker) ObserveAt(left, right float64, now time.Duration) FrameState {
	return FrameState{
		At:    now,
		Left:  observe(f.Left, left, now),
		Right: observe(f.Right, right, now),
	}
}

// Reset clears both trackers.
func (f *FaceTracker) Reset() {
	f.Left.Reset()
	f.Right.Reset()
}

func observe(t *EyeTracker, distance float64, now time.Duration) EyeState {
	blinking := t.ObserveAt(distance, now)
	return EyeState{
		Distance: distance,
		Detected: t.Detected(),
		Blinking: blinking,
	}
}

package blink

import "time"

// DefaultHoldDuration is how long a blink stays asserted after a detection.
const DefaultHoldDuration = 150 * time.Millisecond

// Hold debounces raw per-frame detections. A detection switches it to the
// held state until HoldDuration has passed without another detection; every
// detection while held pushes the expiry out again.
type Hold struct {
	duration  time.Duration
	blinking  bool
	expiresAt time.Duration
}

// NewHold creates an idle Hold. Non-positive durations fall back to
// DefaultHoldDuration.
func NewHold(duration time.Duration) *Hold {
	if duration <= 0 {
		duration = DefaultHoldDuration
	}
	return &Hold{duration: duration}
}

// Update feeds one frame into the state machine and returns the debounced
// signal for that frame. now must not go backwards between calls.
func (h *Hold) Update(detected bool, now time.Duration) bool {
	if detected {
		h.blinking = true
		h.expiresAt = now + h.duration
		return true
	}

	if h.blinking && now >= h.expiresAt {
		h.blinking = false
	}

	return h.blinking
}

// Blinking returns the signal computed by the last Update.
func (h *Hold) Blinking() bool {
	return h.blinking
}

// ExpiresAt returns when the current hold ends. ok is false while idle.
func (h *Hold) ExpiresAt() (at time.Duration, ok bool) {
	if !h.blinking {
		return 0, false
	}
	return h.expiresAt, true
}

// Duration returns the configured hold duration.
func (h *Hold) Duration() time.Duration {
	return h.duration
}

// Reset returns the hold to the idle state.
func (h *Hold) Reset() {
	h.blinking = false
	h.expiresAt = 0
}

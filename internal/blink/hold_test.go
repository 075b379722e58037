package blink

import (
	"testing"
	"time"
)

const ms = time.Millisecond

func TestHold_Update(t *testing.T) {
	t.Run("starts idle", func(t *testing.T) {
		h := NewHold(150 * ms)
		if h.Blinking() {
			t.Error("new hold should not be blinking")
		}
		if _, ok := h.ExpiresAt(); ok {
			t.Error("idle hold should have no expiry")
		}
		if h.Update(false, 0) {
			t.Error("no detection while idle should stay idle")
		}
	})

	t.Run("holds for the configured duration", func(t *testing.T) {
		h := NewHold(150 * ms)

		if !h.Update(true, 0) {
			t.Fatal("expected blinking after detection at t=0")
		}
		if !h.Update(false, 100*ms) {
			t.Error("expected blinking at t=100ms, within hold")
		}
		if h.Update(false, 151*ms) {
			t.Error("expected idle at t=151ms, after hold expired")
		}
	})

	t.Run("expires exactly at the deadline", func(t *testing.T) {
		h := NewHold(150 * ms)
		h.Update(true, 0)

		if !h.Update(false, 149*ms) {
			t.Error("expected blinking at t=149ms")
		}
		if h.Update(false, 150*ms) {
			t.Error("expected idle at t=150ms")
		}
	})

	t.Run("re-arm extends expiry", func(t *testing.T) {
		h := NewHold(150 * ms)
		h.Update(true, 0)
		h.Update(true, 100*ms)

		at, ok := h.ExpiresAt()
		if !ok || at != 250*ms {
			t.Errorf("expected expiry at 250ms, got %v (ok=%v)", at, ok)
		}
		if !h.Update(false, 200*ms) {
			t.Error("expected blinking at t=200ms after re-arm")
		}
		if h.Update(false, 260*ms) {
			t.Error("expected idle at t=260ms")
		}
	})

	t.Run("detection on the expiry tick re-arms", func(t *testing.T) {
		h := NewHold(150 * ms)
		h.Update(true, 0)

		if !h.Update(true, 150*ms) {
			t.Error("detection at the expiry tick should keep blinking")
		}
		if !h.Update(false, 299*ms) {
			t.Error("expected blinking until 300ms")
		}
	})

	t.Run("non-positive duration uses default", func(t *testing.T) {
		h := NewHold(0)
		if h.Duration() != DefaultHoldDuration {
			t.Errorf("expected default duration %v, got %v", DefaultHoldDuration, h.Duration())
		}
	})

	t.Run("reset returns to idle", func(t *testing.T) {
		h := NewHold(150 * ms)
		h.Update(true, 0)
		h.Reset()
		if h.Blinking() {
			t.Error("expected idle after reset")
		}
	})
}

func TestHold_NeverFlickers(t *testing.T) {
	h := NewHold(150 * ms)

	// Noisy detector output at 30 FPS.
	pattern := []bool{true, false, true, false, false, true, false, false, false, false, false, false, false, false}

	var lastRise, lastFall time.Duration
	prev := false
	lastDetection := time.Duration(-1)
	for i, detected := range pattern {
		now := FrameTime(i, 30)
		if detected {
			lastDetection = now
		}
		got := h.Update(detected, now)

		if got && !prev {
			if !detected {
				t.Fatalf("frame %d: rose without a detection", i)
			}
			lastRise = now
		}
		if !got && prev {
			if now-lastDetection < 150*ms {
				t.Fatalf("frame %d: fell %v after last detection", i, now-lastDetection)
			}
			lastFall = now
		}
		prev = got
	}

	if lastRise != 0 {
		t.Errorf("expected a single rise at t=0, last rise at %v", lastRise)
	}
	if lastFall == 0 {
		t.Error("expected the hold to fall once detections stopped")
	}
}

package blink

import (
	"testing"
	"time"
)

func frame(at time.Duration, left, right EyeState) FrameState {
	return FrameState{At: at, Left: left, Right: right}
}

func TestEventRecorder_RiseAndFall(t *testing.T) {
	var rec EventRecorder
	on := EyeState{Detected: true, Blinking: true}
	held := EyeState{Blinking: true}
	off := EyeState{}

	rose, closed := rec.Record(frame(0, off, off))
	if len(rose) != 0 || len(closed) != 0 {
		t.Fatalf("idle frame produced edges: %v %v", rose, closed)
	}

	rose, _ = rec.Record(frame(10*ms, on, off))
	if len(rose) != 1 || rose[0] != EyeLeft {
		t.Fatalf("rose = %v, want [left]", rose)
	}

	// Still asserted, no new edge.
	rose, _ = rec.Record(frame(20*ms, on, off))
	if len(rose) != 0 {
		t.Errorf("rose = %v while already blinking", rose)
	}
	rec.Record(frame(30*ms, held, off))

	if ev, ok := rec.Open(EyeLeft); !ok || ev.Detections != 2 {
		t.Errorf("Open(left) = %+v, %v; want 2 detections", ev, ok)
	}
	if _, ok := rec.Open(EyeRight); ok {
		t.Error("right eye should have no open event")
	}

	_, closed = rec.Record(frame(40*ms, off, off))
	if len(closed) != 1 {
		t.Fatalf("closed = %v, want one event", closed)
	}
	ev := closed[0]
	if ev.Eye != EyeLeft || ev.Start != 10*ms || ev.End != 40*ms || ev.Detections != 2 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Duration() != 30*ms {
		t.Errorf("Duration() = %v, want 30ms", ev.Duration())
	}
}

func TestEventRecorder_BothEyes(t *testing.T) {
	var rec EventRecorder
	on := EyeState{Detected: true, Blinking: true}

	rose, _ := rec.Record(frame(0, on, on))
	if len(rose) != 2 {
		t.Fatalf("rose = %v, want both eyes", rose)
	}

	closed := rec.Flush(50 * ms)
	if len(closed) != 2 {
		t.Fatalf("Flush returned %d events, want 2", len(closed))
	}
	for _, ev := range closed {
		if ev.End != 50*ms {
			t.Errorf("%s event End = %v, want 50ms", ev.Eye, ev.End)
		}
	}

	if got := rec.Flush(60 * ms); len(got) != 0 {
		t.Errorf("second Flush returned %v", got)
	}
}

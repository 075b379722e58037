package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing. Each frame is
// stamped 1/FPS after the previous one so the timeline is deterministic,
// including across SetFPS calls.
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	seq     uint64
	at      time.Duration
	loop    bool
	fps     int
	mu      sync.Mutex
	running bool
}

// NewMockCamera creates a MockCamera playing frames, optionally looping.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	c.seq = 0
	c.at = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame returns a clone of the next frame.
func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	// Clone the frame so the original isn't modified
	mat := c.frames[c.index].Clone()
	c.index++

	frame := &Frame{
		Mat:        &mat,
		Seq:        c.seq,
		CapturedAt: c.at,
	}
	c.seq++
	c.at += time.Second / time.Duration(c.fps)

	return frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.seq = 0
	c.at = 0
}

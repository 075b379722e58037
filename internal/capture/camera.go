// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings. Blink detection needs the full frame rate the
// classifier window was sized for.
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Frame is a captured video frame stamped on the camera's monotonic timeline.
type Frame struct {
	// Mat holds the pixels. The receiver of a Frame must call Close.
	Mat *gocv.Mat
	// Seq counts frames since the camera was opened, starting at 0.
	Seq uint64
	// CapturedAt is the capture time relative to Open.
	CapturedAt time.Duration
}

// Close releases the frame's pixel buffer.
func (f *Frame) Close() error {
	if f == nil || f.Mat == nil {
		return nil
	}
	err := f.Mat.Close()
	f.Mat = nil
	return err
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device or a video file
// using GoCV.
type cameraImpl struct {
	// source is a device index or a file path, as accepted by
	// gocv.OpenVideoCapture.
	source   interface{}
	file     bool
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	openedAt time.Time
	seq      uint64
}

// NewCamera creates a new Camera with the given device ID.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		source: deviceID,
		fps:    DefaultFPS,
	}
}

// NewVideoFile creates a Camera that plays back a recorded video. Frames are
// stamped with their position in the file rather than the wall clock, so a
// recording replays on its own timeline however fast it is read.
func NewVideoFile(path string) Camera {
	return &cameraImpl{
		source: path,
		file:   true,
		fps:    DefaultFPS,
	}
}

// Open opens the source. Devices are asked for 640x480 at the current FPS.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.source)
	if err != nil {
		return fmt.Errorf("open video source %v: %w", c.source, err)
	}

	if !c.file {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	c.capture = capture
	c.running = true
	c.openedAt = time.Now()
	c.seq = 0

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Frame.
func (c *cameraImpl) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		if c.file {
			return nil, io.EOF
		}
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	at := time.Since(c.openedAt)
	if c.file {
		at = time.Duration(c.capture.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
	}

	frame := &Frame{
		Mat:        &mat,
		Seq:        c.seq,
		CapturedAt: at,
	}
	c.seq++

	return frame, nil
}

// SetFPS sets the frames per second for capture. Video files play at their
// own rate and only record the setting. Values less than or equal to 0 are
// ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil && !c.file {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur on the downscaled frame.
	GaussianBlurSize = 7
	// DiffThreshold is the binary threshold for difference detection.
	DiffThreshold = 25
	// probeWidth and probeHeight are the dimensions frames are shrunk to before diffing.
	probeWidth  = 160
	probeHeight = 120
)

// MotionDetector decides when someone may have stepped in front of an idle
// camera. It compares a small blurred grayscale copy of each frame with the
// previous one, so it stays cheap enough to run while no face is tracked.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	lastChange  float64
	mu          sync.Mutex
}

// NewMotionDetector creates a new MotionDetector with the given threshold,
// the percentage of pixels that must change to count as motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether motion
// was detected and the percentage of pixels that changed. The first frame
// after creation or Reset only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*frame, &small, image.Point{X: probeWidth, Y: probeHeight}, 0, 0, gocv.InterpolationArea)

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		m.lastChange = 0
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	total := thresh.Rows() * thresh.Cols()
	changePercent := float64(nonZero) / float64(total) * 100.0

	blurred.CopyTo(&m.prevGray)
	m.lastChange = changePercent

	return changePercent > m.threshold, changePercent
}

// LastChange returns the change percentage computed by the last Detect call.
func (m *MotionDetector) LastChange() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastChange
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.lastChange = 0
}

// SetThreshold sets the motion detection threshold.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

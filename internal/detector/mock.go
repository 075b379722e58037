package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either as a fixed set
// of faces or as a scripted per-frame sequence.
type MockDetector struct {
	mu       sync.Mutex
	faces    []FaceLandmarks
	sequence [][]FaceLandmarks
	calls    int
	err      error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by every Detect call.
func (m *MockDetector) SetFaces(faces []FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetSequence scripts the result of successive Detect calls. Once the
// sequence is exhausted the faces set with SetFaces are returned.
func (m *MockDetector) SetSequence(seq [][]FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted faces, the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenEyesGap and ClosedEyesGap are the lid distances of the preset faces.
const (
	OpenEyesGap   = 0.02
	ClosedEyesGap = 0.004
)

// OpenEyesFace returns a frontal face with both eyes open.
func OpenEyesFace() FaceLandmarks {
	return FaceWithGap(OpenEyesGap, OpenEyesGap)
}

// ClosedEyesFace returns a frontal face with both eyes nearly shut.
func ClosedEyesFace() FaceLandmarks {
	return FaceWithGap(ClosedEyesGap, ClosedEyesGap)
}

// FaceWithGap returns a frontal face in normalized image coordinates whose
// left and right lid distances are exactly leftGap and rightGap.
func FaceWithGap(leftGap, rightGap float64) FaceLandmarks {
	face := FaceLandmarks{
		Bounds: Rect{X: 0.3, Y: 0.2, Width: 0.4, Height: 0.5},
		Score:  0.95,
	}

	// Jaw and mouth anchors
	face.Points[JawRight] = Point3D{X: 0.31, Y: 0.45}
	face.Points[JawLeft] = Point3D{X: 0.69, Y: 0.45}
	face.Points[NoseTip] = Point3D{X: 0.50, Y: 0.45}
	face.Points[MouthLeft] = Point3D{X: 0.44, Y: 0.58}
	face.Points[MouthRight] = Point3D{X: 0.56, Y: 0.58}

	setEye(&face, leftEyeIndices, 0.38, 0.46, 0.35, leftGap)
	setEye(&face, rightEyeIndices, 0.62, 0.54, 0.35, rightGap)

	return face
}

// setEye places the six landmarks of one eye between two corners at height y,
// with the lids gap apart.
func setEye(face *FaceLandmarks, idx [6]int, cornerA, cornerB, y, gap float64) {
	third := (cornerB - cornerA) / 3
	face.Points[idx[0]] = Point3D{X: cornerA, Y: y}
	face.Points[idx[1]] = Point3D{X: cornerB, Y: y}
	face.Points[idx[2]] = Point3D{X: cornerA + third, Y: y - gap/2}
	face.Points[idx[3]] = Point3D{X: cornerA + 2*third, Y: y - gap/2}
	face.Points[idx[4]] = Point3D{X: cornerA + third, Y: y + gap/2}
	face.Points[idx[5]] = Point3D{X: cornerA + 2*third, Y: y + gap/2}
}

// Package detector provides face landmark detection interfaces and the eye
// geometry used for blink detection.
package detector

import (
	"math"

	"github.com/ayusman/palak/internal/blink"
)

// Face landmark indices following the 68-point (iBUG 300-W) convention.
const (
	JawRight       = 2
	JawLeft        = 14
	NoseTip        = 30
	RightEyeOuter  = 36
	RightEyeUpper1 = 37
	RightEyeUpper2 = 38
	RightEyeInner  = 39
	RightEyeLower2 = 40
	RightEyeLower1 = 41
	LeftEyeInner   = 42
	LeftEyeUpper2  = 43
	LeftEyeUpper1  = 44
	LeftEyeOuter   = 45
	LeftEyeLower1  = 46
	LeftEyeLower2  = 47
	MouthLeft      = 48
	MouthRight     = 54
	NumLandmarks   = 68
)

// Eye landmark selections in the order: corner, corner, upper lid, upper lid,
// lower lid, lower lid. Upper point k pairs with lower point k.
//
// The 36-41 group is on the left of the image, which for a mirrored webcam
// feed is the subject's left eye.
var (
	leftEyeIndices  = [6]int{RightEyeOuter, RightEyeInner, RightEyeUpper1, RightEyeUpper2, RightEyeLower1, RightEyeLower2}
	rightEyeIndices = [6]int{LeftEyeOuter, LeftEyeInner, LeftEyeUpper1, LeftEyeUpper2, LeftEyeLower1, LeftEyeLower2}
)

// Head pose thresholds on the turn amount.
const (
	TurnLeftThreshold  = 0.3
	TurnRightThreshold = 0.7
)

// HeadPose is a coarse head orientation derived from the nose position.
type HeadPose string

const (
	HeadLeft   HeadPose = "left"
	HeadCenter HeadPose = "center"
	HeadRight  HeadPose = "right"
)

// Point3D represents a point in tracker coordinates. Z is zero for 2-D models.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rect is an axis-aligned bounding box in tracker coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceLandmarks represents the 68 landmarks of one tracked face.
type FaceLandmarks struct {
	Points [NumLandmarks]Point3D `json:"points"`
	Bounds Rect                  `json:"bounds"`
	Score  float64               `json:"score"`
}

// distance2D calculates the Euclidean distance between two points in the image plane.
func distance2D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// EyeLandmarks returns the six landmarks of the given eye.
func (f *FaceLandmarks) EyeLandmarks(eye blink.Eye) [6]Point3D {
	indices := leftEyeIndices
	if eye == blink.EyeRight {
		indices = rightEyeIndices
	}

	var out [6]Point3D
	for i, idx := range indices {
		out[i] = f.Points[idx]
	}
	return out
}

// LidDistance returns the gap between the upper and lower eyelid of the given
// eye: the mean of the two upper/lower landmark distances.
func (f *FaceLandmarks) LidDistance(eye blink.Eye) float64 {
	if f == nil {
		return 0
	}
	lm := f.EyeLandmarks(eye)
	return (distance2D(lm[2], lm[4]) + distance2D(lm[3], lm[5])) / 2
}

// EyeWidth returns the corner-to-corner width of the given eye.
func (f *FaceLandmarks) EyeWidth(eye blink.Eye) float64 {
	if f == nil {
		return 0
	}
	lm := f.EyeLandmarks(eye)
	return distance2D(lm[0], lm[1])
}

// TurnAmount returns the horizontal nose position relative to the face
// bounds: about 0.5 facing the camera, towards 0 or 1 when turned.
// Returns 0.5 for empty bounds.
func (f *FaceLandmarks) TurnAmount() float64 {
	if f == nil || f.Bounds.Width <= 0 {
		return 0.5
	}
	return (f.Points[NoseTip].X - f.Bounds.X) / f.Bounds.Width
}

// HeadPose classifies TurnAmount into left, center or right.
func (f *FaceLandmarks) HeadPose() HeadPose {
	turn := f.TurnAmount()
	switch {
	case turn < TurnLeftThreshold:
		return HeadLeft
	case turn > TurnRightThreshold:
		return HeadRight
	default:
		return HeadCenter
	}
}

// Primary returns the highest scoring face, or nil for an empty slice.
func Primary(faces []FaceLandmarks) *FaceLandmarks {
	if len(faces) == 0 {
		return nil
	}
	best := &faces[0]
	for i := 1; i < len(faces); i++ {
		if faces[i].Score > best.Score {
			best = &faces[i]
		}
	}
	return best
}

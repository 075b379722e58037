package blink

// Classifier decides whether a full window contains a blink: the middle
// segment must dip below both the early and the late segment.
//
// The detection lags the real closing of the eye by about half a window.
type Classifier struct {
	// Tolerance is a relative margin the middle segment must clear below each
	// baseline, e.g. 0.1 requires mid < 0.9*early and mid < 0.9*late.
	// Zero gives the plain strict less-than comparison.
	Tolerance float64
}

// NewClassifier creates a Classifier with the given relative tolerance.
func NewClassifier(tolerance float64) *Classifier {
	return &Classifier{Tolerance: tolerance}
}

// Classify reports whether the window currently shows a blink.
// It returns false until the window is full and whenever either baseline
// average is zero or negative, which happens when the tracker loses the eye.
func (c *Classifier) Classify(w *Window) bool {
	if w == nil || !w.IsFull() {
		return false
	}

	early, mid, late := w.Segments()
	earlyMean := w.Mean(early)
	midMean := w.Mean(mid)
	lateMean := w.Mean(late)

	if earlyMean <= 0 || lateMean <= 0 {
		return false
	}

	factor := 1.0
	if c != nil && c.Tolerance > 0 {
		factor = 1 - c.Tolerance
	}

	return midMean < earlyMean*factor && midMean < lateMean*factor
}

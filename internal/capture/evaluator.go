package capture

import "image"

// Evaluator turns one frame's landmarks and pixels into a Judgment. Lighting
// is sampled independently of face presence; when a frame has no pixels the
// last sampled lighting is kept.
type Evaluator struct {
	thresholds    Thresholds
	lighting      LightingEstimator
	lastLighting  LightingQuality
	lastLuminance float64
}

// NewEvaluator creates an evaluator with its own lighting scratch buffer
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{
		thresholds:   t,
		lighting:     NewLightingEstimator(t),
		lastLighting: LightingDark,
	}
}

// Evaluate judges a single frame
func (e *Evaluator) Evaluate(landmarks LandmarkSet, frame image.Image) Judgment {
	if quality, mean, ok := e.lighting.Estimate(frame); ok {
		e.lastLighting = quality
		e.lastLuminance = mean
	}

	return Judgment{
		FaceDetected: !landmarks.Empty(),
		Position:     EvaluatePosition(landmarks, e.thresholds),
		Lighting:     e.lastLighting,
		Luminance:    e.lastLuminance,
	}
}

// Lighting returns the last sampled lighting level
func (e *Evaluator) Lighting() (LightingQuality, float64) {
	return e.lastLighting, e.lastLuminance
}

// Reset forgets the last sampled lighting
func (e *Evaluator) Reset() {
	e.lastLighting = LightingDark
	e.lastLuminance = 0
}

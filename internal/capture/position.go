package capture

import "math"

// EvaluatePosition classifies face framing from its landmark bounding box.
// An empty set always yields PositionPoor.
func EvaluatePosition(landmarks LandmarkSet, t Thresholds) PositionQuality {
	if landmarks.Empty() {
		return PositionPoor
	}

	box := landmarks.Bounds()
	width, height := box.Width(), box.Height()
	center := box.Center()

	centered := math.Abs(center.X-0.5) < t.CenterTolerance &&
		math.Abs(center.Y-0.5) < t.CenterTolerance
	sizeOK := height > t.MinFaceHeight && height < t.MaxFaceHeight
	// Wide boxes come from strong yaw or roll
	notTooWide := height > 0 && width/height < t.MaxAspectRatio

	switch {
	case centered && sizeOK && notTooWide:
		return PositionPerfect
	case sizeOK:
		return PositionAdjust
	default:
		return PositionPoor
	}
}

package detector

import (
	"context"
	"math"

	"glow-capture/internal/capture"
)

// ClientDetector trusts landmarks computed by the browser's own model and
// attached to each frame. Points outside the frame are dropped.
type ClientDetector struct{}

// NewClientDetector creates a pass-through detector
func NewClientDetector() *ClientDetector {
	return &ClientDetector{}
}

// Init implements capture.Detector
func (ClientDetector) Init(context.Context) error { return nil }

// Detect returns the frame's upstream landmarks
func (ClientDetector) Detect(frame capture.Frame, _ int64) ([]capture.Point, error) {
	if len(frame.Landmarks) == 0 {
		return nil, nil
	}

	points := make([]capture.Point, 0, len(frame.Landmarks))
	for _, p := range frame.Landmarks {
		if !inUnitRange(p.X) || !inUnitRange(p.Y) {
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

// Close implements capture.Detector
func (ClientDetector) Close() error { return nil }

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

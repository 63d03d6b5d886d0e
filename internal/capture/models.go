package capture

import (
	"image"
	"math"
	"time"
)

// PositionQuality describes how well a detected face is framed
type PositionQuality string

const (
	PositionPerfect PositionQuality = "perfect" // Centered, right distance, facing the camera
	PositionAdjust  PositionQuality = "adjust"  // Right distance, wrong position or angle
	PositionPoor    PositionQuality = "poor"    // Too far, too close, or no face
)

// LightingQuality describes ambient brightness of a frame
type LightingQuality string

const (
	LightingExcellent LightingQuality = "excellent"
	LightingGood      LightingQuality = "good"
	LightingDark      LightingQuality = "dark"
)

// Rank orders lighting levels so that brighter compares greater
func (l LightingQuality) Rank() int {
	switch l {
	case LightingExcellent:
		return 2
	case LightingGood:
		return 1
	default:
		return 0
	}
}

// DetectorState reports the lifecycle of the landmark detector behind a Source
type DetectorState string

const (
	DetectorLoading DetectorState = "loading"
	DetectorReady   DetectorState = "ready"
	DetectorFailed  DetectorState = "failed"
)

// Point is a landmark normalized to the frame, both axes in [0,1]
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkSet holds the points of at most one face. Empty means no face.
type LandmarkSet []Point

// Empty reports whether no face was detected
func (s LandmarkSet) Empty() bool {
	return len(s) == 0
}

// Bounds computes the axis-aligned bounding box of all points
func (s LandmarkSet) Bounds() BoundingBox {
	if len(s) == 0 {
		return BoundingBox{}
	}

	box := BoundingBox{
		MinX: math.Inf(1),
		MaxX: math.Inf(-1),
		MinY: math.Inf(1),
		MaxY: math.Inf(-1),
	}
	for _, p := range s {
		box.MinX = math.Min(box.MinX, p.X)
		box.MaxX = math.Max(box.MaxX, p.X)
		box.MinY = math.Min(box.MinY, p.Y)
		box.MaxY = math.Max(box.MaxY, p.Y)
	}
	return box
}

// BoundingBox is a face box in normalized frame coordinates
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Width returns the bounding box width
func (b BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the bounding box height
func (b BoundingBox) Height() float64 {
	return b.MaxY - b.MinY
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.MinX + b.MaxX) / 2,
		Y: (b.MinY + b.MaxY) / 2,
	}
}

// Frame is one decoded video frame as handed out by a VideoSource
type Frame struct {
	Image image.Image
	// Landmarks carries points computed upstream of this service, e.g. by a
	// browser-side model. Detectors that run their own inference ignore it.
	Landmarks LandmarkSet
}

// Empty reports whether the frame carries neither pixels nor landmarks
func (f Frame) Empty() bool {
	return f.Image == nil && f.Landmarks == nil
}

// FrameSample is the result of one Source poll
type FrameSample struct {
	Frame     Frame
	Timestamp float64
	Landmarks LandmarkSet
}

// Judgment is the per-frame quality verdict. Position and Lighting are only
// meaningful while FaceDetected is true.
type Judgment struct {
	FaceDetected bool            `json:"face_detected"`
	Position     PositionQuality `json:"position_quality"`
	Lighting     LightingQuality `json:"lighting_quality"`
	Luminance    float64         `json:"mean_luminance"`
}

// Status is the user-facing state of a capture session
type Status struct {
	DetectorState  DetectorState   `json:"detector_state"`
	FaceDetected   bool            `json:"face_detected"`
	Position       PositionQuality `json:"position_quality"`
	Lighting       LightingQuality `json:"lighting_quality"`
	Luminance      float64         `json:"mean_luminance"`
	Stability      int             `json:"stability"`
	CaptureEnabled bool            `json:"capture_enabled"`
	Feedback       string          `json:"feedback"`
	Countdown      int             `json:"countdown,omitempty"`
}

// Still is the single frozen frame produced by a completed capture
type Still struct {
	ID         string    `json:"id"`
	JPEG       []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
	Judgment   Judgment  `json:"judgment"`
}

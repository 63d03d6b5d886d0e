package capture

import (
	"context"
	"image"
)

// Detector is a single-face landmark model. Implementations return at most one
// face's points per call, normalized to [0,1], and an empty slice on no detection.
type Detector interface {
	// Init loads the model. It may be slow and may fail.
	Init(ctx context.Context) error

	// Detect runs inference on one frame
	Detect(frame Frame, timestampMs int64) ([]Point, error)

	// Close releases the model resources
	Close() error
}

// VideoSource provides the current frame of a live stream
type VideoSource interface {
	// CurrentTime is the playback position of the current frame. It never
	// decreases; an unchanged value means no new frame is available.
	CurrentTime() float64

	// Frame returns the current frame. Callers must not mutate its pixels.
	Frame() Frame
}

// LightingEstimator classifies the ambient brightness of a frame
type LightingEstimator interface {
	// Estimate returns the lighting level and the sampled mean luminance
	// (0-255). ok is false when the frame has no pixels to sample.
	Estimate(frame image.Image) (quality LightingQuality, mean float64, ok bool)
}

package detector

import (
	"context"
	"image"
	"math"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glow-capture/internal/capture"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Pigo ")
	require.NoError(t, err)
	assert.Equal(t, KindPigo, k)

	k, err = ParseKind("client")
	require.NoError(t, err)
	assert.Equal(t, KindClient, k)

	_, err = ParseKind("mediapipe")
	assert.Error(t, err)
}

func TestClientDetectorFiltersPoints(t *testing.T) {
	d := NewClientDetector()
	require.NoError(t, d.Init(context.Background()))

	frame := capture.Frame{Landmarks: capture.LandmarkSet{
		{X: 0.3, Y: 0.3},
		{X: -0.1, Y: 0.5},
		{X: 0.7, Y: 1.4},
		{X: math.NaN(), Y: 0.5},
		{X: 0.7, Y: 0.7},
	}}

	points, err := d.Detect(frame, 0)
	require.NoError(t, err)
	assert.Equal(t, []capture.Point{{X: 0.3, Y: 0.3}, {X: 0.7, Y: 0.7}}, points)

	points, err = d.Detect(capture.Frame{}, 0)
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.NoError(t, d.Close())
}

func TestPigoDetectorMissingCascade(t *testing.T) {
	opts := DefaultPigoOptions()
	opts.FacefinderPath = filepath.Join(t.TempDir(), "missing")

	d := NewPigoDetector(opts)
	err := d.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "facefinder")
}

func TestPigoDetectorCancelledInit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPigoDetector(DefaultPigoOptions()).Init(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPigoDetectorNotLoaded(t *testing.T) {
	d := NewPigoDetector(DefaultPigoOptions())
	_, err := d.Detect(capture.Frame{Image: image.NewGray(image.Rect(0, 0, 8, 8))}, 0)
	assert.ErrorIs(t, err, errNotLoaded)
	assert.NoError(t, d.Close())
}

func TestBestDetection(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 10, Col: 10, Scale: 20, Q: 3},
		{Row: 50, Col: 60, Scale: 40, Q: 12},
		{Row: 80, Col: 80, Scale: 30, Q: 8},
	}

	best, ok := bestDetection(dets, 5)
	require.True(t, ok)
	assert.Equal(t, 60, best.Col)

	_, ok = bestDetection(dets, 20)
	assert.False(t, ok)
}

func TestFaceCornersNormalized(t *testing.T) {
	det := pigo.Detection{Row: 240, Col: 320, Scale: 240}
	points := faceCorners(det, 640, 480)
	require.Len(t, points, 4)

	box := capture.LandmarkSet(points).Bounds()
	assert.InDelta(t, 0.5, box.Center().X, 1e-9)
	assert.InDelta(t, 0.5, box.Center().Y, 1e-9)
	assert.InDelta(t, 0.5, box.Height(), 1e-9)
	assert.InDelta(t, 0.28125, box.Width(), 1e-9)

	assert.Equal(t, capture.PositionPerfect, capture.EvaluatePosition(points, capture.DefaultThresholds()))

	// Boxes hanging over the edge are clamped to the frame
	edge := faceCorners(pigo.Detection{Row: 10, Col: 10, Scale: 100}, 640, 480)
	for _, p := range edge {
		assert.GreaterOrEqual(t, p.X, 0.0)
		assert.GreaterOrEqual(t, p.Y, 0.0)
	}
}

func TestFaceCornersPortraitFrame(t *testing.T) {
	th := capture.DefaultThresholds()

	// A 3:4 phone selfie with the face centered at arm's length
	portrait := capture.LandmarkSet(faceCorners(pigo.Detection{Row: 320, Col: 240, Scale: 300}, 480, 640))
	box := portrait.Bounds()
	assert.InDelta(t, 0.46875, box.Height(), 1e-9)
	assert.InDelta(t, 0.46875, box.Width(), 1e-9)
	assert.Less(t, box.Width()/box.Height(), th.MaxAspectRatio)
	assert.Equal(t, capture.PositionPerfect, capture.EvaluatePosition(portrait, th))

	// The same face in landscape keeps its pixel shape
	landscape := capture.LandmarkSet(faceCorners(pigo.Detection{Row: 240, Col: 320, Scale: 300}, 640, 480))
	pxRatio := landscape.Bounds().Width() * 640 / (landscape.Bounds().Height() * 480)
	assert.InDelta(t, faceAspect, pxRatio, 1e-9)
}

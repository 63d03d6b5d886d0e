package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDetector echoes the landmarks carried by the frame
type fakeDetector struct {
	mu        sync.Mutex
	initErr   error
	initBlock chan struct{}
	detectErr error
	panics    bool
	detects   int
	closes    int
}

func (d *fakeDetector) Init(ctx context.Context) error {
	if d.initBlock != nil {
		select {
		case <-d.initBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return d.initErr
}

func (d *fakeDetector) Detect(frame Frame, _ int64) ([]Point, error) {
	d.mu.Lock()
	d.detects++
	panics, err := d.panics, d.detectErr
	d.mu.Unlock()

	if panics {
		panic("inference crashed")
	}
	if err != nil {
		return nil, err
	}
	return frame.Landmarks, nil
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDetector) detectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detects
}

func (d *fakeDetector) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

var errInference = errors.New("inference failed")

// grayImage returns an opaque image whose every pixel has the given value
func grayImage(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// Landmarks with a 0.45x0.5 box centered in the frame
var centeredFace = LandmarkSet{
	{X: 0.275, Y: 0.25},
	{X: 0.5, Y: 0.5},
	{X: 0.725, Y: 0.75},
}

// Landmarks the right size but shifted left
var offCenterFace = LandmarkSet{
	{X: 0.05, Y: 0.25},
	{X: 0.5, Y: 0.75},
}

// Landmarks with a box taller than the maximum face height
var tooCloseFace = LandmarkSet{
	{X: 0.1, Y: 0.05},
	{X: 0.9, Y: 0.95},
}

func waitReady(t *testing.T, s *Source) {
	t.Helper()
	require.Eventually(t, s.Ready, time.Second, time.Millisecond)
}

package capture

import (
	"image"
	"sync"
)

// FrameBuffer is a VideoSource fed by pushed frames, e.g. frames streamed
// from a browser. It keeps only the newest frame.
type FrameBuffer struct {
	mu    sync.RWMutex
	ts    float64
	frame Frame
	count int64
}

// NewFrameBuffer creates an empty buffer
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{ts: -1}
}

// Push stores a frame. Frames older than the current one are dropped so that
// CurrentTime never decreases; it reports whether the frame was kept.
func (b *FrameBuffer) Push(timestamp float64, img image.Image, landmarks LandmarkSet) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if timestamp < b.ts {
		return false
	}
	b.ts = timestamp
	b.frame = Frame{Image: img, Landmarks: landmarks}
	b.count++
	return true
}

// CurrentTime implements VideoSource
func (b *FrameBuffer) CurrentTime() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ts
}

// Frame implements VideoSource
func (b *FrameBuffer) Frame() Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame
}

// Dimensions returns the pixel size of the current frame
func (b *FrameBuffer) Dimensions() (int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.frame.Image == nil {
		return 0, 0
	}
	bounds := b.frame.Image.Bounds()
	return bounds.Dx(), bounds.Dy()
}

// Frames returns how many frames were accepted
func (b *FrameBuffer) Frames() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Clear drops the current frame and starts a new timeline, e.g. after
// switching cameras
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = Frame{}
	b.ts = -1
}

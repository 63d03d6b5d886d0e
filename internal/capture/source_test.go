package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceNotReadyBeforeStart(t *testing.T) {
	s := NewSource(&fakeDetector{})
	video := NewFrameBuffer()
	video.Push(1, grayImage(8, 8, 128), centeredFace)

	assert.Equal(t, DetectorLoading, s.State())
	_, fresh := s.Poll(video)
	assert.False(t, fresh)
}

func TestSourceSkipsStalledVideo(t *testing.T) {
	det := &fakeDetector{}
	s := NewSource(det)
	s.Start(context.Background())
	waitReady(t, s)

	video := NewFrameBuffer()
	video.Push(1, grayImage(8, 8, 128), centeredFace)

	sample, fresh := s.Poll(video)
	require.True(t, fresh)
	assert.Equal(t, centeredFace, sample.Landmarks)
	assert.Equal(t, 1.0, sample.Timestamp)

	// Same timestamp: no inference, previous sample returned
	sample, fresh = s.Poll(video)
	assert.False(t, fresh)
	assert.Equal(t, centeredFace, sample.Landmarks)
	assert.Equal(t, 1, det.detectCount())

	video.Push(2, grayImage(8, 8, 128), nil)
	sample, fresh = s.Poll(video)
	assert.True(t, fresh)
	assert.True(t, sample.Landmarks.Empty())
	assert.Equal(t, 2, det.detectCount())
}

func TestSourceSkipsEmptyFrames(t *testing.T) {
	det := &fakeDetector{}
	s := NewSource(det)
	s.Start(context.Background())
	waitReady(t, s)

	_, fresh := s.Poll(NewFrameBuffer())
	assert.False(t, fresh)
	assert.Zero(t, det.detectCount())
}

func TestSourceSwallowsDetectionErrors(t *testing.T) {
	det := &fakeDetector{detectErr: errInference}
	s := NewSource(det)
	s.Start(context.Background())
	waitReady(t, s)

	video := NewFrameBuffer()
	video.Push(1, grayImage(8, 8, 128), centeredFace)

	sample, fresh := s.Poll(video)
	assert.True(t, fresh)
	assert.True(t, sample.Landmarks.Empty(), "a failed frame reads as no face")

	// The failed timestamp is not retried
	_, fresh = s.Poll(video)
	assert.False(t, fresh)
	assert.Equal(t, 1, det.detectCount())
}

func TestSourceRecoversDetectorPanic(t *testing.T) {
	det := &fakeDetector{panics: true}
	s := NewSource(det)
	s.Start(context.Background())
	waitReady(t, s)

	video := NewFrameBuffer()
	video.Push(1, grayImage(8, 8, 128), centeredFace)

	var sample FrameSample
	assert.NotPanics(t, func() { sample, _ = s.Poll(video) })
	assert.True(t, sample.Landmarks.Empty())
}

func TestSourceFailedInit(t *testing.T) {
	initErr := errors.New("model asset missing")
	s := NewSource(&fakeDetector{initErr: initErr})
	s.Start(context.Background())

	require.Eventually(t, func() bool { return s.State() == DetectorFailed }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Err(), initErr)
	assert.False(t, s.Ready())
}

func TestSourceReleaseOnce(t *testing.T) {
	det := &fakeDetector{}
	s := NewSource(det)
	s.Start(context.Background())
	waitReady(t, s)

	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.Equal(t, 1, det.closeCount())

	video := NewFrameBuffer()
	video.Push(1, grayImage(8, 8, 128), centeredFace)
	_, fresh := s.Poll(video)
	assert.False(t, fresh, "no polling after release")
}

func TestSourceReleaseWhileLoading(t *testing.T) {
	det := &fakeDetector{initBlock: make(chan struct{})}
	s := NewSource(det)
	s.Start(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Release() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Release did not cancel the pending load")
	}
	assert.Equal(t, 1, det.closeCount())
	assert.Equal(t, DetectorFailed, s.State())
	assert.ErrorIs(t, s.Err(), ErrDetectorReleased)
}

func TestSourceReleaseWithoutStart(t *testing.T) {
	det := &fakeDetector{}
	s := NewSource(det)

	require.NoError(t, s.Release())
	assert.Equal(t, 1, det.closeCount())

	s.Start(context.Background())
	assert.NotEqual(t, DetectorReady, s.State())
}

func TestSourceResetTimeline(t *testing.T) {
	det := &fakeDetector{}
	s := NewSource(det)
	s.Start(context.Background())
	waitReady(t, s)

	video := NewFrameBuffer()
	video.Push(5, grayImage(8, 8, 128), centeredFace)
	_, fresh := s.Poll(video)
	require.True(t, fresh)

	s.ResetTimeline()
	_, fresh = s.Poll(video)
	assert.True(t, fresh, "the same timestamp is processed again after a reset")
}

func TestFrameBufferDropsOlderFrames(t *testing.T) {
	b := NewFrameBuffer()
	assert.True(t, b.Push(2, grayImage(4, 4, 1), nil))
	assert.False(t, b.Push(1, grayImage(4, 4, 2), nil))
	assert.Equal(t, 2.0, b.CurrentTime())
	assert.Equal(t, int64(1), b.Frames())

	w, h := b.Dimensions()
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)

	b.Clear()
	assert.True(t, b.Frame().Empty())
	assert.True(t, b.Push(0, grayImage(4, 4, 3), nil), "a cleared buffer accepts a restarted timeline")
}

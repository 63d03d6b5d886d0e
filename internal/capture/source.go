package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"glow-capture/internal/logger"
)

// Source wraps a Detector behind a once-per-tick polling contract. It loads
// the model in the background, skips frames whose timestamp has not advanced
// and turns per-frame failures into "no face".
type Source struct {
	detector Detector
	nowMs    func() int64

	mu       sync.Mutex
	state    DetectorState
	loadErr  error
	cancel   context.CancelFunc
	loaded   chan struct{}
	started  bool
	released bool
	closeErr error

	hasLast  bool
	lastTime float64
	last     FrameSample
}

// NewSource creates a source around a detector. Call Start to load the model.
func NewSource(detector Detector) *Source {
	return &Source{
		detector: detector,
		nowMs:    func() int64 { return time.Now().UnixMilli() },
		state:    DetectorLoading,
	}
}

// Start loads the detector asynchronously. Calling it again is a no-op.
func (s *Source) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.released {
		s.mu.Unlock()
		return
	}
	s.started = true
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loaded = make(chan struct{})
	s.mu.Unlock()

	go s.load(loadCtx)
}

func (s *Source) load(ctx context.Context) {
	defer close(s.loaded)

	err := s.initDetector(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	if err != nil {
		s.state = DetectorFailed
		s.loadErr = err
		logger.WithError(err).Warn("Landmark detector failed to initialize")
		return
	}
	s.state = DetectorReady
	logger.Debug("Landmark detector ready")
}

func (s *Source) initDetector(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector init panicked: %v", r)
		}
	}()
	return s.detector.Init(ctx)
}

// Ready reports whether polling is allowed
func (s *Source) Ready() bool {
	return s.State() == DetectorReady
}

// State reports whether the detector is loading, ready or failed
func (s *Source) State() DetectorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the initialization error of a failed detector
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Poll runs detection on the current frame of video. When the video time has
// not moved since the last call the previous sample is returned with
// fresh=false and no inference runs.
func (s *Source) Poll(video VideoSource) (sample FrameSample, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != DetectorReady || s.released || video == nil {
		return FrameSample{}, false
	}

	ts := video.CurrentTime()
	if s.hasLast && ts == s.lastTime {
		return s.last, false
	}

	frame := video.Frame()
	if frame.Empty() {
		return s.last, false
	}

	points, err := s.detect(frame, s.nowMs())
	if err != nil {
		logger.WithError(err).Debug("Dropping frame after detection error")
		points = nil
	}

	s.last = FrameSample{
		Frame:     frame,
		Timestamp: ts,
		Landmarks: LandmarkSet(points),
	}
	s.lastTime = ts
	s.hasLast = true
	return s.last, true
}

func (s *Source) detect(frame Frame, ts int64) (points []Point, err error) {
	defer func() {
		if r := recover(); r != nil {
			points, err = nil, fmt.Errorf("detector panicked: %v", r)
		}
	}()
	return s.detector.Detect(frame, ts)
}

// ResetTimeline forgets the last sample so the next frame is always processed
func (s *Source) ResetTimeline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasLast = false
	s.last = FrameSample{}
}

// Release cancels a pending load and closes the detector. Only the first call
// closes; later calls return the same result.
func (s *Source) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return s.closeErr
	}
	s.released = true
	cancel, loaded := s.cancel, s.loaded
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if loaded != nil {
		<-loaded
	}

	err := s.detector.Close()

	s.mu.Lock()
	s.closeErr = err
	s.hasLast = false
	s.last = FrameSample{}
	if s.state == DetectorLoading {
		s.state = DetectorFailed
		s.loadErr = ErrDetectorReleased
	}
	s.mu.Unlock()
	return err
}

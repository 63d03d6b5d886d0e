package service

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"glow-capture/internal/analysis"
	"glow-capture/internal/capture"
	apperrors "glow-capture/internal/errors"
	"glow-capture/internal/factory"
	"glow-capture/internal/logger"
	"glow-capture/internal/observer"
	"glow-capture/pkg/models"

	"github.com/google/uuid"
)

// Sink receives the messages produced by one capture session. It is called
// from session goroutines and must not block.
type Sink func(models.ServerMessage)

// CaptureService runs live capture sessions and one-shot evaluations
type CaptureService interface {
	// OpenSession starts a capture session whose output goes to sink
	OpenSession(ctx context.Context, sink Sink) (*Session, error)

	// Session looks up an open session
	Session(id string) (*Session, bool)

	// Evaluate judges a single still image
	Evaluate(ctx context.Context, img image.Image, landmarks capture.LandmarkSet) (*models.EvaluationResponse, error)

	// Metrics reports session and analysis counters
	Metrics() map[string]interface{}

	// Close stops every session and drains pending analyses
	Close(ctx context.Context)
}

// Options wires the service's collaborators
type Options struct {
	Monitor     capture.MonitorOptions
	MaxSessions int
	Detectors   factory.DetectorFactory
	Dispatcher  *analysis.Dispatcher
	Events      observer.Subject
	Metrics     *observer.MetricsObserver
}

// captureService implements CaptureService
type captureService struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	evalOnce     sync.Once
	evalDetector capture.Detector
	evalErr      error
}

// NewCaptureService creates a new capture service
func NewCaptureService(opts Options) CaptureService {
	if opts.Events == nil {
		opts.Events = observer.NewEventPublisher()
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 64
	}
	return &captureService{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

func (s *captureService) OpenSession(ctx context.Context, sink Sink) (*Session, error) {
	if sink == nil {
		sink = func(models.ServerMessage) {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperrors.NewUnavailableError("service shutting down", nil)
	}
	if len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return nil, apperrors.NewUnavailableError("too many capture sessions", nil)
	}

	det, err := s.opts.Detectors.CreateDetector()
	if err != nil {
		s.mu.Unlock()
		return nil, apperrors.NewInternalError("failed to create landmark detector", err)
	}

	session := newSession(uuid.NewString(), s, det, sink)
	s.sessions[session.id] = session
	s.mu.Unlock()

	if err := session.start(ctx); err != nil {
		s.remove(session.id)
		return nil, apperrors.NewInternalError("failed to start capture session", err)
	}
	return session, nil
}

func (s *captureService) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *captureService) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *captureService) publish(event observer.SessionEvent) {
	s.opts.Events.NotifyObservers(context.Background(), event)
}

func (s *captureService) detectorName() string {
	return string(s.opts.Detectors.Kind())
}

// Evaluate runs the detector and evaluator once over a still. The gate sees a
// single judgment, so capture readiness is never reported here.
func (s *captureService) Evaluate(ctx context.Context, img image.Image, landmarks capture.LandmarkSet) (*models.EvaluationResponse, error) {
	start := time.Now()
	if img == nil {
		return nil, apperrors.NewValidationError("image is required", nil)
	}

	det, err := s.evaluationDetector(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailableError("landmark detector unavailable", err)
	}

	points, err := det.Detect(capture.Frame{Image: img, Landmarks: landmarks}, start.UnixMilli())
	if err != nil {
		return nil, apperrors.NewProcessingError("landmark detection failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("evaluation cancelled", err)
	}

	thresholds := s.opts.Monitor.Thresholds
	if thresholds == (capture.Thresholds{}) {
		thresholds = capture.DefaultThresholds()
	}
	judgment := capture.NewEvaluator(thresholds).Evaluate(capture.LandmarkSet(points), img)
	gate := capture.NewGate(thresholds)
	gate.Apply(judgment)

	bounds := img.Bounds()
	resp := &models.EvaluationResponse{
		Timestamp:         start.UTC().Format(time.RFC3339),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Width:             bounds.Dx(),
		Height:            bounds.Dy(),
		FaceDetected:      judgment.FaceDetected,
		Position:          string(judgment.Position),
		Lighting:          string(judgment.Lighting),
		Luminance:         judgment.Luminance,
		Feedback:          gate.Feedback(),
	}
	for _, p := range points {
		resp.Landmarks = append(resp.Landmarks, models.Landmark{X: p.X, Y: p.Y})
	}
	return resp, nil
}

// evaluationDetector lazily loads one detector shared by all evaluations
func (s *captureService) evaluationDetector(ctx context.Context) (capture.Detector, error) {
	s.evalOnce.Do(func() {
		det, err := s.opts.Detectors.CreateDetector()
		if err != nil {
			s.evalErr = err
			return
		}
		if err := det.Init(context.WithoutCancel(ctx)); err != nil {
			s.evalErr = err
			logger.WithError(err).Warn("Evaluation detector failed to initialize")
			return
		}
		s.evalDetector = det
	})
	return s.evalDetector, s.evalErr
}

func (s *captureService) Metrics() map[string]interface{} {
	metrics := map[string]interface{}{}
	if s.opts.Metrics != nil {
		for k, v := range s.opts.Metrics.GetMetrics() {
			metrics[k] = v
		}
	}

	s.mu.RLock()
	metrics["open_sessions"] = len(s.sessions)
	s.mu.RUnlock()

	metrics["detector"] = s.detectorName()
	if s.opts.Dispatcher != nil {
		metrics["analysis_jobs"] = s.opts.Dispatcher.Stats()
	}
	return metrics
}

func (s *captureService) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		if err := session.Stop(); err != nil {
			logger.WithSession(session.id).WithError(err).Warn("Failed to stop capture session")
		}
	}

	if s.opts.Dispatcher != nil {
		s.opts.Dispatcher.Close(ctx)
	}
	if s.evalDetector != nil {
		_ = s.evalDetector.Close()
	}
}

// toAppError maps capture sentinel errors onto the service error taxonomy
func toAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, capture.ErrCaptureNotReady):
		return apperrors.NewConflictError("capture not ready: hold still in the oval", err)
	case errors.Is(err, capture.ErrCountdownActive):
		return apperrors.NewConflictError("capture countdown already running", err)
	case errors.Is(err, capture.ErrSessionClosed):
		return apperrors.NewNotFoundError("capture session closed", err)
	case errors.Is(err, capture.ErrDetectorUnavailable):
		return apperrors.NewUnavailableError("face guidance unavailable", err)
	default:
		return apperrors.NewInternalError("capture session error", err)
	}
}

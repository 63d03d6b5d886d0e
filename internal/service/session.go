package service

import (
	"context"
	"image"
	"sync"
	"time"

	"glow-capture/internal/analysis"
	"glow-capture/internal/capture"
	"glow-capture/internal/logger"
	"glow-capture/internal/observer"
	"glow-capture/pkg/models"

	"github.com/sirupsen/logrus"
)

// Session is one live capture session: frames pushed by a client feed a
// capture.Monitor, whose output is translated into messages for the sink.
type Session struct {
	id       string
	svc      *captureService
	video    *capture.FrameBuffer
	monitor  *capture.Monitor
	sink     Sink
	openedAt time.Time

	// Only touched from monitor hooks, which never run concurrently
	stateReported capture.DetectorState
	gateOpen      bool

	finishOnce sync.Once
}

func newSession(id string, svc *captureService, det capture.Detector, sink Sink) *Session {
	s := &Session{
		id:            id,
		svc:           svc,
		video:         capture.NewFrameBuffer(),
		sink:          sink,
		openedAt:      time.Now(),
		stateReported: capture.DetectorLoading,
	}

	opts := svc.opts.Monitor
	opts.OnStatus = s.onStatus
	opts.OnCountdown = s.onCountdown
	opts.OnCapture = s.onCapture
	opts.OnError = s.onError
	s.monitor = capture.NewMonitor(capture.NewSource(det), s.video, opts)
	return s
}

func (s *Session) start(ctx context.Context) error {
	if err := s.monitor.Start(ctx); err != nil {
		return err
	}
	s.svc.publish(observer.SessionEvent{
		EventType: observer.SessionStarted,
		SessionID: s.id,
		Detector:  s.svc.detectorName(),
		Success:   true,
	})
	return nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// PushFrame hands a client frame to the monitor. Frames with a timestamp
// older than the current one are dropped.
func (s *Session) PushFrame(timestamp float64, img image.Image, landmarks capture.LandmarkSet) bool {
	return s.video.Push(timestamp, img, landmarks)
}

// Capture starts the countdown
func (s *Session) Capture() error {
	if err := s.monitor.RequestCapture(); err != nil {
		return toAppError(err)
	}
	s.svc.publish(observer.SessionEvent{
		EventType: observer.CountdownStarted,
		SessionID: s.id,
		Success:   true,
	})
	return nil
}

// Flip discards all state tied to the previous camera
func (s *Session) Flip() error {
	s.video.Clear()
	return toAppError(s.monitor.Flip())
}

// Status returns the current session status
func (s *Session) Status() capture.Status {
	return s.monitor.Status()
}

// Stop ends the session. It is safe to call more than once.
func (s *Session) Stop() error {
	err := s.monitor.Stop()
	s.finish()
	return err
}

// finish deregisters the session and reports it as stopped, once
func (s *Session) finish() {
	s.finishOnce.Do(func() {
		s.svc.remove(s.id)
		width, height := s.video.Dimensions()
		logger.WithSession(s.id).WithFields(logrus.Fields{
			"frames":   s.video.Frames(),
			"width":    width,
			"height":   height,
			"duration": time.Since(s.openedAt).String(),
		}).Info("Capture session finished")
		s.svc.publish(observer.SessionEvent{
			EventType: observer.SessionStopped,
			SessionID: s.id,
			Duration:  time.Since(s.openedAt),
			Success:   true,
		})
	})
}

func (s *Session) onStatus(status capture.Status) {
	if status.DetectorState != s.stateReported {
		s.stateReported = status.DetectorState
		switch status.DetectorState {
		case capture.DetectorReady:
			s.svc.publish(observer.SessionEvent{EventType: observer.DetectorReady, SessionID: s.id, Success: true})
		case capture.DetectorFailed:
			event := observer.SessionEvent{EventType: observer.DetectorFailed, SessionID: s.id, Detector: s.svc.detectorName()}
			if err := s.monitorErr(); err != nil {
				event.ErrorMessage = err.Error()
			}
			s.svc.publish(event)
		}
	}

	if status.CaptureEnabled && !s.gateOpen {
		s.svc.publish(observer.SessionEvent{EventType: observer.CaptureEnabled, SessionID: s.id, Success: true})
	}
	s.gateOpen = status.CaptureEnabled

	s.sink(models.ServerMessage{Type: models.MessageStatus, SessionID: s.id, Status: status})
}

func (s *Session) monitorErr() error {
	return s.monitor.DetectorErr()
}

func (s *Session) onCountdown(remaining int) {
	value := remaining
	s.sink(models.ServerMessage{Type: models.MessageCountdown, SessionID: s.id, Value: &value})
}

func (s *Session) onCapture(still capture.Still) {
	s.svc.publish(observer.SessionEvent{
		EventType: observer.Captured,
		SessionID: s.id,
		CaptureID: still.ID,
		Duration:  time.Since(s.openedAt),
		Success:   true,
		Metadata: map[string]interface{}{
			"width":     still.Width,
			"height":    still.Height,
			"jpeg_size": len(still.JPEG),
		},
	})
	s.sink(models.ServerMessage{Type: models.MessageCaptured, SessionID: s.id, CaptureID: still.ID})

	// The monitor has already torn itself down
	s.finish()

	if s.svc.opts.Dispatcher == nil {
		return
	}
	dispatched := time.Now()
	err := s.svc.opts.Dispatcher.Dispatch(s.id, still, func(r analysis.Result) {
		s.onAnalysis(r, time.Since(dispatched))
	})
	if err != nil {
		logger.WithSession(s.id).WithError(err).Error("Failed to queue skin analysis")
		s.onAnalysis(analysis.Result{CaptureID: still.ID, Err: err}, 0)
	}
}

func (s *Session) onAnalysis(r analysis.Result, took time.Duration) {
	if r.Err != nil {
		s.svc.publish(observer.SessionEvent{
			EventType:    observer.AnalysisFailed,
			SessionID:    s.id,
			CaptureID:    r.CaptureID,
			Duration:     took,
			ErrorMessage: r.Err.Error(),
		})
		s.sink(models.ServerMessage{
			Type:      models.MessageError,
			SessionID: s.id,
			CaptureID: r.CaptureID,
			Message:   "Analysis failed. Please try again.",
		})
		return
	}

	s.svc.publish(observer.SessionEvent{
		EventType: observer.AnalysisCompleted,
		SessionID: s.id,
		CaptureID: r.CaptureID,
		Duration:  took,
		Success:   true,
	})
	s.sink(models.ServerMessage{
		Type:      models.MessageAnalysis,
		SessionID: s.id,
		CaptureID: r.CaptureID,
		ImageURL:  r.ImageURL,
		Analysis:  r.Analysis,
	})
}

func (s *Session) onError(err error) {
	logger.WithSession(s.id).WithFields(logrus.Fields{"error": err.Error()}).Warn("Capture session error")
	s.sink(models.ServerMessage{Type: models.MessageError, SessionID: s.id, Message: err.Error()})
}

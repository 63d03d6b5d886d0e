package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionEvent represents a capture session lifecycle event
type SessionEvent struct {
	EventType EventType     `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	CaptureID string        `json:"capture_id,omitempty"`
	Detector  string        `json:"detector,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	// Success is false for failure events
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of session event
type EventType string

const (
	// SessionStarted when a capture session opens
	SessionStarted EventType = "session_started"
	// DetectorReady when the landmark detector finished loading
	DetectorReady EventType = "detector_ready"
	// DetectorFailed when the landmark detector could not load
	DetectorFailed EventType = "detector_failed"
	// CaptureEnabled when the stability gate opens
	CaptureEnabled EventType = "capture_enabled"
	// CountdownStarted when the user requested a capture
	CountdownStarted EventType = "countdown_started"
	// Captured when a still was frozen
	Captured EventType = "captured"
	// AnalysisCompleted when the webhook returned a result
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the webhook failed
	AnalysisFailed EventType = "analysis_failed"
	// SessionStopped when a capture session closes
	SessionStopped EventType = "session_stopped"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SessionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SessionEvent)
}

// LoggingObserver logs session events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles session events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event SessionEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"session_id": event.SessionID,
	}
	if event.CaptureID != "" {
		fields["capture_id"] = event.CaptureID
	}
	if event.Detector != "" {
		fields["detector"] = event.Detector
	}
	if event.Duration > 0 {
		fields["duration_sec"] = event.Duration.Seconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case SessionStarted:
		entry.Info("Capture session started")
	case DetectorReady:
		entry.Debug("Landmark detector ready")
	case DetectorFailed:
		entry.Warn("Landmark detector unavailable, capture disabled")
	case CaptureEnabled:
		entry.Debug("Capture enabled")
	case CountdownStarted:
		entry.Info("Capture countdown started")
	case Captured:
		entry.Info("Still captured")
	case AnalysisCompleted:
		entry.Info("Skin analysis completed")
	case AnalysisFailed:
		entry.Error("Skin analysis failed")
	case SessionStopped:
		entry.Info("Capture session stopped")
	default:
		entry.Info("Session event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from session events
type MetricsObserver struct {
	mu                sync.RWMutex
	sessionsStarted   int64
	sessionsStopped   int64
	detectorFailures  int64
	gateOpenings      int64
	countdowns        int64
	captures          int64
	analysesCompleted int64
	analysesFailed    int64
	timeToCapture     time.Duration
	analysisTime      time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles session events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event SessionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SessionStarted:
		o.sessionsStarted++
	case SessionStopped:
		o.sessionsStopped++
	case DetectorFailed:
		o.detectorFailures++
	case CaptureEnabled:
		o.gateOpenings++
	case CountdownStarted:
		o.countdowns++
	case Captured:
		o.captures++
		o.timeToCapture += event.Duration
	case AnalysisCompleted:
		o.analysesCompleted++
		o.analysisTime += event.Duration
	case AnalysisFailed:
		o.analysesFailed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgTimeToCapture := 0.0
	if o.captures > 0 {
		avgTimeToCapture = (o.timeToCapture / time.Duration(o.captures)).Seconds()
	}
	avgAnalysisTime := 0.0
	if o.analysesCompleted > 0 {
		avgAnalysisTime = (o.analysisTime / time.Duration(o.analysesCompleted)).Seconds()
	}

	return map[string]interface{}{
		"sessions_started":        o.sessionsStarted,
		"sessions_active":         o.sessionsStarted - o.sessionsStopped,
		"sessions_stopped":        o.sessionsStopped,
		"detector_failures":       o.detectorFailures,
		"capture_gate_openings":   o.gateOpenings,
		"countdowns_started":      o.countdowns,
		"captures":                o.captures,
		"analyses_completed":      o.analysesCompleted,
		"analyses_failed":         o.analysesFailed,
		"avg_time_to_capture_sec": avgTimeToCapture,
		"avg_analysis_time_sec":   avgAnalysisTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Each observer runs on
// its own goroutine so a slow sink never stalls a capture session.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SessionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var errNoFrame = errors.New("no frame available to capture")

// Monitor owns one capture session: the landmark source, the evaluator and its
// scratch buffer, the stability gate, the frame loop and the countdown timer.
// All state changes happen under one lock so judgments apply in the order
// frames were sampled.
type Monitor struct {
	opts      MonitorOptions
	clock     clock.Clock
	source    *Source
	video     VideoSource
	evaluator *Evaluator
	gate      *Gate

	mu             sync.Mutex
	pending        []func()
	draining       bool
	started        bool
	stopped        bool
	cancelLoop     context.CancelFunc
	countdown      int
	countdownTimer *clock.Timer
	lastStatus     Status
	hasStatus      bool
	lastImage      image.Image
}

// NewMonitor creates a session around a source and the video it polls
func NewMonitor(source *Source, video VideoSource, opts MonitorOptions) *Monitor {
	opts = opts.normalized()
	return &Monitor{
		opts:      opts,
		clock:     opts.Clock,
		source:    source,
		video:     video,
		evaluator: NewEvaluator(opts.Thresholds),
		gate:      NewGate(opts.Thresholds),
	}
}

// Start loads the detector and begins the frame loop
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrSessionClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancelLoop = cancel
	m.mu.Unlock()

	m.source.Start(loopCtx)
	go m.run(loopCtx)
	return nil
}

// run ticks once per frame interval. The ticker drops ticks the loop could not
// keep up with, so a stalled host never builds a backlog.
func (m *Monitor) run(ctx context.Context) {
	ticker := m.clock.Ticker(m.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick performs at most one poll, one evaluation and one gate update
func (m *Monitor) Tick() {
	m.mu.Lock()
	if m.stopped || m.countdown > 0 {
		m.mu.Unlock()
		return
	}

	if !m.source.Ready() {
		status := m.statusLocked()
		if m.hasStatus && status == m.lastStatus {
			m.mu.Unlock()
			return
		}
		m.lastStatus, m.hasStatus = status, true
		m.unlockAndEmit(func() { m.emitStatus(status) })
		return
	}

	sample, fresh := m.source.Poll(m.video)
	if !fresh {
		m.mu.Unlock()
		return
	}

	judgment := m.evaluator.Evaluate(sample.Landmarks, sample.Frame.Image)
	m.gate.Apply(judgment)
	if sample.Frame.Image != nil {
		m.lastImage = sample.Frame.Image
	}

	status := m.statusLocked()
	m.lastStatus, m.hasStatus = status, true
	m.unlockAndEmit(func() { m.emitStatus(status) })
}

// Status returns a snapshot of the session state
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// CaptureEnabled reports whether RequestCapture would start a countdown
func (m *Monitor) CaptureEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captureEnabledLocked()
}

func (m *Monitor) captureEnabledLocked() bool {
	return !m.stopped && m.countdown == 0 && m.source.Ready() && m.gate.CaptureEnabled()
}

func (m *Monitor) statusLocked() Status {
	lighting, luminance := m.evaluator.Lighting()
	status := Status{
		DetectorState: m.source.State(),
		Position:      PositionPoor,
		Lighting:      lighting,
		Luminance:     luminance,
	}

	switch status.DetectorState {
	case DetectorLoading:
		status.Feedback = FeedbackLoading
		return status
	case DetectorFailed:
		status.Feedback = FeedbackUnavailable
		return status
	}

	judgment := m.gate.Judgment()
	status.FaceDetected = judgment.FaceDetected
	status.Position = judgment.Position
	status.Stability = m.gate.Stability()
	status.Feedback = m.gate.Feedback()
	status.CaptureEnabled = m.captureEnabledLocked()
	status.Countdown = m.countdown
	if m.countdown > 0 {
		status.Feedback = FeedbackCountdown
	}
	return status
}

// RequestCapture starts the countdown. It fails unless the gate is open.
func (m *Monitor) RequestCapture() error {
	m.mu.Lock()
	switch {
	case m.stopped:
		m.mu.Unlock()
		return ErrSessionClosed
	case m.countdown > 0:
		m.mu.Unlock()
		return ErrCountdownActive
	case m.source.State() == DetectorFailed:
		m.mu.Unlock()
		return ErrDetectorUnavailable
	case !m.captureEnabledLocked():
		m.mu.Unlock()
		return ErrCaptureNotReady
	}

	m.countdown = m.opts.CountdownFrom
	m.countdownTimer = m.clock.AfterFunc(m.opts.CountdownTick, m.countdownTick)
	remaining := m.countdown
	status := m.statusLocked()
	m.unlockAndEmit(func() {
		m.emitCountdown(remaining)
		m.emitStatus(status)
	})
	return nil
}

// countdownTick runs once per countdown second. Judgments are frozen while it
// runs; at zero one frame is encoded and the session ends.
func (m *Monitor) countdownTick() {
	m.mu.Lock()
	if m.stopped || m.countdown == 0 {
		m.mu.Unlock()
		return
	}

	m.countdown--
	if m.countdown > 0 {
		m.countdownTimer = m.clock.AfterFunc(m.opts.CountdownTick, m.countdownTick)
		remaining := m.countdown
		m.unlockAndEmit(func() { m.emitCountdown(remaining) })
		return
	}
	m.countdownTimer = nil

	still, err := m.freezeLocked()
	if err != nil {
		m.gate.Reset()
		status := m.statusLocked()
		m.unlockAndEmit(func() {
			m.emitError(fmt.Errorf("capture failed: %w", err))
			m.emitStatus(status)
		})
		return
	}

	releaseErr := m.teardownLocked()
	m.unlockAndEmit(func() {
		m.emitCountdown(0)
		m.emitCapture(still)
		if releaseErr != nil {
			m.emitError(fmt.Errorf("release detector: %w", releaseErr))
		}
	})
}

func (m *Monitor) freezeLocked() (Still, error) {
	var img image.Image
	if m.video != nil {
		img = m.video.Frame().Image
	}
	if img == nil {
		img = m.lastImage
	}
	if img == nil {
		return Still{}, errNoFrame
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(m.opts.JPEGQuality)); err != nil {
		return Still{}, err
	}

	bounds := img.Bounds()
	return Still{
		ID:         uuid.NewString(),
		JPEG:       buf.Bytes(),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		CapturedAt: m.clock.Now(),
		Judgment:   m.gate.Judgment(),
	}, nil
}

// Flip handles a camera switch: framing and lighting cannot carry over between
// sensors, so stability, lighting and the last sample are discarded and a
// running countdown is cancelled.
func (m *Monitor) Flip() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrSessionClosed
	}

	m.cancelCountdownLocked()
	m.gate.Reset()
	m.evaluator.Reset()
	m.source.ResetTimeline()
	m.lastImage = nil

	status := m.statusLocked()
	m.lastStatus, m.hasStatus = status, true
	m.unlockAndEmit(func() { m.emitStatus(status) })
	return nil
}

// Stop ends the session: the loop is cancelled, the detector released, any
// countdown cancelled and stability reset, all under the session lock.
// Calling Stop again is a no-op.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	return m.teardownLocked()
}

// DetectorErr returns why the detector failed to load, if it did
func (m *Monitor) DetectorErr() error {
	return m.source.Err()
}

// Stopped reports whether the session has ended
func (m *Monitor) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Monitor) teardownLocked() error {
	m.stopped = true
	if m.cancelLoop != nil {
		m.cancelLoop()
	}
	m.cancelCountdownLocked()
	m.gate.Reset()
	m.evaluator.Reset()
	m.lastImage = nil
	return m.source.Release()
}

func (m *Monitor) cancelCountdownLocked() {
	if m.countdownTimer != nil {
		m.countdownTimer.Stop()
		m.countdownTimer = nil
	}
	m.countdown = 0
}

// unlockAndEmit queues emit behind earlier events and releases the session
// lock. The first caller to find the queue idle delivers every queued event
// in order with no lock held; other callers, including hooks calling back
// into the monitor, only enqueue.
func (m *Monitor) unlockAndEmit(emit func()) {
	m.pending = append(m.pending, emit)
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func (m *Monitor) emitStatus(status Status) {
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(status)
	}
}

func (m *Monitor) emitCountdown(remaining int) {
	if m.opts.OnCountdown != nil {
		m.opts.OnCountdown(remaining)
	}
}

func (m *Monitor) emitCapture(still Still) {
	if m.opts.OnCapture != nil {
		m.opts.OnCapture(still)
	}
}

func (m *Monitor) emitError(err error) {
	if m.opts.OnError != nil {
		m.opts.OnError(err)
	}
}

package analysis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"glow-capture/internal/capture"
	"glow-capture/internal/logger"
	"glow-capture/internal/storage"
	"glow-capture/pkg/models"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of one dispatched still
type Result struct {
	CaptureID string
	ImageURL  string
	Analysis  *models.SkinAnalysis
	Err       error
}

// Stats counts dispatched jobs
type Stats struct {
	Submitted int64 `json:"submitted"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Dispatcher archives captured stills and analyses them off the capture loop
type Dispatcher struct {
	pool    *WorkerPool
	client  Client
	archive storage.Archive
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher creates a started dispatcher. client may be nil when no
// webhook is configured; stills are then only archived.
func NewDispatcher(pool *WorkerPool, client Client, archive storage.Archive, timeout time.Duration) *Dispatcher {
	if archive == nil {
		archive = storage.NewNoopArchive()
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start()
	return &Dispatcher{
		pool:    pool,
		client:  client,
		archive: archive,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dispatch queues a still. done is called from a worker goroutine.
func (d *Dispatcher) Dispatch(sessionID string, still capture.Still, done func(Result)) error {
	err := d.pool.Submit(func() {
		done(d.process(sessionID, still))
	})
	if err != nil {
		d.rejected.Add(1)
		return err
	}
	d.submitted.Add(1)
	return nil
}

func (d *Dispatcher) process(sessionID string, still capture.Still) Result {
	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	log := logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"capture_id": still.ID,
	})
	result := Result{CaptureID: still.ID}

	url, err := d.archive.Store(ctx, archiveName(sessionID, still), still.JPEG, "image/jpeg")
	if err != nil {
		// Analysis does not depend on the archived copy
		log.WithError(err).Warn("Failed to archive capture")
	}
	result.ImageURL = url

	if d.client == nil {
		d.completed.Add(1)
		return result
	}

	start := time.Now()
	analysis, err := d.client.Analyze(ctx, still.JPEG)
	if err != nil {
		d.failed.Add(1)
		log.WithError(err).Error("Skin analysis failed")
		result.Err = err
		return result
	}

	analysis.CaptureID = still.ID
	analysis.ImageURL = url
	result.Analysis = analysis
	d.completed.Add(1)

	log.WithFields(logrus.Fields{
		"glow_score":          analysis.GlowScore,
		"processing_time_sec": time.Since(start).Seconds(),
	}).Info("Skin analysis completed")
	return result
}

func archiveName(sessionID string, still capture.Still) string {
	return fmt.Sprintf("%s/%s/%s.jpg", still.CapturedAt.UTC().Format("2006-01-02"), sessionID, still.ID)
}

// Stats returns the job counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Rejected:  d.rejected.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
	}
}

// Close stops accepting stills, cancels in-flight requests after the grace
// context ends and waits for workers to finish
func (d *Dispatcher) Close(ctx context.Context) {
	d.pool.Close()

	done := make(chan struct{})
	go func() {
		d.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
}

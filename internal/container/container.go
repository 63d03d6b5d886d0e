package container

import (
	"context"
	"fmt"
	"net/http"

	"glow-capture/internal/analysis"
	"glow-capture/internal/capture"
	"glow-capture/internal/config"
	"glow-capture/internal/detector"
	"glow-capture/internal/factory"
	"glow-capture/internal/logger"
	"glow-capture/internal/observer"
	"glow-capture/internal/service"
	"glow-capture/internal/storage"
	"glow-capture/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config         *config.Config
	archive        storage.Archive
	dispatcher     *analysis.Dispatcher
	events         observer.Subject
	metrics        *observer.MetricsObserver
	captureService service.CaptureService
	handler        http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger.SetLevel(cfg.LogLevel)

	kind, err := detector.ParseKind(cfg.Detector)
	if err != nil {
		return nil, err
	}
	pigoOpts := detector.DefaultPigoOptions()
	pigoOpts.FacefinderPath = cfg.PigoFacefinderPath
	pigoOpts.PuplocPath = cfg.PigoPuplocPath
	detectors := factory.NewDetectorFactory(kind, pigoOpts)

	archives := factory.NewArchiveFactory(storage.AzureOptions{
		AccountName: cfg.AzureAccount,
		AccountKey:  cfg.AzureKey,
		Container:   cfg.AzureContainer,
		ServiceURL:  cfg.AzureServiceURL,
	})
	archive, err := archives.CreateArchive(factory.ArchiveType(cfg.Archive))
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	var client analysis.Client
	if cfg.AnalysisEnabled() {
		opts := analysis.DefaultClientOptions(cfg.AnalysisWebhookURL)
		opts.APIKey = cfg.AnalysisAPIKey
		opts.Timeout = cfg.AnalysisTimeout
		client = analysis.NewClient(opts)
	} else {
		logger.Warn("ANALYSIS_WEBHOOK_URL not set, captured stills will not be analysed")
	}
	// Each attempt gets the client timeout, plus backoff between attempts
	dispatcher := analysis.NewDispatcher(analysis.NewWorkerPool(cfg.AnalysisWorkers), client, archive, 0)

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	monitorOpts := capture.DefaultMonitorOptions().WithThresholds(cfg.Thresholds)
	monitorOpts.FrameInterval = cfg.FrameInterval
	monitorOpts.CountdownFrom = cfg.CountdownSeconds

	captureService := service.NewCaptureService(service.Options{
		Monitor:     monitorOpts,
		MaxSessions: cfg.MaxSessions,
		Detectors:   detectors,
		Dispatcher:  dispatcher,
		Events:      events,
		Metrics:     metrics,
	})
	handler := transport.NewHandler(captureService, cfg)

	return &Container{
		config:         cfg,
		archive:        archive,
		dispatcher:     dispatcher,
		events:         events,
		metrics:        metrics,
		captureService: captureService,
		handler:        handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// CaptureService returns the capture service
func (c *Container) CaptureService() service.CaptureService {
	return c.captureService
}

// Shutdown stops open sessions and waits for queued analyses until ctx ends
func (c *Container) Shutdown(ctx context.Context) {
	c.captureService.Close(ctx)
}

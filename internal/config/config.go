package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"glow-capture/internal/capture"
	"glow-capture/internal/detector"
	"glow-capture/pkg/validation"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	MaxSessions        int

	// Capture loop
	FrameInterval    time.Duration
	CountdownSeconds int
	Thresholds       capture.Thresholds
	ThresholdsFile   string

	// Landmark detector
	Detector           string
	PigoFacefinderPath string
	PigoPuplocPath     string

	// Analysis webhook
	AnalysisWebhookURL string
	AnalysisAPIKey     string
	AnalysisTimeout    time.Duration
	AnalysisWorkers    int

	// Capture archive
	Archive         string
	AzureAccount    string
	AzureKey        string
	AzureContainer  string
	AzureServiceURL string

	LogLevel string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AnalysisEnabled reports whether captured stills are sent for analysis
func (c *Config) AnalysisEnabled() bool {
	return c.AnalysisWebhookURL != ""
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxSessions:        int(parseIntOrDefault("MAX_SESSIONS", 64)),
		FrameInterval:      parseDurationOrDefault("FRAME_INTERVAL", 16*time.Millisecond),
		CountdownSeconds:   int(parseIntOrDefault("COUNTDOWN_SECONDS", 3)),
		ThresholdsFile:     strings.TrimSpace(os.Getenv("THRESHOLDS_FILE")),
		Detector:           strings.ToLower(getEnvOrDefault("DETECTOR", "pigo")),
		PigoFacefinderPath: getEnvOrDefault("PIGO_FACEFINDER_PATH", "cascade/facefinder"),
		PigoPuplocPath:     os.Getenv("PIGO_PUPLOC_PATH"),
		AnalysisWebhookURL: strings.TrimSpace(os.Getenv("ANALYSIS_WEBHOOK_URL")),
		AnalysisAPIKey:     os.Getenv("ANALYSIS_API_KEY"),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 60*time.Second),
		AnalysisWorkers:    int(parseIntOrDefault("ANALYSIS_WORKERS", 4)),
		Archive:            strings.ToLower(getEnvOrDefault("ARCHIVE", "none")),
		AzureAccount:       os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:           os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer:     getEnvOrDefault("AZURE_STORAGE_CONTAINER", "captures"),
		AzureServiceURL:    os.Getenv("AZURE_STORAGE_SERVICE_URL"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		Thresholds:         capture.DefaultThresholds(),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("MAX_SESSIONS must be > 0 (got %d)", cfg.MaxSessions)
	}
	if cfg.CountdownSeconds < 1 || cfg.CountdownSeconds > 10 {
		return nil, fmt.Errorf("COUNTDOWN_SECONDS must be in [1, 10] (got %d)", cfg.CountdownSeconds)
	}
	if cfg.AnalysisWorkers <= 0 {
		return nil, fmt.Errorf("ANALYSIS_WORKERS must be > 0 (got %d)", cfg.AnalysisWorkers)
	}

	if _, err := detector.ParseKind(cfg.Detector); err != nil {
		return nil, fmt.Errorf("invalid DETECTOR: %w", err)
	}

	switch cfg.Archive {
	case "none", "memory":
	case "azure":
		if cfg.AzureAccount == "" || cfg.AzureKey == "" {
			return nil, fmt.Errorf("ARCHIVE=azure requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	default:
		return nil, fmt.Errorf("invalid ARCHIVE: %q (want none, memory or azure)", cfg.Archive)
	}

	if cfg.AnalysisEnabled() {
		if err := validation.NewURLValidator().ValidateWebhookURL(cfg.AnalysisWebhookURL); err != nil {
			return nil, fmt.Errorf("invalid ANALYSIS_WEBHOOK_URL: %w", err)
		}
	}

	if cfg.ThresholdsFile != "" {
		th, err := LoadThresholds(cfg.ThresholdsFile)
		if err != nil {
			return nil, err
		}
		cfg.Thresholds = th
	}
	cfg.Thresholds = applyThresholdEnv(cfg.Thresholds)
	if err := validation.ValidateThresholds(cfg.Thresholds); err != nil {
		return nil, fmt.Errorf("invalid capture thresholds: %w", err)
	}
	return cfg, nil
}

// applyThresholdEnv layers single-value environment overrides on top of the
// defaults or the thresholds file
func applyThresholdEnv(th capture.Thresholds) capture.Thresholds {
	th = th.WithLighting(
		parseFloatOrDefault("EXCELLENT_LUMINANCE", th.ExcellentLuminance),
		parseFloatOrDefault("GOOD_LUMINANCE", th.GoodLuminance),
	)
	th = th.WithSampling(
		int(parseIntOrDefault("SAMPLE_WIDTH", int64(th.SampleWidth))),
		int(parseIntOrDefault("SAMPLE_STRIDE", int64(th.SampleStride))),
	)
	return th.WithStability(
		int(parseIntOrDefault("STABILITY_THRESHOLD", int64(th.StabilityThreshold))),
		int(parseIntOrDefault("STABILITY_MAX", int64(th.StabilityMax))),
	)
}

// LoadThresholds reads a YAML file of capture thresholds. Keys missing from
// the file keep their default values.
func LoadThresholds(path string) (capture.Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return capture.Thresholds{}, fmt.Errorf("read thresholds file: %w", err)
	}
	return ParseThresholds(data)
}

// ParseThresholds decodes YAML thresholds over the defaults and validates them
func ParseThresholds(data []byte) (capture.Thresholds, error) {
	th := capture.DefaultThresholds()
	if err := yaml.Unmarshal(data, &th); err != nil {
		return capture.Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}
	if err := validation.ValidateThresholds(th); err != nil {
		return capture.Thresholds{}, err
	}
	return th, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

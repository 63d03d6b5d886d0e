package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glow-capture/internal/capture"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, 16*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 3, cfg.CountdownSeconds)
	assert.Equal(t, "pigo", cfg.Detector)
	assert.Equal(t, "none", cfg.Archive)
	assert.False(t, cfg.AnalysisEnabled())
	assert.Equal(t, capture.DefaultThresholds(), cfg.Thresholds)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", " 9090 ")
	t.Setenv("DETECTOR", "Client")
	t.Setenv("COUNTDOWN_SECONDS", "5")
	t.Setenv("FRAME_INTERVAL", "33ms")
	t.Setenv("ANALYSIS_WEBHOOK_URL", "https://hooks.example.com/analyze")
	t.Setenv("ARCHIVE", "memory")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ServerAddress())
	assert.Equal(t, "client", cfg.Detector)
	assert.Equal(t, 5, cfg.CountdownSeconds)
	assert.Equal(t, 33*time.Millisecond, cfg.FrameInterval)
	assert.True(t, cfg.AnalysisEnabled())
	assert.Equal(t, "memory", cfg.Archive)
}

func TestLoadFromEnvRejects(t *testing.T) {
	tests := map[string][2]string{
		"bad port":         {"PORT", "http"},
		"port range":       {"PORT", "70000"},
		"bad detector":     {"DETECTOR", "mediapipe"},
		"bad archive":      {"ARCHIVE", "s3"},
		"azure no creds":   {"ARCHIVE", "azure"},
		"long countdown":   {"COUNTDOWN_SECONDS", "30"},
		"bad webhook":      {"ANALYSIS_WEBHOOK_URL", "ftp://example.com"},
		"zero workers":     {"ANALYSIS_WORKERS", "0"},
		"missing file":     {"THRESHOLDS_FILE", "/does/not/exist.yaml"},
		"negative session": {"MAX_SESSIONS", "-1"},
		"stability above":  {"STABILITY_THRESHOLD", "20"},
		"zero stride":      {"SAMPLE_STRIDE", "0"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestParseThresholds(t *testing.T) {
	th, err := ParseThresholds([]byte("sample_stride: 8\ngood_luminance: 110\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, th.SampleStride)
	assert.Equal(t, 110.0, th.GoodLuminance)
	assert.Equal(t, 170.0, th.ExcellentLuminance, "unset keys keep their defaults")

	_, err = ParseThresholds([]byte("stability_threshold: 12\n"))
	assert.Error(t, err, "threshold above the counter cap")

	_, err = ParseThresholds([]byte("sample_stride: [1"))
	assert.Error(t, err)
}

func TestLoadThresholdsFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("center_tolerance: 0.1\n"), 0o600))
	t.Setenv("THRESHOLDS_FILE", path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Thresholds.CenterTolerance)
}

func TestThresholdEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("good_luminance: 100\nsample_stride: 2\n"), 0o600))
	t.Setenv("THRESHOLDS_FILE", path)
	t.Setenv("EXCELLENT_LUMINANCE", "180")
	t.Setenv("SAMPLE_WIDTH", "320")
	t.Setenv("STABILITY_THRESHOLD", "4")
	t.Setenv("STABILITY_MAX", "6")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 180.0, cfg.Thresholds.ExcellentLuminance)
	assert.Equal(t, 100.0, cfg.Thresholds.GoodLuminance, "file value survives")
	assert.Equal(t, 320, cfg.Thresholds.SampleWidth)
	assert.Equal(t, 2, cfg.Thresholds.SampleStride, "file value survives")
	assert.Equal(t, 4, cfg.Thresholds.StabilityThreshold)
	assert.Equal(t, 6, cfg.Thresholds.StabilityMax)
}

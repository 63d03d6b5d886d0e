package validation

import (
	"fmt"
	"strings"

	"glow-capture/internal/capture"
	apperrors "glow-capture/internal/errors"
)

// ThresholdIssue describes one inconsistent capture threshold
type ThresholdIssue struct {
	Field   string  `json:"field"`
	Message string  `json:"message"`
	Value   float64 `json:"value"`
}

// CheckThresholds lists every inconsistent value in t
func CheckThresholds(t capture.Thresholds) []ThresholdIssue {
	var issues []ThresholdIssue
	add := func(field string, value float64, format string, args ...interface{}) {
		issues = append(issues, ThresholdIssue{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Value:   value,
		})
	}

	if t.CenterTolerance <= 0 || t.CenterTolerance >= 0.5 {
		add("center_tolerance", t.CenterTolerance, "must be in (0, 0.5)")
	}
	if t.MinFaceHeight <= 0 || t.MinFaceHeight >= 1 {
		add("min_face_height", t.MinFaceHeight, "must be in (0, 1)")
	}
	if t.MaxFaceHeight <= t.MinFaceHeight || t.MaxFaceHeight > 1 {
		add("max_face_height", t.MaxFaceHeight, "must be in (min_face_height, 1]")
	}
	if t.MaxAspectRatio <= 0 {
		add("max_aspect_ratio", t.MaxAspectRatio, "must be > 0")
	}

	if t.SampleWidth < 8 || t.SampleWidth > 1920 {
		add("sample_width", float64(t.SampleWidth), "must be in [8, 1920]")
	}
	if t.SampleStride < 1 {
		add("sample_stride", float64(t.SampleStride), "must be >= 1")
	}
	if t.GoodLuminance < 0 || t.GoodLuminance >= 255 {
		add("good_luminance", t.GoodLuminance, "must be in [0, 255)")
	}
	if t.ExcellentLuminance <= t.GoodLuminance || t.ExcellentLuminance > 255 {
		add("excellent_luminance", t.ExcellentLuminance, "must be in (good_luminance, 255]")
	}

	if t.StabilityThreshold < 1 {
		add("stability_threshold", float64(t.StabilityThreshold), "must be >= 1")
	}
	if t.StabilityMax < t.StabilityThreshold {
		add("stability_max", float64(t.StabilityMax), "must be >= stability_threshold (%d)", t.StabilityThreshold)
	}

	return issues
}

// ValidateThresholds returns a validation error naming every issue in t
func ValidateThresholds(t capture.Thresholds) error {
	issues := CheckThresholds(t)
	if len(issues) == 0 {
		return nil
	}

	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = fmt.Sprintf("%s %s (got %g)", issue.Field, issue.Message, issue.Value)
	}
	return apperrors.NewValidationError("invalid capture thresholds", nil).
		WithDetails(strings.Join(parts, "; "))
}

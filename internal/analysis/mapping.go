package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"glow-capture/pkg/models"
)

var errInvalidFormat = errors.New("invalid webhook response format")

// RawAnalysis is the webhook's verdict. All scores are on a 0-100 scale.
type RawAnalysis struct {
	GlowScore float64 `json:"glowScore"`
	Evenness  float64 `json:"evenness"`
	Texture   float64 `json:"texture"`
	Wrinkles  float64 `json:"wrinkles"`
}

type envelope struct {
	Analysis *RawAnalysis `json:"analysis"`
}

// ParseWebhookResponse accepts either an object with an "analysis" field or
// an array whose first element has one
func ParseWebhookResponse(body []byte) (RawAnalysis, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return RawAnalysis{}, errInvalidFormat
	}

	if body[0] == '[' {
		var list []envelope
		if err := json.Unmarshal(body, &list); err != nil {
			return RawAnalysis{}, err
		}
		if len(list) == 0 || list[0].Analysis == nil {
			return RawAnalysis{}, errInvalidFormat
		}
		return *list[0].Analysis, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return RawAnalysis{}, err
	}
	if env.Analysis == nil {
		return RawAnalysis{}, errInvalidFormat
	}
	return *env.Analysis, nil
}

// MapAnalysis turns the webhook's scores into per-concern metrics. Evenness
// drives acne, redness and dark spots; wrinkles drive fine lines.
func MapAnalysis(raw RawAnalysis, id string, at time.Time) models.SkinAnalysis {
	metrics := models.SkinMetrics{
		Acne:      mapMetric(100-raw.Evenness, "Blemishes and breakouts"),
		Redness:   mapMetric(100-raw.Evenness, "Skin inflammation"),
		Texture:   mapMetric(raw.Texture, "Skin smoothness"),
		FineLines: mapMetric(100-raw.Wrinkles, "Early signs of aging"),
		DarkSpots: mapMetric(100-raw.Evenness, "Pigmentation issues"),
	}

	ranked := metrics.Ordered()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Metric.Score > ranked[j].Metric.Score
	})

	return models.SkinAnalysis{
		ID:        id,
		Timestamp: at.UnixMilli(),
		GlowScore: int(math.Round(raw.GlowScore)),
		Strength:  capitalize(ranked[0].Name),
		FocusArea: capitalize(ranked[len(ranked)-1].Name),
		Metrics:   metrics,
		Unlocked:  false,
	}
}

// mapMetric grades on the unrounded score
func mapMetric(score float64, description string) models.Metric {
	severity := models.SeverityHigh
	switch {
	case score >= 70:
		severity = models.SeverityLow
	case score >= 40:
		severity = models.SeverityMedium
	}
	return models.Metric{
		Score:       int(math.Round(score)),
		Severity:    severity,
		Description: description,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

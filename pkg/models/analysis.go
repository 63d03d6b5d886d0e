package models

// Severity grades how much attention a skin metric needs
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Metric is one scored skin concern. Higher scores are better.
type Metric struct {
	Score       int      `json:"score"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// SkinMetrics holds the per-concern scores of a scan
type SkinMetrics struct {
	Acne      Metric `json:"acne"`
	Redness   Metric `json:"redness"`
	Texture   Metric `json:"texture"`
	FineLines Metric `json:"fineLines"`
	DarkSpots Metric `json:"darkSpots"`
}

// NamedMetric pairs a metric with its JSON name
type NamedMetric struct {
	Name   string
	Metric Metric
}

// Ordered returns the metrics in display order
func (m SkinMetrics) Ordered() []NamedMetric {
	return []NamedMetric{
		{"acne", m.Acne},
		{"redness", m.Redness},
		{"texture", m.Texture},
		{"fineLines", m.FineLines},
		{"darkSpots", m.DarkSpots},
	}
}

// SkinAnalysis is the result of analysing one captured still
type SkinAnalysis struct {
	ID        string      `json:"id"`
	CaptureID string      `json:"capture_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
	ImageURL  string      `json:"image_url,omitempty"`
	GlowScore int         `json:"glowScore"`
	Strength  string      `json:"strength"`
	FocusArea string      `json:"focusArea"`
	Metrics   SkinMetrics `json:"metrics"`
	Unlocked  bool        `json:"unlocked"`
}

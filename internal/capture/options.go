package capture

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Thresholds holds the tunable constants of position, lighting and stability
// evaluation. The lighting values were tuned empirically on phone cameras.
type Thresholds struct {
	// Position
	CenterTolerance float64 `yaml:"center_tolerance"`
	MinFaceHeight   float64 `yaml:"min_face_height"`
	MaxFaceHeight   float64 `yaml:"max_face_height"`
	MaxAspectRatio  float64 `yaml:"max_aspect_ratio"`

	// Lighting
	SampleWidth        int     `yaml:"sample_width"`
	SampleStride       int     `yaml:"sample_stride"`
	ExcellentLuminance float64 `yaml:"excellent_luminance"`
	GoodLuminance      float64 `yaml:"good_luminance"`

	// Stability
	StabilityThreshold int `yaml:"stability_threshold"`
	StabilityMax       int `yaml:"stability_max"`
}

// DefaultThresholds returns the thresholds used for arm's-length selfies
func DefaultThresholds() Thresholds {
	return Thresholds{
		CenterTolerance:    0.12,
		MinFaceHeight:      0.35,
		MaxFaceHeight:      0.85,
		MaxAspectRatio:     1.1,
		SampleWidth:        160,
		SampleStride:       16,
		ExcellentLuminance: 170,
		GoodLuminance:      120,
		StabilityThreshold: 6,
		StabilityMax:       10,
	}
}

// WithLighting returns thresholds with custom luminance cutoffs
func (t Thresholds) WithLighting(excellent, good float64) Thresholds {
	t.ExcellentLuminance = excellent
	t.GoodLuminance = good
	return t
}

// WithSampling returns thresholds with a custom working width and pixel stride
func (t Thresholds) WithSampling(width, stride int) Thresholds {
	t.SampleWidth = width
	t.SampleStride = stride
	return t
}

// WithStability returns thresholds with a custom gate threshold and counter cap
func (t Thresholds) WithStability(threshold, max int) Thresholds {
	t.StabilityThreshold = threshold
	t.StabilityMax = max
	return t
}

// MonitorOptions configures a capture session
type MonitorOptions struct {
	Thresholds Thresholds

	// Frame loop
	FrameInterval time.Duration

	// Countdown
	CountdownFrom int
	CountdownTick time.Duration

	// Encoding of the frozen still
	JPEGQuality int

	// Clock drives the frame ticker and the countdown timer
	Clock clock.Clock

	// Hooks run one at a time, outside the session lock, in the order events
	// occur. A hook may call back into the monitor; events caused by that call
	// are delivered after the hook returns.
	OnStatus    func(Status)
	OnCountdown func(remaining int)
	OnCapture   func(Still)
	OnError     func(error)
}

// DefaultMonitorOptions returns options for a ~60Hz loop and a 3-2-1 countdown
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		Thresholds:    DefaultThresholds(),
		FrameInterval: 16 * time.Millisecond,
		CountdownFrom: 3,
		CountdownTick: time.Second,
		JPEGQuality:   90,
		Clock:         clock.New(),
	}
}

// WithClock returns options driven by the given clock
func (o MonitorOptions) WithClock(c clock.Clock) MonitorOptions {
	o.Clock = c
	return o
}

// WithThresholds returns options with custom evaluation thresholds
func (o MonitorOptions) WithThresholds(t Thresholds) MonitorOptions {
	o.Thresholds = t
	return o
}

func (o MonitorOptions) normalized() MonitorOptions {
	def := DefaultMonitorOptions()
	if o.FrameInterval <= 0 {
		o.FrameInterval = def.FrameInterval
	}
	if o.CountdownFrom <= 0 {
		o.CountdownFrom = def.CountdownFrom
	}
	if o.CountdownTick <= 0 {
		o.CountdownTick = def.CountdownTick
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = def.JPEGQuality
	}
	if o.Clock == nil {
		o.Clock = def.Clock
	}
	if o.Thresholds == (Thresholds{}) {
		o.Thresholds = def.Thresholds
	}
	return o
}

package capture

// User-facing feedback
const (
	FeedbackNoFace      = "Position your face in the oval"
	FeedbackHoldStill   = "Perfect! Hold still..."
	FeedbackCenter      = "Almost there - center your face"
	FeedbackMoveCloser  = "Move closer to the camera"
	FeedbackLoading     = "Preparing face guidance..."
	FeedbackUnavailable = "Face guidance unavailable"
	FeedbackCountdown   = "Hold still..."
)

// Gate accumulates consecutive qualifying judgments into a stability counter
// and decides whether capture is allowed. A single disqualifying frame resets
// the counter to zero.
type Gate struct {
	thresholds Thresholds
	stability  int
	judgment   Judgment
	feedback   string
}

// NewGate creates a gate in the no-face state
func NewGate(t Thresholds) *Gate {
	g := &Gate{thresholds: t}
	g.Reset()
	return g
}

// Apply feeds one judgment to the gate
func (g *Gate) Apply(j Judgment) {
	g.judgment = j

	switch {
	case !j.FaceDetected:
		g.stability = 0
		g.feedback = FeedbackNoFace
	case j.Position == PositionPerfect && j.Lighting != LightingDark:
		if g.stability < g.thresholds.StabilityMax {
			g.stability++
		}
		g.feedback = FeedbackHoldStill
	case j.Position == PositionAdjust:
		g.stability = 0
		g.feedback = FeedbackCenter
	default:
		g.stability = 0
		g.feedback = FeedbackMoveCloser
	}
}

// Qualifies reports whether a judgment counts toward stability
func (g *Gate) Qualifies(j Judgment) bool {
	return j.FaceDetected && j.Position == PositionPerfect && j.Lighting != LightingDark
}

// CaptureEnabled reports whether the last judgment qualifies and the counter
// has reached the threshold
func (g *Gate) CaptureEnabled() bool {
	return g.Qualifies(g.judgment) && g.stability >= g.thresholds.StabilityThreshold
}

// Stability returns the current counter value
func (g *Gate) Stability() int {
	return g.stability
}

// Feedback returns the text for the current state
func (g *Gate) Feedback() string {
	return g.feedback
}

// Judgment returns the last applied judgment
func (g *Gate) Judgment() Judgment {
	return g.judgment
}

// Reset returns the gate to the no-face state
func (g *Gate) Reset() {
	g.stability = 0
	g.feedback = FeedbackNoFace
	g.judgment = Judgment{
		Position: PositionPoor,
		Lighting: LightingDark,
	}
}

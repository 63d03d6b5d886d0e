package models

// Client message types on the live capture socket
const (
	MessageFrame   = "frame"
	MessageCapture = "capture"
	MessageFlip    = "flip"
	MessageStop    = "stop"
)

// Server message types on the live capture socket
const (
	MessageStatus    = "status"
	MessageCountdown = "countdown"
	MessageCaptured  = "captured"
	MessageAnalysis  = "analysis"
	MessageError     = "error"
)

// Landmark is a normalized face point
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClientMessage is sent by the browser over the capture socket
type ClientMessage struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp,omitempty"`
	// Image is a base64 JPEG or PNG, optionally as a data URL
	Image     string     `json:"image,omitempty"`
	Landmarks []Landmark `json:"landmarks,omitempty"`
}

// ServerMessage is sent to the browser over the capture socket
// Note: Status uses interface{} to avoid an import cycle with the capture package
type ServerMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Status    interface{}   `json:"status,omitempty"`
	Value     *int          `json:"value,omitempty"`
	CaptureID string        `json:"capture_id,omitempty"`
	ImageURL  string        `json:"image_url,omitempty"`
	Analysis  *SkinAnalysis `json:"analysis,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// EvaluationResponse is the judgment of a single uploaded still
type EvaluationResponse struct {
	Timestamp         string     `json:"timestamp"`
	ProcessingTimeSec float64    `json:"processing_time_sec"`
	Width             int        `json:"width"`
	Height            int        `json:"height"`
	FaceDetected      bool       `json:"face_detected"`
	Position          string     `json:"position_quality"`
	Lighting          string     `json:"lighting_quality"`
	Luminance         float64    `json:"mean_luminance"`
	Feedback          string     `json:"feedback"`
	Landmarks         []Landmark `json:"landmarks,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

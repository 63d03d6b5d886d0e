package capture

import "errors"

var (
	// ErrCaptureNotReady indicates a capture request before the gate opened
	ErrCaptureNotReady = errors.New("capture not ready")

	// ErrCountdownActive indicates a capture request during a running countdown
	ErrCountdownActive = errors.New("capture countdown already running")

	// ErrSessionClosed indicates an operation on a stopped session
	ErrSessionClosed = errors.New("capture session closed")

	// ErrDetectorUnavailable indicates the landmark detector failed to load
	ErrDetectorUnavailable = errors.New("landmark detector unavailable")

	// ErrDetectorReleased is reported by a source released before its model loaded
	ErrDetectorReleased = errors.New("landmark detector released")
)

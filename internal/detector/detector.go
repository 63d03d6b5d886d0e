// Package detector provides capture.Detector backends: a pure-Go pigo face
// finder for raw frames and a pass-through for browser-computed landmarks.
package detector

import (
	"fmt"
	"strings"
)

// Kind names a detector backend
type Kind string

const (
	KindPigo   Kind = "pigo"
	KindClient Kind = "client"
)

// ParseKind validates a backend name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPigo, KindClient:
		return k, nil
	default:
		return "", fmt.Errorf("unknown detector %q (want %q or %q)", s, KindPigo, KindClient)
	}
}

package validation

import (
	"net/url"
	"strings"

	apperrors "glow-capture/internal/errors"
)

// URLValidator checks outbound endpoints such as the analysis webhook
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator creates a new URL validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateWebhookURL validates the endpoint captured stills are posted to
func (v *URLValidator) ValidateWebhookURL(webhookURL string) error {
	if strings.TrimSpace(webhookURL) == "" {
		return apperrors.NewValidationError("webhook URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(webhookURL)
	if err != nil {
		return apperrors.NewValidationError("invalid webhook URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("webhook URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("webhook URL must have a valid host", nil)
	}

	if parsedURL.User != nil {
		return apperrors.NewValidationError("webhook URL must not embed credentials", nil)
	}

	if !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("webhook URL host not allowed", nil)
	}

	return nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}

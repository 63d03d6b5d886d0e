// Package analysis sends captured stills to the skin analysis webhook and
// maps its response into a SkinAnalysis.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "glow-capture/internal/errors"
	"glow-capture/internal/logger"
	"glow-capture/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxResponseBytes bounds the webhook response body
const maxResponseBytes = 1 << 20

// Client analyses one JPEG still
type Client interface {
	Analyze(ctx context.Context, jpeg []byte) (*models.SkinAnalysis, error)
}

// ClientOptions configures the webhook client
type ClientOptions struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	Attempts int
	// Backoff returns the pause before retry number attempt (0-based)
	Backoff func(attempt int) time.Duration
}

// DefaultClientOptions returns 3 attempts with a linear 1s, 2s backoff
func DefaultClientOptions(url string) ClientOptions {
	return ClientOptions{
		URL:      url,
		Timeout:  60 * time.Second,
		Attempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
}

type webhookClient struct {
	opts   ClientOptions
	client *http.Client
	now    func() time.Time
	newID  func() string
}

// NewClient creates a webhook client
func NewClient(opts ClientOptions) Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = func(int) time.Duration { return 0 }
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &webhookClient{
		opts: opts,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Analyze posts the still and maps the webhook's verdict
func (c *webhookClient) Analyze(ctx context.Context, jpeg []byte) (*models.SkinAnalysis, error) {
	if len(jpeg) == 0 {
		return nil, apperrors.NewValidationError("empty image", nil)
	}

	body, err := c.post(ctx, jpeg)
	if err != nil {
		return nil, err
	}

	raw, err := ParseWebhookResponse(body)
	if err != nil {
		return nil, apperrors.NewProcessingError("invalid webhook response format", err)
	}

	analysis := MapAnalysis(raw, c.newID(), c.now())
	return &analysis, nil
}

// post sends the image, retrying transport failures and 5xx responses. 4xx
// responses are not retried.
func (c *webhookClient) post(ctx context.Context, jpeg []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.opts.Attempts; attempt++ {
		body, status, err := c.do(ctx, jpeg)
		switch {
		case err == nil && status >= 200 && status < 300:
			return body, nil
		case err != nil:
			lastErr = err
		case status >= 400 && status < 500:
			return nil, apperrors.NewNetworkError("analysis request rejected",
				fmt.Errorf("client error: status code %d", status)).WithDetails(string(body))
		default:
			lastErr = fmt.Errorf("server error: status code %d", status)
		}

		if ctx.Err() != nil {
			break
		}

		logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		}).Warn("Analysis webhook attempt failed")

		if attempt < c.opts.Attempts-1 {
			if err := sleepCtx(ctx, c.opts.Backoff(attempt)); err != nil {
				break
			}
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, apperrors.NewTimeoutError("analysis timed out", ctx.Err())
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("analysis failed after %d attempts", c.opts.Attempts), lastErr)
}

func (c *webhookClient) do(ctx context.Context, jpeg []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(jpeg))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Glow-Capture/1.0")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

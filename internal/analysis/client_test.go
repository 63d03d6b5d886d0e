package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "glow-capture/internal/errors"
)

const okBody = `{"analysis":{"glowScore":78.4,"evenness":20,"texture":65,"wrinkles":10}}`

func testClient(url string) Client {
	opts := DefaultClientOptions(url)
	opts.Backoff = func(int) time.Duration { return 0 }
	opts.APIKey = "secret"
	return NewClient(opts)
}

func TestClient_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int   // Expected number of requests
		expectError   bool
		errorContains string
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Any 2xx is success",
			responses:     []int{201},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - should retry until 4xx then stop",
			responses:     []int{500, 401},
			expectRetries: 2,
			expectError:   true,
			errorContains: "client error: status code 401",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(requestCount.Add(1)) - 1
				if n >= len(tt.responses) {
					w.WriteHeader(500)
					return
				}
				status := tt.responses[n]
				if status >= 300 {
					w.WriteHeader(status)
					fmt.Fprintf(w, "Error %d", status)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				io.WriteString(w, okBody)
			}))
			defer server.Close()

			_, err := testClient(server.URL).Analyze(context.Background(), []byte{0xff, 0xd8, 0xff})

			if int(requestCount.Load()) != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, requestCount.Load())
			}
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				} else if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error, got: %s", err.Error())
			}
		})
	}
}

func TestClient_SendsJPEGWithBearer(t *testing.T) {
	var gotType, gotAuth string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, "["+okBody+"]")
	}))
	defer server.Close()

	analysis, err := testClient(server.URL).Analyze(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gotType != "image/jpeg" {
		t.Errorf("Expected Content-Type image/jpeg, got %q", gotType)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer key, got %q", gotAuth)
	}
	if string(gotBody) != "jpeg-bytes" {
		t.Errorf("Expected the still as body, got %q", gotBody)
	}
	if analysis.GlowScore != 78 {
		t.Errorf("Expected glow score 78, got %d", analysis.GlowScore)
	}
	if analysis.ID == "" {
		t.Error("Expected an analysis id")
	}
}

func TestClient_RetriesSendFullBody(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "still" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, okBody)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Analyze(context.Background(), []byte("still")); err != nil {
		t.Fatalf("Expected retry to resend the body, got: %v", err)
	}
}

func TestClient_InvalidFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":"ok"}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Analyze(context.Background(), []byte{1})
	if !apperrors.IsType(err, apperrors.ErrorTypeProcessing) {
		t.Fatalf("Expected processing error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid webhook response format") {
		t.Errorf("Unexpected message: %v", err)
	}
}

func TestClient_EmptyImage(t *testing.T) {
	_, err := testClient("http://127.0.0.1:1").Analyze(context.Background(), nil)
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(server.URL).Analyze(ctx, []byte{1})
	if !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		t.Errorf("Expected timeout error, got: %v", err)
	}
}

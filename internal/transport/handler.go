package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"glow-capture/internal/capture"
	"glow-capture/internal/config"
	apperrors "glow-capture/internal/errors"
	"glow-capture/internal/logger"
	"glow-capture/internal/service"
	"glow-capture/pkg/models"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func NewHandler(svc service.CaptureService, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	v1 := r.Group("/v1")
	{
		v1.POST("/evaluate", evaluateImage(svc, cfg))
		v1.GET("/metrics", metrics(svc))
		v1.GET("/capture/ws", captureSocket(svc, cfg))
	}

	return r
}

// evaluateImage judges one uploaded still. The multipart form carries the
// image under "image" and optionally a JSON array of normalized points under
// "landmarks" for the client detector.
func evaluateImage(svc service.CaptureService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing capture evaluation request")

		header, err := c.FormFile("image")
		if err != nil {
			respondError(c, http.StatusBadRequest, "image file is required", err)
			return
		}
		file, err := header.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "failed to read image", err)
			return
		}
		defer file.Close()

		img, err := imaging.Decode(file, imaging.AutoOrientation(true))
		if err != nil {
			appErr := apperrors.NewValidationError("unsupported image format", err)
			respondError(c, appErr.StatusCode, "invalid image", appErr)
			return
		}

		landmarks, err := parseLandmarks(c.PostForm("landmarks"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid landmarks", err)
			return
		}

		result, err := svc.Evaluate(ctx, img, landmarks)
		if err != nil {
			respondError(c, determineStatusCode(err), "evaluation failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"filename":           header.Filename,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"face_detected":      result.FaceDetected,
			"position_quality":   result.Position,
			"lighting_quality":   result.Lighting,
		}).Info("Capture evaluation completed")

		c.JSON(http.StatusOK, result)
	}
}

func parseLandmarks(raw string) (capture.LandmarkSet, error) {
	if raw == "" {
		return nil, nil
	}
	var points []models.Landmark
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, apperrors.NewValidationError("landmarks must be a JSON array of {x, y}", err)
	}
	return toLandmarkSet(points), nil
}

func toLandmarkSet(points []models.Landmark) capture.LandmarkSet {
	if len(points) == 0 {
		return nil
	}
	set := make(capture.LandmarkSet, len(points))
	for i, p := range points {
		set[i] = capture.Point{X: p.X, Y: p.Y}
	}
	return set
}

func metrics(svc service.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Metrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}

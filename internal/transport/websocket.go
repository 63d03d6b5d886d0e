package transport

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"net/http"
	"strings"
	"time"

	"glow-capture/internal/config"
	apperrors "glow-capture/internal/errors"
	"glow-capture/internal/logger"
	"glow-capture/internal/service"
	"glow-capture/pkg/models"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	outboxSize   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 16 * 1024,
	// The capture page is served from a different origin than the API
	CheckOrigin: func(*http.Request) bool { return true },
}

// captureSocket runs one capture session per websocket connection. Frames
// and commands arrive as JSON ClientMessages; session output goes back as
// ServerMessages through a single writer goroutine.
func captureSocket(svc service.CaptureService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written an HTTP error
			logger.WithError(err).WithField("ip", c.ClientIP()).Warn("Websocket upgrade failed")
			return
		}
		defer conn.Close()

		outbox := make(chan models.ServerMessage, outboxSize)
		done := make(chan struct{})
		sink := func(m models.ServerMessage) {
			select {
			case <-done:
			case outbox <- m:
			default:
				logger.WithField("type", m.Type).Debug("Dropping message for slow capture client")
			}
		}

		session, err := svc.OpenSession(c.Request.Context(), sink)
		if err != nil {
			_ = conn.WriteJSON(models.ServerMessage{Type: models.MessageError, Message: clientMessage(err)})
			return
		}
		log := logger.WithSession(session.ID()).WithField("ip", c.ClientIP())
		log.Info("Capture session opened")

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writePump(conn, outbox, done)
		}()

		readPump(conn, session, sink, cfg.MaxRequestBodySize, log)

		close(done)
		if err := session.Stop(); err != nil {
			log.WithError(err).Warn("Failed to release capture session")
		}
		<-writerDone
		log.Info("Capture session closed")
	}
}

func readPump(conn *websocket.Conn, session *service.Session, sink service.Sink, limit int64, log *logrus.Entry) {
	conn.SetReadLimit(limit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Capture socket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var err error
		switch msg.Type {
		case models.MessageFrame:
			err = pushFrame(session, msg)
		case models.MessageCapture:
			err = session.Capture()
		case models.MessageFlip:
			err = session.Flip()
		case models.MessageStop:
			return
		default:
			err = apperrors.NewValidationError("unknown message type: "+msg.Type, nil)
		}
		if err != nil {
			sink(models.ServerMessage{Type: models.MessageError, SessionID: session.ID(), Message: clientMessage(err)})
		}
	}
}

func pushFrame(session *service.Session, msg models.ClientMessage) error {
	var img image.Image
	if msg.Image != "" {
		decoded, err := decodeFrame(msg.Image)
		if err != nil {
			return apperrors.NewValidationError("invalid frame image", err)
		}
		img = decoded
	}
	if img == nil && len(msg.Landmarks) == 0 {
		return apperrors.NewValidationError("frame needs an image or landmarks", nil)
	}
	session.PushFrame(msg.Timestamp, img, toLandmarkSet(msg.Landmarks))
	return nil
}

// decodeFrame decodes a base64 image, with or without a data URL prefix
func decodeFrame(data string) (image.Image, error) {
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ",")
		if i < 0 {
			return nil, errors.New("malformed data URL")
		}
		data = data[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	return imaging.Decode(bytes.NewReader(raw))
}

func writePump(conn *websocket.Conn, outbox <-chan models.ServerMessage, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.WithError(err).Debug("Capture socket write failed")
				// Unblocks the reader
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientMessage strips causes from service errors before they reach the browser
func clientMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

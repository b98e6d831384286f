package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/audio"
	"github.com/codebuildervaibhav/hillmyna/internal/auth"
)

// errNoChallenge is reported when audio arrives before the control message.
var errNoChallenge = errors.New("send {\"challenge_id\": ...} before the audio")

// StreamHandler handles logins recorded in the browser and streamed over a
// WebSocket as raw 16 kHz mono 16-bit PCM frames
type StreamHandler struct {
	service  LoginService
	tempDir  string
	maxBytes int
	timeout  time.Duration
	log      *logrus.Entry
}

// NewStreamHandler creates a new stream handler. A stream may not exceed
// maxSizeMB nor maxDuration of PCM, whichever is smaller.
func NewStreamHandler(service LoginService, tempDir string, maxSizeMB int, maxDuration, timeout time.Duration, log *logrus.Entry) *StreamHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	maxBytes := maxSizeMB * 1024 * 1024
	if maxDuration > 0 {
		durationBytes := int(maxDuration.Seconds() * audio.SampleRate * audio.Channels * audio.BitsPerSample / 8)
		if maxBytes <= 0 || durationBytes < maxBytes {
			maxBytes = durationBytes
		}
	}
	return &StreamHandler{
		service:  service,
		tempDir:  tempDir,
		maxBytes: maxBytes,
		timeout:  timeout,
		log:      log,
	}
}

type streamControl struct {
	ChallengeID string `json:"challenge_id"`
	Username    string `json:"username"`
}

// streamSession accumulates one streamed login
type streamSession struct {
	id       string
	control  *streamControl
	buffer   bytes.Buffer
	maxBytes int
}

// handle consumes a message and reports whether the stream is complete.
func (s *streamSession) handle(messageType int, message []byte) (bool, error) {
	switch messageType {
	case websocket.TextMessage:
		if string(message) == "END" {
			if s.control == nil {
				return true, errNoChallenge
			}
			return true, nil
		}
		var ctl streamControl
		if err := json.Unmarshal(message, &ctl); err != nil || ctl.ChallengeID == "" {
			return false, errNoChallenge
		}
		s.control = &ctl
		return false, nil

	case websocket.BinaryMessage:
		if s.control == nil {
			return false, errNoChallenge
		}
		if s.maxBytes > 0 && s.buffer.Len()+len(message) > s.maxBytes {
			return true, fmt.Errorf("recording exceeds %d bytes", s.maxBytes)
		}
		s.buffer.Write(message)
	}
	return false, nil
}

// wav wraps the buffered PCM in a WAV header.
func (s *streamSession) wav() []byte {
	return audio.WrapPCMAsWAV(s.buffer.Bytes(), audio.SampleRate, audio.Channels, audio.BitsPerSample)
}

// Handle processes WebSocket connections
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	session := &streamSession{id: uuid.New().String(), maxBytes: h.maxBytes}
	log := h.log.WithField("stream", session.id)
	log.Debug("WebSocket connection established")

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Debugf("WebSocket read error: %v", err)
			return
		}

		done, err := session.handle(messageType, message)
		if err != nil {
			h.writeError(c, err.Error(), "ERR_STREAM")
			if done {
				return
			}
			continue
		}
		if done {
			break
		}
	}

	if session.buffer.Len() == 0 {
		h.writeError(c, "No audio data received", "ERR_NO_AUDIO")
		return
	}

	// Save buffered audio to temp file
	tempPath := filepath.Join(h.tempDir, fmt.Sprintf("stream_%s.wav", session.id))
	if err := os.WriteFile(tempPath, session.wav(), 0644); err != nil {
		log.Errorf("Failed to save stream buffer: %v", err)
		h.writeError(c, "Failed to save recording", "ERR_SAVE_FAILED")
		return
	}
	defer os.Remove(tempPath)
	log.Debugf("Stream saved to %s (%d bytes)", tempPath, session.buffer.Len())

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	res, err := h.service.Login(ctx, auth.LoginRequest{
		ChallengeID: session.control.ChallengeID,
		Username:    session.control.Username,
		AudioPath:   tempPath,
	})
	if err != nil {
		log.Errorf("Streamed login failed: %v", err)
		h.writeError(c, err.Error(), "ERR_LOGIN_FAILED")
		return
	}

	if err := c.WriteJSON(res); err != nil {
		log.Debugf("WebSocket write error: %v", err)
	}
}

func (h *StreamHandler) writeError(c *websocket.Conn, message, code string) {
	if err := c.WriteJSON(map[string]string{"error": message, "code": code}); err != nil {
		h.log.Debugf("WebSocket write error: %v", err)
	}
}

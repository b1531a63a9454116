// Package channel implements the WebSocket voice channel: one
// connection carries one session from open to close.
package channel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/taskvoice/backend/internal/identity"
	"github.com/taskvoice/backend/internal/session"
	"github.com/taskvoice/backend/internal/voice"
)

// clientMessage is the envelope for everything a client sends.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	AudioData string `json:"audio_data,omitempty"` // base64
}

// WebSocketHandler upgrades connections and runs the voice channel.
type WebSocketHandler struct {
	registry        *session.Registry
	defaultLanguage string
	allowedOrigin   string
	isDev           bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(registry *session.Registry, defaultLanguage, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		registry:        registry,
		defaultLanguage: defaultLanguage,
		allowedOrigin:   allowedOrigin,
		isDev:           isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("voice channel connection request", "user_id", userID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	conn := &conn{ws: ws}

	language := r.URL.Query().Get("language")
	if language == "" {
		language = h.defaultLanguage
	}

	handle, err := h.registry.Open(userID, language)
	var admission *session.AdmissionError
	if errors.As(err, &admission) {
		conn.writeError(admission.Error())
		return
	}
	if err != nil {
		conn.writeError("failed to open session")
		return
	}
	defer handle.Close()

	conn.sessionID = handle.ID()
	conn.writeJSON(map[string]interface{}{
		"type":       "session_started",
		"session_id": handle.ID(),
		"language":   language,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, conn, handle, userID)
	slog.Info("voice channel ended", "user_id", userID, "session_id", handle.ID())
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, c *conn, handle *session.Handle, userID string) {
	// Result writers may outlive individual reads but not the connection.
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, message, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("websocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("websocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.writeError("invalid message")
			continue
		}

		switch msg.Type {
		case "voice_input":
			h.handleVoiceInput(ctx, c, handle, &msg, &wg)
		case "ping":
			handle.Touch()
			c.writeJSON(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		case "end_session":
			c.writeJSON(h.sessionSummary(handle))
			return
		default:
			c.writeError("unknown message type: " + msg.Type)
		}
	}
}

// handleVoiceInput submits the audio and answers asynchronously, so a
// slow provider call never blocks pings or further submissions.
func (h *WebSocketHandler) handleVoiceInput(ctx context.Context, c *conn, handle *session.Handle, msg *clientMessage, wg *sync.WaitGroup) {
	if msg.AudioData == "" {
		c.writeError("No audio data provided")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(msg.AudioData)
	if err != nil {
		c.writeError("audio_data must be base64 encoded")
		return
	}

	_, result, err := handle.Submit(audio)
	if err != nil {
		c.writeError(err.Error())
		return
	}

	c.writeJSON(map[string]interface{}{
		"type":       "voice_processing",
		"session_id": handle.ID(),
		"status":     "processing",
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		var res *voice.Result
		select {
		case res = <-result:
		case <-ctx.Done():
			return
		}
		c.writeJSON(map[string]interface{}{
			"type":       "voice_response",
			"session_id": handle.ID(),
			"result":     res,
		})
	}()
}

func (h *WebSocketHandler) sessionSummary(handle *session.Handle) map[string]interface{} {
	sess := handle.Summary()
	return map[string]interface{}{
		"type":               "session_ended",
		"session_id":         sess.ID,
		"commands_processed": sess.CommandsProcessed,
		"error_count":        sess.ErrorCount,
		"avg_confidence":     sess.ConfidenceMean,
	}
}

// conn serializes writes to one websocket connection.
type conn struct {
	mu        sync.Mutex
	ws        *websocket.Conn
	sessionID string
}

func (c *conn) writeJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal websocket message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("websocket write error", "error", err)
	}
}

func (c *conn) writeError(message string) {
	msg := map[string]interface{}{"type": "error", "message": message}
	if c.sessionID != "" {
		msg["session_id"] = c.sessionID
	}
	c.writeJSON(msg)
}

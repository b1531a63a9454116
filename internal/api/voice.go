package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskvoice/backend/internal/identity"
	"github.com/taskvoice/backend/internal/session"
	"github.com/taskvoice/backend/internal/store"
	"github.com/taskvoice/backend/internal/voice"
)

// VoiceHandler handles the REST voice endpoints.
type VoiceHandler struct {
	*Handler
	defaultLanguage string
}

func NewVoiceHandler(base *Handler, defaultLanguage string) *VoiceHandler {
	return &VoiceHandler{Handler: base, defaultLanguage: defaultLanguage}
}

// RegisterRoutes registers voice routes.
func (h *VoiceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/voice", func(r chi.Router) {
		r.Post("/process", h.Process)
		r.Post("/analyze", h.Analyze)
		r.Get("/commands", h.Commands)
		r.Get("/history", h.History)
		r.Post("/feedback", h.Feedback)
		r.Get("/analytics", h.Analytics)
	})
}

type processRequest struct {
	AudioData string `json:"audio_data"` // base64
	Language  string `json:"language,omitempty"`
}

// Process runs one command through a short-lived session. Clients with
// a conversation to hold should use the websocket channel instead; this
// endpoint exists for one-shot integrations.
func (h *VoiceHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		Error(w, http.StatusBadRequest, "audio_data must be base64 encoded")
		return
	}
	language := req.Language
	if language == "" {
		language = h.defaultLanguage
	}

	handle, err := h.registry.Open(userID, language)
	var admission *session.AdmissionError
	if errors.As(err, &admission) {
		Error(w, http.StatusServiceUnavailable, admission.Error())
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	defer handle.Close()

	_, result, err := handle.Submit(audio)
	if err != nil {
		Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	select {
	case res := <-result:
		JSON(w, http.StatusOK, res)
	case <-r.Context().Done():
		// Client gone; the deferred close cancels the in-flight command.
	}
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
}

// Analyze classifies a transcript without acting on it.
func (h *VoiceHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Transcript == "" {
		Error(w, http.StatusBadRequest, "transcript is required")
		return
	}

	JSON(w, http.StatusOK, h.processor.Analyze(r.Context(), req.Transcript))
}

// History returns the command history for one of the caller's sessions.
func (h *VoiceHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	cmds, err := h.store.ListSessionCommands(r.Context(), sessionID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load commands")
		return
	}

	out := make([]map[string]interface{}, 0, len(cmds))
	for _, c := range cmds {
		if c.UserID != userID {
			continue
		}
		out = append(out, map[string]interface{}{
			"command_id":      c.ID,
			"transcript":      c.Transcript,
			"intent":          string(c.Intent),
			"status":          string(c.Status),
			"confidence":      c.Confidence,
			"response":        c.Response,
			"error_message":   c.ErrorMessage,
			"feedback":        c.Feedback,
			"processing_time": c.ProcessingTime.Seconds(),
			"created_at":      c.CreatedAt.Format(time.RFC3339),
		})
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"commands":   out,
	})
}

// Commands lists the supported voice commands.
func (h *VoiceHandler) Commands(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"commands": voice.Catalog()})
}

type feedbackRequest struct {
	CommandID string `json:"command_id"`
	Feedback  string `json:"feedback"`
}

var allowedFeedback = map[string]bool{
	"correct":   true,
	"incorrect": true,
	"partial":   true,
}

// Feedback attaches user feedback to a previously processed command.
func (h *VoiceHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CommandID == "" {
		Error(w, http.StatusBadRequest, "command_id is required")
		return
	}
	if !allowedFeedback[req.Feedback] {
		Error(w, http.StatusBadRequest, "feedback must be one of: correct, incorrect, partial")
		return
	}

	cmd, err := h.store.GetCommand(r.Context(), req.CommandID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "command not found")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load command")
		return
	}
	if cmd.UserID != userID {
		Error(w, http.StatusNotFound, "command not found")
		return
	}

	if err := h.store.SetCommandFeedback(r.Context(), req.CommandID, req.Feedback); err != nil {
		Error(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// Analytics returns the caller's usage bucket for the current day.
func (h *VoiceHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bucket, err := h.ledger.Bucket(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "no analytics for today")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":             bucket.UserID,
		"period":              bucket.Period,
		"total_commands":      bucket.TotalCommands,
		"successful_commands": bucket.SuccessfulCommands,
		"failed_commands":     bucket.FailedCommands,
		"success_rate":        bucket.SuccessRate(),
		"avg_confidence":      bucket.AvgConfidence,
		"avg_processing_time": bucket.AvgProcessingTime,
		"avg_response_time":   bucket.AvgResponseTime,
		"intent_counts":       bucket.IntentCounts,
		"language_counts":     bucket.LanguageCounts,
	})
}

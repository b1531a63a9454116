// Package api provides HTTP handlers for the voice task API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/taskvoice/backend/internal/ledger"
	"github.com/taskvoice/backend/internal/session"
	"github.com/taskvoice/backend/internal/store"
	"github.com/taskvoice/backend/internal/voice"
)

// Handler provides common handler utilities.
type Handler struct {
	store     store.Store
	registry  *session.Registry
	processor *voice.Processor
	ledger    *ledger.Ledger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(st store.Store, registry *session.Registry, processor *voice.Processor, ledger *ledger.Ledger) *Handler {
	return &Handler{
		store:     st,
		registry:  registry,
		processor: processor,
		ledger:    ledger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Package notify delivers user notifications for noteworthy command
// outcomes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/store"
)

// Sink accepts notifications for delivery. Delivery is best-effort;
// implementations log failures rather than returning them to the
// command path.
type Sink interface {
	Notify(ctx context.Context, n *domain.Notification)
}

// StoreSink persists notifications for later retrieval by clients.
type StoreSink struct {
	store store.Store
}

func NewStoreSink(st store.Store) *StoreSink {
	return &StoreSink{store: st}
}

func (s *StoreSink) Notify(ctx context.Context, n *domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		slog.Error("failed to persist notification",
			"user_id", n.UserID, "type", n.Type, "error", err)
		return
	}
	slog.Info("notification created", "user_id", n.UserID, "type", n.Type)
}

// CommandProcessed builds the notification for a successfully handled
// mutating command.
func CommandProcessed(cmd *domain.Command, summary string) *domain.Notification {
	return &domain.Notification{
		UserID:   cmd.UserID,
		Type:     domain.NotificationVoiceCommandProcessed,
		Priority: domain.NotificationPriorityMedium,
		Title:    "Voice command processed",
		Message:  summary,
		DataJSON: dataJSON(cmd),
	}
}

// CommandFailed builds the notification for a failed command.
func CommandFailed(cmd *domain.Command) *domain.Notification {
	return &domain.Notification{
		UserID:   cmd.UserID,
		Type:     domain.NotificationVoiceCommandFailed,
		Priority: domain.NotificationPriorityHigh,
		Title:    "Voice command failed",
		Message:  fmt.Sprintf("Could not process: %s", cmd.ErrorMessage),
		DataJSON: dataJSON(cmd),
	}
}

func dataJSON(cmd *domain.Command) string {
	b, err := json.Marshal(map[string]string{
		"command_id": cmd.ID,
		"intent":     string(cmd.Intent),
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskvoice/backend/internal/domain"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a domain-level constraint violation on a write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Store defines the persistence interface for the voice task backend.
type Store interface {
	// Users
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// Tasks
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTaskByTitle(ctx context.Context, userID, title string) (*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	ListTasks(ctx context.Context, userID string) ([]*domain.Task, error)

	// Projects
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByName(ctx context.Context, userID, name string) (*domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	ListProjects(ctx context.Context, userID string) ([]*domain.Project, error)

	// Command ledger (append-only; finalized commands are never mutated,
	// feedback is the one column written after the fact)
	AppendCommand(ctx context.Context, cmd *domain.Command) error
	GetCommand(ctx context.Context, id string) (*domain.Command, error)
	ListSessionCommands(ctx context.Context, sessionID string) ([]*domain.Command, error)
	SetCommandFeedback(ctx context.Context, commandID, feedback string) error

	// Analytics snapshots
	SaveAnalytics(ctx context.Context, bucket *domain.AnalyticsBucket) error
	GetAnalytics(ctx context.Context, userID, period string) (*domain.AnalyticsBucket, error)

	// Notifications
	CreateNotification(ctx context.Context, n *domain.Notification) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/taskvoice/backend/internal/domain"
)

// recordingStore captures ledger writes.
type recordingStore struct {
	mu        sync.Mutex
	commands  []*domain.Command
	analytics map[string]*domain.AnalyticsBucket

	failAppend bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{analytics: map[string]*domain.AnalyticsBucket{}}
}

func (r *recordingStore) AppendCommand(_ context.Context, cmd *domain.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend {
		return errors.New("db locked")
	}
	r.commands = append(r.commands, cmd)
	return nil
}

func (r *recordingStore) SaveAnalytics(_ context.Context, b *domain.AnalyticsBucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analytics[b.UserID+"|"+b.Period] = b
	return nil
}

func (r *recordingStore) GetAnalytics(_ context.Context, userID, period string) (*domain.AnalyticsBucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.analytics[userID+"|"+period]; ok {
		return b, nil
	}
	return nil, errors.New("not found")
}

// Unused store methods.
func (r *recordingStore) GetUser(context.Context, string) (*domain.User, error)    { return nil, nil }
func (r *recordingStore) UpsertUser(context.Context, *domain.User) error           { return nil }
func (r *recordingStore) UpdateLastSeen(context.Context, string, time.Time) error  { return nil }
func (r *recordingStore) CreateTask(context.Context, *domain.Task) error           { return nil }
func (r *recordingStore) UpdateTask(context.Context, *domain.Task) error           { return nil }
func (r *recordingStore) CreateProject(context.Context, *domain.Project) error     { return nil }
func (r *recordingStore) UpdateProject(context.Context, *domain.Project) error     { return nil }
func (r *recordingStore) SetCommandFeedback(context.Context, string, string) error { return nil }
func (r *recordingStore) CreateNotification(context.Context, *domain.Notification) error {
	return nil
}
func (r *recordingStore) GetTaskByTitle(context.Context, string, string) (*domain.Task, error) {
	return nil, errors.New("unused")
}
func (r *recordingStore) ListTasks(context.Context, string) ([]*domain.Task, error) {
	return nil, nil
}
func (r *recordingStore) GetProjectByName(context.Context, string, string) (*domain.Project, error) {
	return nil, errors.New("unused")
}
func (r *recordingStore) ListProjects(context.Context, string) ([]*domain.Project, error) {
	return nil, nil
}
func (r *recordingStore) GetCommand(context.Context, string) (*domain.Command, error) {
	return nil, errors.New("unused")
}
func (r *recordingStore) ListSessionCommands(context.Context, string) ([]*domain.Command, error) {
	return nil, nil
}
func (r *recordingStore) Ping(context.Context) error { return nil }
func (r *recordingStore) Close() error               { return nil }

func finalizedCommand(userID string, status domain.CommandStatus, confidence float64) *domain.Command {
	cmd := domain.NewCommand("cmd", "sess-1", userID, "en-US")
	cmd.Confidence = confidence
	switch status {
	case domain.CommandStatusSuccess:
		cmd.MarkSuccess("ok")
	case domain.CommandStatusFailed:
		cmd.MarkFailed("boom")
	case domain.CommandStatusCancelled:
		cmd.MarkCancelled()
	}
	return cmd
}

func TestLedger_RecordUpdatesBucket(t *testing.T) {
	st := newRecordingStore()
	l := New(st)

	// 0.9, 0.8, 0.4 average to 0.7.
	l.Record(context.Background(), finalizedCommand("user-1", domain.CommandStatusSuccess, 0.9))
	l.Record(context.Background(), finalizedCommand("user-1", domain.CommandStatusSuccess, 0.8))
	l.Record(context.Background(), finalizedCommand("user-1", domain.CommandStatusFailed, 0.4))

	bucket, err := l.Bucket(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Bucket failed: %v", err)
	}
	if bucket.TotalCommands != 3 || bucket.SuccessfulCommands != 2 || bucket.FailedCommands != 1 {
		t.Errorf("Unexpected bucket counts: %+v", bucket)
	}
	if math.Abs(bucket.AvgConfidence-0.7) > 1e-12 {
		t.Errorf("Expected bucket mean 0.7, got %v", bucket.AvgConfidence)
	}

	if len(st.commands) != 3 {
		t.Errorf("Expected 3 appended commands, got %d", len(st.commands))
	}
	if len(st.analytics) != 1 {
		t.Errorf("Expected one analytics snapshot key, got %d", len(st.analytics))
	}
}

func TestLedger_CancelledExcludedFromAnalytics(t *testing.T) {
	st := newRecordingStore()
	l := New(st)

	l.Record(context.Background(), finalizedCommand("user-1", domain.CommandStatusSuccess, 0.9))
	l.Record(context.Background(), finalizedCommand("user-1", domain.CommandStatusCancelled, 0.0))

	bucket, err := l.Bucket(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Bucket failed: %v", err)
	}
	if bucket.TotalCommands != 1 {
		t.Errorf("Expected 1 bucket total, got %d", bucket.TotalCommands)
	}

	// The cancelled command still lands in the audit trail.
	if len(st.commands) != 2 {
		t.Errorf("Expected both commands appended, got %d", len(st.commands))
	}
}

func TestLedger_AppendFailureDoesNotBlockAnalytics(t *testing.T) {
	st := newRecordingStore()
	st.failAppend = true
	l := New(st)

	l.Record(context.Background(), finalizedCommand("user-1", domain.CommandStatusSuccess, 0.9))

	// The command was answered; bookkeeping failure must not undo it.
	if len(st.analytics) != 1 {
		t.Errorf("Expected analytics snapshot despite append failure, got %d", len(st.analytics))
	}
}

func TestLedger_PerUserBuckets(t *testing.T) {
	st := newRecordingStore()
	l := New(st)

	l.Record(context.Background(), finalizedCommand("user-1", domain.CommandStatusSuccess, 0.9))
	l.Record(context.Background(), finalizedCommand("user-2", domain.CommandStatusFailed, 0.3))

	b1, err := l.Bucket(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Bucket user-1 failed: %v", err)
	}
	b2, err := l.Bucket(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("Bucket user-2 failed: %v", err)
	}

	if b1.TotalCommands != 1 || b1.FailedCommands != 0 {
		t.Errorf("Unexpected user-1 bucket: %+v", b1)
	}
	if b2.TotalCommands != 1 || b2.FailedCommands != 1 {
		t.Errorf("Unexpected user-2 bucket: %+v", b2)
	}
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskvoice/backend/internal/domain"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return st
}

func TestUserRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	got, err := st.GetUser(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("Expected nil, nil for missing user, got %v, %v", got, err)
	}

	now := time.Now().Truncate(time.Second)
	user := &domain.User{
		UserID:     "anon_1",
		Username:   "anon-user",
		Language:   "en-US",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	got, err = st.GetUser(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "anon-user" || got.Language != "en-US" {
		t.Errorf("Unexpected user: %+v", got)
	}

	later := now.Add(time.Hour)
	if err := st.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}
	got, _ = st.GetUser(ctx, "anon_1")
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("Expected last seen %v, got %v", later, got.LastSeenAt)
	}
}

func TestTaskLookupIsCaseInsensitive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	task := &domain.Task{
		ID: "t1", UserID: "u1", Title: "Review Quarterly Report",
		Status: domain.TaskStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := st.GetTaskByTitle(ctx, "u1", "review quarterly report")
	if err != nil {
		t.Fatalf("Case-insensitive lookup failed: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("Expected task t1, got %s", got.ID)
	}

	_, err = st.GetTaskByTitle(ctx, "u2", "review quarterly report")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other user, got %v", err)
	}
}

func TestCreateTaskEmptyTitle(t *testing.T) {
	st := newTestStore(t)

	err := st.CreateTask(context.Background(), &domain.Task{ID: "t1", UserID: "u1", Title: "  "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Field != "title" {
		t.Errorf("Expected title field, got %q", verr.Field)
	}
}

func TestCommandLedgerRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cmd := domain.NewCommand("c1", "sess-1", "u1", "en-US")
	cmd.Transcript = "create a task called demo"
	cmd.Intent = domain.IntentCreateTask
	cmd.Confidence = 0.9
	cmd.Entities = map[string]string{"task_name": "demo"}
	cmd.AudioSize = 2048
	cmd.MarkSuccess("Task 'demo' created successfully")

	if err := st.AppendCommand(ctx, cmd); err != nil {
		t.Fatalf("AppendCommand failed: %v", err)
	}

	got, err := st.GetCommand(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCommand failed: %v", err)
	}
	if got.Intent != domain.IntentCreateTask || got.Status != domain.CommandStatusSuccess {
		t.Errorf("Unexpected command: %+v", got)
	}
	if got.Entities["task_name"] != "demo" {
		t.Errorf("Entities lost on round trip: %v", got.Entities)
	}
	if got.FinalizedAt == nil {
		t.Error("Expected finalized_at persisted")
	}
}

func TestListSessionCommandsOrdered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, id := range []string{"c1", "c2", "c3"} {
		cmd := domain.NewCommand(id, "sess-1", "u1", "en-US")
		cmd.CreatedAt = base.Add(time.Duration(i) * time.Second)
		cmd.MarkSuccess("ok")
		if err := st.AppendCommand(ctx, cmd); err != nil {
			t.Fatalf("AppendCommand %s failed: %v", id, err)
		}
	}

	cmds, err := st.ListSessionCommands(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListSessionCommands failed: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("Expected 3 commands, got %d", len(cmds))
	}
	for i, want := range []string{"c1", "c2", "c3"} {
		if cmds[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, cmds[i].ID)
		}
	}
}

func TestSetCommandFeedback(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cmd := domain.NewCommand("c1", "sess-1", "u1", "en-US")
	cmd.MarkSuccess("ok")
	if err := st.AppendCommand(ctx, cmd); err != nil {
		t.Fatalf("AppendCommand failed: %v", err)
	}

	if err := st.SetCommandFeedback(ctx, "c1", "correct"); err != nil {
		t.Fatalf("SetCommandFeedback failed: %v", err)
	}
	got, _ := st.GetCommand(ctx, "c1")
	if got.Feedback != "correct" {
		t.Errorf("Expected feedback persisted, got %q", got.Feedback)
	}

	if err := st.SetCommandFeedback(ctx, "missing", "correct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing command, got %v", err)
	}
}

func TestAnalyticsUpsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bucket := domain.NewAnalyticsBucket("u1", "2026-08-31")
	bucket.TotalCommands = 1
	bucket.SuccessfulCommands = 1
	bucket.AvgConfidence = 0.9
	bucket.IntentCounts["create_task"] = 1
	if err := st.SaveAnalytics(ctx, bucket); err != nil {
		t.Fatalf("SaveAnalytics failed: %v", err)
	}

	bucket.TotalCommands = 2
	bucket.FailedCommands = 1
	bucket.AvgConfidence = 0.7
	if err := st.SaveAnalytics(ctx, bucket); err != nil {
		t.Fatalf("SaveAnalytics upsert failed: %v", err)
	}

	got, err := st.GetAnalytics(ctx, "u1", "2026-08-31")
	if err != nil {
		t.Fatalf("GetAnalytics failed: %v", err)
	}
	if got.TotalCommands != 2 || got.FailedCommands != 1 {
		t.Errorf("Upsert did not replace counts: %+v", got)
	}
	if got.IntentCounts["create_task"] != 1 {
		t.Errorf("Intent counts lost: %v", got.IntentCounts)
	}

	_, err = st.GetAnalytics(ctx, "u1", "2026-09-01")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing period, got %v", err)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	p := &domain.Project{
		ID: "p1", UserID: "u1", Name: "Website Redesign",
		Status: domain.ProjectStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	got, err := st.GetProjectByName(ctx, "u1", "website redesign")
	if err != nil {
		t.Fatalf("GetProjectByName failed: %v", err)
	}

	got.Status = domain.ProjectStatusCompleted
	if err := st.UpdateProject(ctx, got); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}

	list, err := st.ListProjects(ctx, "u1")
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(list) != 1 || list[0].Status != domain.ProjectStatusCompleted {
		t.Errorf("Unexpected projects: %+v", list)
	}
}

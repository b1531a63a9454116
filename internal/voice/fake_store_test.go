package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/store"
)

// fakeStore is an in-memory store.Store for pipeline tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[string]*domain.User
	tasks         map[string]*domain.Task
	projects      map[string]*domain.Project
	commands      []*domain.Command
	analytics     map[string]*domain.AnalyticsBucket
	notifications []*domain.Notification

	failWrites bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]*domain.User{},
		tasks:     map[string]*domain.Task{},
		projects:  map[string]*domain.Project{},
		analytics: map[string]*domain.AnalyticsBucket{},
	}
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID], nil
}

func (f *fakeStore) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.UserID] = user
	return nil
}

func (f *fakeStore) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.LastSeenAt = lastSeen
	}
	return nil
}

func (f *fakeStore) CreateTask(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("disk full")
	}
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeStore) GetTaskByTitle(_ context.Context, userID, title string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.UserID == userID && strings.EqualFold(t.Title, title) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task %q: %w", title, store.ErrNotFound)
}

func (f *fakeStore) UpdateTask(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return fmt.Errorf("task %s: %w", task.ID, store.ErrNotFound)
	}
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeStore) ListTasks(_ context.Context, userID string) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateProject(_ context.Context, project *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[project.ID] = project
	return nil
}

func (f *fakeStore) GetProjectByName(_ context.Context, userID, name string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.UserID == userID && strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, store.ErrNotFound)
}

func (f *fakeStore) UpdateProject(_ context.Context, project *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[project.ID] = project
	return nil
}

func (f *fakeStore) ListProjects(_ context.Context, userID string) ([]*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Project
	for _, p := range f.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendCommand(_ context.Context, cmd *domain.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeStore) GetCommand(_ context.Context, id string) (*domain.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("command %s: %w", id, store.ErrNotFound)
}

func (f *fakeStore) ListSessionCommands(_ context.Context, sessionID string) ([]*domain.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Command
	for _, c := range f.commands {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) SetCommandFeedback(_ context.Context, commandID, feedback string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if c.ID == commandID {
			c.Feedback = feedback
			return nil
		}
	}
	return fmt.Errorf("command %s: %w", commandID, store.ErrNotFound)
}

func (f *fakeStore) SaveAnalytics(_ context.Context, bucket *domain.AnalyticsBucket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analytics[bucket.UserID+"|"+bucket.Period] = bucket
	return nil
}

func (f *fakeStore) GetAnalytics(_ context.Context, userID, period string) (*domain.AnalyticsBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.analytics[userID+"|"+period]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("analytics %s/%s: %w", userID, period, store.ErrNotFound)
}

func (f *fakeStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) commandCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/identity"
	"github.com/taskvoice/backend/internal/store"
)

// stubStore overrides only the store methods these handlers touch; the
// embedded nil interface panics loudly if a handler reaches further.
type stubStore struct {
	store.Store
	users    map[string]*domain.User
	commands map[string]*domain.Command
	feedback map[string]string
}

func newStubStore() *stubStore {
	return &stubStore{
		users:    map[string]*domain.User{},
		commands: map[string]*domain.Command{},
		feedback: map[string]string{},
	}
}

func (s *stubStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return s.users[userID], nil
}

func (s *stubStore) UpsertUser(_ context.Context, u *domain.User) error {
	s.users[u.UserID] = u
	return nil
}

func (s *stubStore) UpdateLastSeen(_ context.Context, userID string, t time.Time) error {
	if u, ok := s.users[userID]; ok {
		u.LastSeenAt = t
	}
	return nil
}

func (s *stubStore) GetCommand(_ context.Context, id string) (*domain.Command, error) {
	if c, ok := s.commands[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("command %s: %w", id, store.ErrNotFound)
}

func (s *stubStore) SetCommandFeedback(_ context.Context, id, feedback string) error {
	s.feedback[id] = feedback
	return nil
}

func (s *stubStore) ListSessionCommands(_ context.Context, sessionID string) ([]*domain.Command, error) {
	var out []*domain.Command
	for _, c := range s.commands {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubStore) Ping(context.Context) error { return nil }

func newTestRouter(st *stubStore) http.Handler {
	base := NewHandler(st, nil, nil, nil)
	vh := NewVoiceHandler(base, "en-US")

	r := chi.NewRouter()
	r.Use(identity.Middleware(st, "en-US", true))
	r.Get("/api/me", base.Me)
	vh.RegisterRoutes(r)
	return r
}

// establish performs one request to mint the anonymous identity cookie
// and returns it with the assigned user ID.
func establish(t *testing.T, router http.Handler) (*http.Cookie, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /api/me, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad /api/me body: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.AnonCookieName {
			return c, body.UserID
		}
	}
	t.Fatal("No identity cookie issued")
	return nil, ""
}

func TestFeedback(t *testing.T) {
	st := newStubStore()
	router := newTestRouter(st)
	cookie, userID := establish(t, router)

	cmd := domain.NewCommand("c1", "sess-1", userID, "en-US")
	cmd.MarkSuccess("ok")
	st.commands["c1"] = cmd

	body := strings.NewReader(`{"command_id":"c1","feedback":"correct"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/voice/feedback", body)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if st.feedback["c1"] != "correct" {
		t.Errorf("Feedback not recorded: %v", st.feedback)
	}
}

func TestFeedback_RejectsInvalidValue(t *testing.T) {
	st := newStubStore()
	router := newTestRouter(st)
	cookie, _ := establish(t, router)

	body := strings.NewReader(`{"command_id":"c1","feedback":"amazing"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/voice/feedback", body)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid feedback value, got %d", rec.Code)
	}
}

func TestFeedback_OtherUsersCommandHidden(t *testing.T) {
	st := newStubStore()
	router := newTestRouter(st)
	cookie, _ := establish(t, router)

	cmd := domain.NewCommand("c1", "sess-1", "someone-else", "en-US")
	cmd.MarkSuccess("ok")
	st.commands["c1"] = cmd

	body := strings.NewReader(`{"command_id":"c1","feedback":"correct"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/voice/feedback", body)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's command, got %d", rec.Code)
	}
	if _, ok := st.feedback["c1"]; ok {
		t.Error("Feedback must not be recorded across users")
	}
}

func TestHistory_FiltersByOwner(t *testing.T) {
	st := newStubStore()
	router := newTestRouter(st)
	cookie, userID := establish(t, router)

	mine := domain.NewCommand("c1", "sess-1", userID, "en-US")
	mine.MarkSuccess("ok")
	theirs := domain.NewCommand("c2", "sess-1", "someone-else", "en-US")
	theirs.MarkSuccess("ok")
	st.commands["c1"] = mine
	st.commands["c2"] = theirs

	req := httptest.NewRequest(http.MethodGet, "/api/voice/history?session_id=sess-1", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Commands []map[string]interface{} `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad body: %v", err)
	}
	if len(body.Commands) != 1 {
		t.Fatalf("Expected only own command, got %d", len(body.Commands))
	}
	if body.Commands[0]["command_id"] != "c1" {
		t.Errorf("Unexpected command: %v", body.Commands[0])
	}
}

func TestCommands_Catalog(t *testing.T) {
	st := newStubStore()
	router := newTestRouter(st)
	cookie, _ := establish(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/voice/commands", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Commands []struct {
			Command string `json:"command"`
		} `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad body: %v", err)
	}
	if len(body.Commands) != 8 {
		t.Errorf("Expected 8 catalog entries, got %d", len(body.Commands))
	}
}

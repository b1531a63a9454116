// Package domain contains core domain types for the voice task backend.
package domain

import (
	"time"
)

// SessionStatus represents the lifecycle state of a voice session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusIdle   SessionStatus = "idle"
	SessionStatusPaused SessionStatus = "paused"
	SessionStatusEnded  SessionStatus = "ended"
	SessionStatusError  SessionStatus = "error"
)

// Open reports whether the session still counts against admission capacity.
func (s SessionStatus) Open() bool {
	return s == SessionStatusActive || s == SessionStatusIdle || s == SessionStatusPaused
}

// Session holds the state for one continuous voice interaction stream.
// One session is owned by exactly one user and is the unit of admission
// control and sequential command ordering. Fields are not synchronized;
// the owning session handle guards all access with its mutex.
type Session struct {
	ID       string
	UserID   string
	Status   SessionStatus
	Language string

	CommandsProcessed int
	ErrorCount        int

	// Running confidence mean with an explicit sample count, so long
	// sessions do not accumulate drift from re-deriving the average.
	ConfidenceMean    float64
	ConfidenceSamples int

	StartedAt    time.Time
	LastActivity time.Time
	EndedAt      *time.Time
}

// NewSession creates an active session for the given user.
func NewSession(id, userID, language string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		UserID:       userID,
		Status:       SessionStatusActive,
		Language:     language,
		StartedAt:    now,
		LastActivity: now,
	}
}

// Touch resets the inactivity clock and revives an idle session.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
	if s.Status == SessionStatusIdle {
		s.Status = SessionStatusActive
	}
}

// RecordConfidence folds a new confidence sample into the running mean.
func (s *Session) RecordConfidence(x float64) {
	s.ConfidenceSamples++
	s.ConfidenceMean += (x - s.ConfidenceMean) / float64(s.ConfidenceSamples)
}

// RecordCommand folds a finalized command into the session counters.
// Cancelled commands never ran and are excluded.
func (s *Session) RecordCommand(cmd *Command) {
	if cmd.Status == CommandStatusCancelled {
		return
	}
	s.CommandsProcessed++
	if cmd.Status == CommandStatusFailed {
		s.ErrorCount++
	}
	s.RecordConfidence(cmd.Confidence)
}

// End marks the session as ended.
func (s *Session) End() {
	now := time.Now()
	s.Status = SessionStatusEnded
	s.EndedAt = &now
}

// InactiveFor returns how long the session has been without activity.
func (s *Session) InactiveFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

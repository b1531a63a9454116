package domain

import (
	"fmt"
	"time"
)

// CommandStatus represents the state of a voice command.
type CommandStatus string

const (
	CommandStatusProcessing CommandStatus = "processing"
	CommandStatusSuccess    CommandStatus = "success"
	CommandStatusFailed     CommandStatus = "failed"
	CommandStatusCancelled  CommandStatus = "cancelled"
)

// Terminal reports whether the status is final. A command in a terminal
// state is never mutated again.
func (s CommandStatus) Terminal() bool {
	switch s {
	case CommandStatusSuccess, CommandStatusFailed, CommandStatusCancelled:
		return true
	}
	return false
}

// Command is one classified-and-dispatched utterance within a session.
// The ledger treats finalized commands as an append-only audit trail.
type Command struct {
	ID        string
	SessionID string
	UserID    string

	Transcript string
	Intent     Intent
	Status     CommandStatus
	Confidence float64
	Entities   map[string]string

	Response     string
	ErrorMessage string
	Feedback     string

	Language       string
	AudioSize      int
	ProcessingTime time.Duration
	ResponseTime   time.Duration

	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// NewCommand creates a command in the Processing state.
func NewCommand(id, sessionID, userID, language string) *Command {
	return &Command{
		ID:        id,
		SessionID: sessionID,
		UserID:    userID,
		Status:    CommandStatusProcessing,
		Language:  language,
		Entities:  map[string]string{},
		CreatedAt: time.Now(),
	}
}

// finalize moves the command into a terminal state exactly once.
// Finalizing twice is a programming error, not a recoverable condition.
func (c *Command) finalize(status CommandStatus) {
	if c.Status.Terminal() {
		panic(fmt.Sprintf("domain: command %s already finalized as %s", c.ID, c.Status))
	}
	now := time.Now()
	c.Status = status
	c.FinalizedAt = &now
	c.ProcessingTime = now.Sub(c.CreatedAt)
}

// MarkSuccess finalizes the command with its synthesized response.
func (c *Command) MarkSuccess(response string) {
	c.Response = response
	c.finalize(CommandStatusSuccess)
}

// MarkFailed finalizes the command with an error detail.
func (c *Command) MarkFailed(errorMessage string) {
	c.ErrorMessage = errorMessage
	c.finalize(CommandStatusFailed)
}

// MarkCancelled finalizes a command abandoned by session close.
func (c *Command) MarkCancelled() {
	c.finalize(CommandStatusCancelled)
}

// Package provider defines the external AI capabilities the voice
// pipeline consumes and their concrete SDK-backed implementations.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Transcription is the output of a speech-to-text call.
type Transcription struct {
	Text       string
	Confidence float64
}

// Transcriber converts raw audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (*Transcription, error)
}

// Classification is the structured reply of the generative fallback
// classifier.
type Classification struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
}

// FallbackClassifier classifies a transcript against a closed intent
// vocabulary when pattern matching is not confident enough.
type FallbackClassifier interface {
	Classify(ctx context.Context, transcript string, vocabulary []string) (*Classification, error)
}

// ResponseKind selects success vs failure framing for response synthesis.
type ResponseKind string

const (
	ResponseSuccess ResponseKind = "success"
	ResponseFailure ResponseKind = "failure"
)

// ResponseGenerator phrases a structured action outcome as natural
// language.
type ResponseGenerator interface {
	Generate(ctx context.Context, transcript, intent, outcomeMessage string, kind ResponseKind) (string, error)
}

// Unavailable is the Transcriber used when no speech-to-text backend
// is configured. Every call fails, which surfaces as a failed command
// rather than a crash at startup.
type Unavailable struct{}

func (Unavailable) Transcribe(context.Context, []byte, string) (*Transcription, error) {
	return nil, &Error{Provider: "none", Op: "transcribe", Err: errors.New("no transcription backend configured")}
}

// Error wraps a failure from an external provider call, including
// timeouts.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ParseError reports a structurally malformed reply from a provider.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse provider reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

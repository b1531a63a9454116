// Package voice implements the voice command processing pipeline:
// audio validation, two-tier intent classification, entity extraction,
// action dispatch, and response synthesis.
package voice

import "fmt"

// ValidationReason identifies why an audio payload was rejected.
type ValidationReason string

const (
	ValidationEmpty    ValidationReason = "empty"
	ValidationTooSmall ValidationReason = "too_small"
	ValidationTooLarge ValidationReason = "too_large"
)

// ValidationError reports a rejected audio payload.
type ValidationError struct {
	Reason ValidationReason
	Size   int
	Limit  int
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ValidationEmpty:
		return "no audio data provided"
	case ValidationTooSmall:
		return fmt.Sprintf("audio data too small to be valid (%d bytes, minimum %d)", e.Size, e.Limit)
	case ValidationTooLarge:
		return fmt.Sprintf("audio data too large (%d bytes, maximum %d)", e.Size, e.Limit)
	}
	return "invalid audio data"
}

// Validator bounds-checks raw audio payloads before any expensive work.
// It performs no decoding; format correctness is the transcription
// backend's concern.
type Validator struct {
	minSize int
	maxSize int
}

// NewValidator creates a validator with the given size bounds in bytes.
func NewValidator(minSize, maxSize int) *Validator {
	return &Validator{minSize: minSize, maxSize: maxSize}
}

// Validate rejects empty, undersized, and oversized payloads.
func (v *Validator) Validate(audio []byte) error {
	switch {
	case len(audio) == 0:
		return &ValidationError{Reason: ValidationEmpty}
	case len(audio) > v.maxSize:
		return &ValidationError{Reason: ValidationTooLarge, Size: len(audio), Limit: v.maxSize}
	case len(audio) < v.minSize:
		return &ValidationError{Reason: ValidationTooSmall, Size: len(audio), Limit: v.minSize}
	}
	return nil
}

// Package understand wraps a multimodal language model for the parts of a
// document the deterministic parsers could not read: image descriptions,
// region transcription, table reconstruction and entity/relation schema
// inference.
//
// A backend implements Model; the gemini and langchain subpackages provide
// the shipped ones. Adapter adds rate limiting, per-call deadlines and
// retries on top of any Model.
package understand

import (
	"context"
	"errors"
	"strings"
)

// ErrNoModel is returned when a task runs without a configured model.
var ErrNoModel = errors.New("no AI model configured")

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty model response")

// Blob is an inline attachment sent with a prompt.
type Blob struct {
	MIME string
	Data []byte
}

// Prompt is one request to a model.
type Prompt struct {
	System string
	Text   string
	Images []Blob
}

// Model is a text-generating backend.
type Model interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// transientError marks an error worth retrying.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Backends use it for rate limiting and
// server-side failures.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "503", "rate limit", "resource exhausted", "unavailable", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

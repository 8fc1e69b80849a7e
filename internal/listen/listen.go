// Package listen turns one spoken (or typed) utterance into text for the
// conversation session.
package listen

import (
	"context"
	"errors"
	"fmt"

	"github.com/nadzzz/solace/internal/audio"
	"github.com/nadzzz/solace/internal/stt"
)

// Listener produces the next user utterance.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Kind classifies a listen failure. Each kind maps to its own apology.
type Kind int

const (
	// Unknown is any failure that is neither of the kinds below.
	Unknown Kind = iota

	// Unintelligible means audio was captured but no transcript matched it.
	Unintelligible

	// ServiceUnavailable means the recognition service could not be reached.
	ServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case Unintelligible:
		return "unintelligible"
	case ServiceUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}

// Error is returned by listeners for every failure except ErrClosed.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("listen (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrClosed is returned when the input can never produce another utterance,
// e.g. end of typed input.
var ErrClosed = errors.New("input closed")

// Classify wraps err in an *Error of the matching kind. Errors that already
// carry a kind, ErrClosed and context errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) || errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var reqErr *stt.RequestError
	switch {
	case errors.Is(err, stt.ErrNoSpeech), errors.Is(err, audio.ErrSilence):
		return &Error{Kind: Unintelligible, Err: err}
	case errors.As(err, &reqErr):
		return &Error{Kind: ServiceUnavailable, Err: err}
	default:
		return &Error{Kind: Unknown, Err: err}
	}
}

// KindOf returns the kind of a listen error, Unknown when err carries none.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return Unknown
}

// Notifier is told about the progress of a voice capture. The console uses
// it to print its prompts.
type Notifier interface {
	Listening()
	Processing()
	Heard(text string)
}

// NopNotifier ignores every notification.
type NopNotifier struct{}

func (NopNotifier) Listening()   {}
func (NopNotifier) Processing()  {}
func (NopNotifier) Heard(string) {}

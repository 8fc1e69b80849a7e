// Package completion defines the interface for chat completion backends.
//
// A backend receives the full conversation (system prompt first) and returns
// the next assistant reply. solace ships with four backends: Ollama (raw
// HTTP, also any OpenAI-compatible server), OpenAI, Anthropic and Gemini.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/nadzzz/solace/internal/message"
)

// Client produces the next assistant reply for a conversation.
type Client interface {
	// Name returns the backend identifier (e.g., "ollama", "openai").
	Name() string

	// Complete sends the whole history and returns the reply text. Errors
	// are always *Error.
	Complete(ctx context.Context, history []message.Message, temperature float64) (string, error)

	// Close releases any resources held by the client.
	Close() error
}

// Kind classifies a completion failure.
type Kind int

const (
	// KindUnreachable is a connection or transport failure.
	KindUnreachable Kind = iota

	// KindModel is a structured error reported by the endpoint, e.g. an
	// unknown model, or an empty reply.
	KindModel
)

func (k Kind) String() string {
	if k == KindModel {
		return "model"
	}
	return "unreachable"
}

// Error is returned by every Client on failure.
type Error struct {
	Kind    Kind
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s completion failed (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ModelError wraps err as a KindModel failure.
func ModelError(backend string, err error) *Error {
	return &Error{Kind: KindModel, Backend: backend, Err: err}
}

// Unreachable wraps err as a KindUnreachable failure.
func Unreachable(backend string, err error) *Error {
	return &Error{Kind: KindUnreachable, Backend: backend, Err: err}
}

// KindOf returns the kind of err. Errors that are not *Error count as
// KindUnreachable.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnreachable
}

// ErrEmptyReply is reported (as KindModel) when the endpoint answers
// without any text.
var ErrEmptyReply = errors.New("empty reply from model")

// Split separates the system prompt from the turns that follow it. Backends
// whose APIs carry the system prompt out of band use it.
func Split(history []message.Message) (system string, turns []message.Message) {
	for _, m := range history {
		if m.Role == message.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}

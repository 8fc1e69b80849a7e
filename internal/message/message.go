// Package message defines the core data types flowing through a solace conversation.
package message

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	// RoleSystem carries the persona instructions. Exactly one, always first.
	RoleSystem Role = "system"

	// RoleUser is an utterance from the person talking to the assistant.
	RoleUser Role = "user"

	// RoleAssistant is a reply produced by the completion backend
	// (or the apology substituted for one).
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry of the conversation transcript.
// Messages are values and never modified after creation.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Time is when the message was added to the history.
	Time time.Time `json:"time,omitempty"`
}

// ErrInvalidHistory is returned when a transcript violates the history invariants.
var ErrInvalidHistory = errors.New("invalid conversation history")

// History is the ordered conversation transcript. The first element is the
// system message; it is set once by NewHistory and never removed or replaced.
//
// History is not safe for concurrent use; the owning session serialises access.
type History struct {
	msgs []Message
}

// NewHistory creates a history holding only the system prompt.
func NewHistory(systemPrompt string) *History {
	return &History{
		msgs: []Message{{Role: RoleSystem, Content: systemPrompt, Time: time.Now()}},
	}
}

// Restore rebuilds a history from a snapshot, checking that the first and
// only system message leads the transcript.
func Restore(msgs []Message) (*History, error) {
	if len(msgs) == 0 || msgs[0].Role != RoleSystem {
		return nil, fmt.Errorf("%w: first message must have role system", ErrInvalidHistory)
	}
	for i, m := range msgs[1:] {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidHistory, i+1, m.Role)
		}
		if m.Role == RoleSystem {
			return nil, fmt.Errorf("%w: message %d is a second system message", ErrInvalidHistory, i+1)
		}
	}
	return &History{msgs: slices.Clone(msgs)}, nil
}

// Append adds a user or assistant message to the end of the history.
func (h *History) Append(role Role, content string) error {
	switch role {
	case RoleUser, RoleAssistant:
	case RoleSystem:
		return fmt.Errorf("%w: system message is set once at session start", ErrInvalidHistory)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidHistory, role)
	}
	if content == "" {
		return fmt.Errorf("%w: empty %s message", ErrInvalidHistory, role)
	}
	h.msgs = append(h.msgs, Message{Role: role, Content: content, Time: time.Now()})
	return nil
}

// Messages returns a copy of the full transcript, system message first.
func (h *History) Messages() []Message {
	return slices.Clone(h.msgs)
}

// Len returns the number of messages, including the system message.
func (h *History) Len() int {
	return len(h.msgs)
}

// System returns the system message.
func (h *History) System() Message {
	return h.msgs[0]
}

// Last returns the most recent message.
func (h *History) Last() Message {
	return h.msgs[len(h.msgs)-1]
}

// Truncate drops every message after the first n. The system message is
// always kept, so n below 1 is treated as 1.
func (h *History) Truncate(n int) {
	if n < 1 {
		n = 1
	}
	if n < len(h.msgs) {
		h.msgs = h.msgs[:n]
	}
}

// DropLastReply removes a trailing assistant message and reports whether one was removed.
func (h *History) DropLastReply() bool {
	if len(h.msgs) < 2 || h.Last().Role != RoleAssistant {
		return false
	}
	h.msgs = h.msgs[:len(h.msgs)-1]
	return true
}

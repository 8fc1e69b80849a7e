package session

import (
	"context"
	"log/slog"
	"time"
)

// EventType identifies a session event.
type EventType string

const (
	EventGreeting    EventType = "session.greeting"
	EventTurnSkipped EventType = "session.turn.skipped"
	EventCompletion  EventType = "session.completion"
	EventReply       EventType = "session.reply"
	EventExit        EventType = "session.exit"
)

// Event is emitted at each step of a conversation. Events carry metadata
// only; utterance text never appears in them.
type Event struct {
	Type      EventType
	Level     slog.Level
	Timestamp time.Time
	SessionID string
	Data      map[string]any
}

// Observer receives session events for logging or presentation.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// SlogObserver writes events to a slog.Logger. The event type becomes the
// log message and Data keys become attributes.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver that emits to logger, or to the
// default logger when logger is nil.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	attrs = append(attrs, slog.String("session_id", event.SessionID))
	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger.LogAttrs(ctx, event.Level, string(event.Type), attrs...)
}

// MultiObserver fans out events to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m {
		if obs != nil {
			obs.OnEvent(ctx, event)
		}
	}
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) { f(ctx, event) }

// Package session implements the conversation loop.
//
// A Session owns the conversation history and moves through
// Greeting → AwaitingInput → Completing → Responding → (AwaitingInput | Terminated).
// Both front-ends drive the same Session: the console by calling Run, the
// web API by feeding utterances to Heard one request at a time.
//
// Nothing but an exit phrase (or end of input) ends a session. Listen and
// completion failures are turned into spoken apologies and the loop goes on.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/listen"
	"github.com/nadzzz/solace/internal/message"
	"github.com/nadzzz/solace/internal/persona"
	"github.com/nadzzz/solace/internal/speech"
)

// DefaultExitPhrases end a session when spoken on their own.
var DefaultExitPhrases = []string{"exit", "quit", "bye", "goodbye"}

// Config is fixed for the lifetime of a session.
type Config struct {
	Persona     persona.Persona
	Temperature float64
	ExitPhrases []string
	OnFailure   FailurePolicy
}

// Turn reports what one utterance led to.
type Turn struct {
	Outcome Outcome

	// Transcript is the normalised user utterance ("" when skipped).
	Transcript string

	// Reply is what the assistant said: the model reply, an apology, or the
	// farewell. Empty for silent skips.
	Reply string

	// Err is the listen or completion error behind an apology, if any.
	Err error

	// Latency is the completion time for replied turns.
	Latency time.Duration
}

// Session is a single conversation. It is not safe for concurrent use.
type Session struct {
	id       string
	cfg      Config
	exit     map[string]struct{}
	history  *message.History
	client   completion.Client
	speaker  speech.Speaker
	listener listen.Listener
	observer Observer
	phase    Phase
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the id used in logs and events.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithListener sets the input used by Run and Step.
func WithListener(l listen.Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithHistory resumes an existing conversation. The greeting is skipped.
func WithHistory(h *message.History) Option {
	return func(s *Session) {
		s.history = h
		s.phase = AwaitingInput
	}
}

// New creates a session in the Greeting phase with a history holding only
// the persona's system prompt.
func New(cfg Config, client completion.Client, speaker speech.Speaker, opts ...Option) *Session {
	if len(cfg.ExitPhrases) == 0 {
		cfg.ExitPhrases = DefaultExitPhrases
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = Substitute
	}

	s := &Session{
		cfg:      cfg,
		exit:     make(map[string]struct{}, len(cfg.ExitPhrases)),
		client:   client,
		speaker:  speaker,
		observer: NewSlogObserver(nil),
		phase:    Greeting,
	}
	for _, p := range cfg.ExitPhrases {
		if n := normalise(p); n != "" {
			s.exit[n] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = message.NewHistory(cfg.Persona.SystemPrompt)
	}
	s.logger = slog.With("session_id", s.id, "backend", client.Name())
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// History returns a copy of the transcript.
func (s *Session) History() []message.Message { return s.history.Messages() }

// Terminated reports whether the session has ended.
func (s *Session) Terminated() bool { return s.phase == Terminated }

// Run greets the user and loops until an exit phrase, the end of input or
// the cancellation of ctx. It returns nil when the session ended normally.
func (s *Session) Run(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("session has no listener")
	}
	if s.phase == Greeting {
		s.Greet(ctx)
	}
	for !s.Terminated() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step(ctx)
	}
	return nil
}

// Greet speaks the persona's greeting and moves to AwaitingInput. The
// greeting is not part of the history.
func (s *Session) Greet(ctx context.Context) string {
	greeting := s.cfg.Persona.Greeting
	s.say(ctx, greeting)
	s.phase = AwaitingInput
	s.emit(ctx, EventGreeting, slog.LevelDebug, nil)
	return greeting
}

// Step listens for one utterance and handles it. End of input is treated
// like an exit phrase.
func (s *Session) Step(ctx context.Context) Turn {
	text, err := s.listener.Listen(ctx)
	switch {
	case errors.Is(err, listen.ErrClosed):
		return s.end(ctx, "", "input_closed")
	case ctx.Err() != nil:
		return Turn{Outcome: OutcomeSkipped, Err: ctx.Err()}
	}
	return s.Heard(ctx, text, err)
}

// Heard handles one utterance, or the failure to capture one.
func (s *Session) Heard(ctx context.Context, transcript string, listenErr error) Turn {
	if s.phase == Terminated {
		return Turn{Outcome: OutcomeEnded}
	}
	s.phase = AwaitingInput

	if listenErr != nil {
		kind := listen.KindOf(listenErr)
		apology := s.listenApology(kind)
		s.logger.Warn("listen failed", "kind", kind, "error", listenErr)
		s.say(ctx, apology)
		s.emit(ctx, EventTurnSkipped, slog.LevelInfo, map[string]any{"reason": "listen_" + kind.String()})
		return Turn{Outcome: OutcomeSkipped, Reply: apology, Err: listenErr}
	}

	text := strings.TrimSpace(transcript)
	if text == "" {
		s.emit(ctx, EventTurnSkipped, slog.LevelDebug, map[string]any{"reason": "empty"})
		return Turn{Outcome: OutcomeSkipped}
	}

	if s.IsExitPhrase(text) {
		return s.end(ctx, text, "exit_phrase")
	}

	if err := s.history.Append(message.RoleUser, text); err != nil {
		// Unreachable with a non-empty user message.
		s.logger.Error("appending user message", "error", err)
		return Turn{Outcome: OutcomeSkipped, Err: err}
	}

	turn := s.respond(ctx, nil)
	turn.Transcript = text
	return turn
}

// Regenerate replaces the last assistant reply with a new completion of
// the same history. It is a no-op when the history does not end with a reply.
func (s *Session) Regenerate(ctx context.Context) Turn {
	if s.phase == Terminated {
		return Turn{Outcome: OutcomeEnded}
	}
	previous := s.history.Last()
	if !s.history.DropLastReply() {
		s.emit(ctx, EventTurnSkipped, slog.LevelDebug, map[string]any{"reason": "nothing_to_regenerate"})
		return Turn{Outcome: OutcomeSkipped}
	}

	turn := s.respond(ctx, &previous)
	if n := s.history.Len(); n > 1 {
		turn.Transcript = s.history.Messages()[n-2].Content
	}
	return turn
}

// IsExitPhrase reports whether text is one of the configured exit phrases,
// ignoring case, surrounding whitespace and trailing punctuation.
func (s *Session) IsExitPhrase(text string) bool {
	_, ok := s.exit[normalise(text)]
	return ok
}

// respond runs Completing and Responding for the history as it stands.
// Under the omit policy, or when ctx is cancelled mid-completion, a failed
// completion leaves no trace in the history.
func (s *Session) respond(ctx context.Context, replaced *message.Message) Turn {
	s.phase = Completing
	msgs := s.history.Messages()

	start := time.Now()
	reply, err := s.client.Complete(ctx, msgs, s.cfg.Temperature)
	attempts := 1
	if err != nil && s.cfg.OnFailure == RetryOnce && ctx.Err() == nil {
		s.logger.Warn("completion failed, retrying once", "error", err)
		reply, err = s.client.Complete(ctx, msgs, s.cfg.Temperature)
		attempts++
	}
	latency := time.Since(start)

	data := map[string]any{
		"latency":  latency,
		"messages": len(msgs),
		"attempts": attempts,
	}
	if err != nil {
		data["error"] = err.Error()
		data["kind"] = completion.KindOf(err).String()
		s.emit(ctx, EventCompletion, slog.LevelWarn, data)
	} else {
		s.emit(ctx, EventCompletion, slog.LevelInfo, data)
	}

	// A cancelled turn is abandoned, not answered: no apology is recorded
	// for an outage that did not happen.
	if err != nil && ctx.Err() != nil {
		s.rollback(replaced)
		s.phase = AwaitingInput
		s.emit(ctx, EventTurnSkipped, slog.LevelInfo, map[string]any{"reason": "cancelled"})
		return Turn{Outcome: OutcomeSkipped, Latency: latency, Err: ctx.Err()}
	}

	s.phase = Responding
	turn := Turn{Outcome: OutcomeReplied, Latency: latency, Err: err}

	if err != nil {
		reply = s.completionApology(completion.KindOf(err))
		if s.cfg.OnFailure == Omit {
			s.rollback(replaced)
			s.say(ctx, reply)
			s.phase = AwaitingInput
			turn.Reply = reply
			s.emit(ctx, EventReply, slog.LevelInfo, map[string]any{"substituted": true, "recorded": false})
			return turn
		}
	}

	s.say(ctx, reply)
	if appendErr := s.history.Append(message.RoleAssistant, reply); appendErr != nil {
		s.logger.Error("appending assistant message", "error", appendErr)
	}
	s.phase = AwaitingInput
	turn.Reply = reply
	s.emit(ctx, EventReply, slog.LevelInfo, map[string]any{
		"substituted": err != nil,
		"recorded":    true,
		"history_len": s.history.Len(),
	})
	return turn
}

// rollback undoes the turn in progress: the user message is removed, or,
// when regenerating, the replaced reply is put back.
func (s *Session) rollback(replaced *message.Message) {
	if replaced == nil {
		s.history.Truncate(s.history.Len() - 1)
		return
	}
	if err := s.history.Append(message.RoleAssistant, replaced.Content); err != nil {
		s.logger.Error("restoring replaced reply", "error", err)
	}
}

func (s *Session) end(ctx context.Context, text, reason string) Turn {
	farewell := s.cfg.Persona.Farewell
	s.say(ctx, farewell)
	s.phase = Terminated
	s.emit(ctx, EventExit, slog.LevelInfo, map[string]any{"reason": reason, "history_len": s.history.Len()})
	return Turn{Outcome: OutcomeEnded, Transcript: text, Reply: farewell}
}

// say delivers an utterance. Delivery failures never stop the session.
func (s *Session) say(ctx context.Context, text string) {
	if text == "" || s.speaker == nil {
		return
	}
	if err := s.speaker.Speak(ctx, text); err != nil {
		s.logger.Warn("speaking failed", "error", err)
	}
}

func (s *Session) listenApology(kind listen.Kind) string {
	a := s.cfg.Persona.Apologies
	switch kind {
	case listen.Unintelligible:
		return a.Unintelligible
	case listen.ServiceUnavailable:
		return a.ServiceUnavailable
	default:
		return a.ListenUnknown
	}
}

func (s *Session) completionApology(kind completion.Kind) string {
	if kind == completion.KindModel {
		return s.cfg.Persona.Apologies.ModelError
	}
	return s.cfg.Persona.Apologies.Unreachable
}

func (s *Session) emit(ctx context.Context, t EventType, level slog.Level, data map[string]any) {
	if s.observer == nil {
		return
	}
	s.observer.OnEvent(ctx, Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		SessionID: s.id,
		Data:      data,
	})
}

// normalise lowercases text and strips surrounding whitespace and trailing
// punctuation, so "Goodbye!" matches "goodbye".
func normalise(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(text, ".!?,;: ")
}

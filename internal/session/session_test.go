package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/listen"
	"github.com/nadzzz/solace/internal/message"
	"github.com/nadzzz/solace/internal/persona"
	"github.com/nadzzz/solace/internal/stt"
)

type fakeClient struct {
	replies []string
	errs    []error
	calls   [][]message.Message
	temps   []float64
}

func (c *fakeClient) Name() string { return "fake" }
func (c *fakeClient) Close() error { return nil }

func (c *fakeClient) Complete(_ context.Context, history []message.Message, temperature float64) (string, error) {
	i := len(c.calls)
	c.calls = append(c.calls, history)
	c.temps = append(c.temps, temperature)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "ok", nil
}

type fakeSpeaker struct {
	said []string
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	s.said = append(s.said, text)
	return nil
}

type scriptedInput struct {
	text string
	err  error
}

type fakeListener struct {
	script []scriptedInput
}

func (l *fakeListener) Listen(context.Context) (string, error) {
	if len(l.script) == 0 {
		return "", listen.ErrClosed
	}
	next := l.script[0]
	l.script = l.script[1:]
	return next.text, next.err
}

func newSession(t *testing.T, client *fakeClient, policy FailurePolicy, opts ...Option) (*Session, *fakeSpeaker) {
	t.Helper()
	sp := &fakeSpeaker{}
	cfg := Config{
		Persona:     persona.Default(),
		Temperature: 0.7,
		OnFailure:   policy,
	}
	return New(cfg, client, sp, opts...), sp
}

func unreachable() error {
	return completion.Unreachable("fake", errors.New("connection refused"))
}

func TestHeard_ConcreteScenario(t *testing.T) {
	client := &fakeClient{replies: []string{"That sounds really hard, I'm here for you."}}
	s, sp := newSession(t, client, Substitute)

	turn := s.Heard(context.Background(), "I feel anxious today", nil)
	assert.Equal(t, OutcomeReplied, turn.Outcome)
	assert.Equal(t, "I feel anxious today", turn.Transcript)
	assert.Equal(t, "That sounds really hard, I'm here for you.", turn.Reply)
	assert.NoError(t, turn.Err)

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, message.RoleSystem, h[0].Role)
	assert.Equal(t, persona.Default().SystemPrompt, h[0].Content)
	assert.Equal(t, message.Message{Role: message.RoleUser, Content: "I feel anxious today"}, withoutTime(h[1]))
	assert.Equal(t, message.Message{Role: message.RoleAssistant, Content: "That sounds really hard, I'm here for you."}, withoutTime(h[2]))

	assert.Equal(t, []string{"That sounds really hard, I'm here for you."}, sp.said)
	assert.Equal(t, AwaitingInput, s.Phase())
}

func TestHeard_HistoryGrowsByTwoAndKeepsSystem(t *testing.T) {
	client := &fakeClient{}
	s, _ := newSession(t, client, Substitute)
	system := s.History()[0]

	for i, text := range []string{"one", "two", "three"} {
		s.Heard(context.Background(), text, nil)
		h := s.History()
		assert.Len(t, h, 1+2*(i+1))
		assert.Equal(t, system, h[0])
	}
}

func TestHeard_SendsFullContext(t *testing.T) {
	client := &fakeClient{}
	s, _ := newSession(t, client, Substitute)

	s.Heard(context.Background(), "first", nil)
	s.Heard(context.Background(), "second", nil)

	require.Len(t, client.calls, 2)
	assert.Len(t, client.calls[0], 2)
	last := client.calls[1]
	require.Len(t, last, 4)
	assert.Equal(t, message.RoleSystem, last[0].Role)
	assert.Equal(t, "first", last[1].Content)
	assert.Equal(t, "ok", last[2].Content)
	assert.Equal(t, "second", last[3].Content)
	assert.Equal(t, []float64{0.7, 0.7}, client.temps)
}

func TestHeard_ExitPhrases(t *testing.T) {
	for _, phrase := range []string{"Exit", "QUIT", "Bye", "GoodBye", "  goodbye!  ", "Bye."} {
		t.Run(phrase, func(t *testing.T) {
			client := &fakeClient{}
			s, sp := newSession(t, client, Substitute)

			turn := s.Heard(context.Background(), phrase, nil)
			assert.Equal(t, OutcomeEnded, turn.Outcome)
			assert.Equal(t, Terminated, s.Phase())
			assert.Len(t, s.History(), 1, "no user/assistant pair appended")
			assert.Empty(t, client.calls)
			assert.Equal(t, []string{persona.Default().Farewell}, sp.said)

			again := s.Heard(context.Background(), "hello?", nil)
			assert.Equal(t, OutcomeEnded, again.Outcome)
			assert.Len(t, s.History(), 1)
		})
	}
}

func TestHeard_ExitPhraseMustBeWholeUtterance(t *testing.T) {
	s, _ := newSession(t, &fakeClient{}, Substitute)
	turn := s.Heard(context.Background(), "I want to exit this job", nil)
	assert.Equal(t, OutcomeReplied, turn.Outcome)
}

func TestHeard_ConfiguredExitPhrases(t *testing.T) {
	client := &fakeClient{}
	cfg := Config{Persona: persona.Default(), ExitPhrases: []string{"Au revoir"}}
	s := New(cfg, client, &fakeSpeaker{})

	assert.True(t, s.IsExitPhrase("au revoir!"))
	assert.False(t, s.IsExitPhrase("bye"))
}

func TestHeard_ListenFailuresLeaveHistoryUnchanged(t *testing.T) {
	p := persona.Default()
	tests := []struct {
		name    string
		err     error
		apology string
	}{
		{"unintelligible", listen.Classify(stt.ErrNoSpeech), p.Apologies.Unintelligible},
		{"service unavailable", listen.Classify(&stt.RequestError{Backend: "x", Err: errors.New("dns")}), p.Apologies.ServiceUnavailable},
		{"unknown", listen.Classify(errors.New("device busy")), p.Apologies.ListenUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			s, sp := newSession(t, client, Substitute)

			turn := s.Heard(context.Background(), "", tt.err)
			assert.Equal(t, OutcomeSkipped, turn.Outcome)
			assert.Equal(t, tt.apology, turn.Reply)
			assert.Len(t, s.History(), 1)
			assert.Empty(t, client.calls)
			assert.Equal(t, []string{tt.apology}, sp.said)
			assert.Equal(t, AwaitingInput, s.Phase())
		})
	}
}

func TestHeard_EmptyTranscriptIsSilent(t *testing.T) {
	s, sp := newSession(t, &fakeClient{}, Substitute)
	turn := s.Heard(context.Background(), "   ", nil)
	assert.Equal(t, OutcomeSkipped, turn.Outcome)
	assert.Empty(t, sp.said)
	assert.Len(t, s.History(), 1)
}

func TestHeard_CompletionFailureSubstitutes(t *testing.T) {
	p := persona.Default()
	tests := []struct {
		name    string
		err     error
		apology string
	}{
		{"unreachable", unreachable(), p.Apologies.Unreachable},
		{"model error", completion.ModelError("fake", errors.New("model not found")), p.Apologies.ModelError},
		{"unclassified", errors.New("weird"), p.Apologies.Unreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{errs: []error{tt.err}}
			s, sp := newSession(t, client, Substitute)

			turn := s.Heard(context.Background(), "hello", nil)
			assert.Equal(t, OutcomeReplied, turn.Outcome)
			assert.Error(t, turn.Err)

			h := s.History()
			require.Len(t, h, 3)
			assert.Equal(t, message.RoleAssistant, h[2].Role)
			assert.Equal(t, tt.apology, h[2].Content)
			assert.NotEmpty(t, h[2].Content)
			assert.Equal(t, []string{tt.apology}, sp.said)
			assert.Len(t, client.calls, 1, "no implicit retry")
		})
	}
}

func TestHeard_OmitPolicy(t *testing.T) {
	client := &fakeClient{errs: []error{unreachable()}}
	s, sp := newSession(t, client, Omit)

	turn := s.Heard(context.Background(), "hello", nil)
	assert.Equal(t, OutcomeReplied, turn.Outcome)
	assert.Equal(t, persona.Default().Apologies.Unreachable, turn.Reply)
	assert.Len(t, s.History(), 1, "failed turn leaves no trace")
	assert.Equal(t, []string{persona.Default().Apologies.Unreachable}, sp.said)
	assert.Equal(t, AwaitingInput, s.Phase())
}

func TestHeard_RetryOncePolicy(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		client := &fakeClient{errs: []error{unreachable()}, replies: []string{"", "recovered"}}
		s, _ := newSession(t, client, RetryOnce)

		turn := s.Heard(context.Background(), "hello", nil)
		assert.NoError(t, turn.Err)
		assert.Equal(t, "recovered", turn.Reply)
		assert.Len(t, client.calls, 2)
		assert.Equal(t, client.calls[0], client.calls[1], "retry resends the same history")
	})

	t.Run("both attempts fail", func(t *testing.T) {
		client := &fakeClient{errs: []error{unreachable(), unreachable()}}
		s, _ := newSession(t, client, RetryOnce)

		turn := s.Heard(context.Background(), "hello", nil)
		assert.Error(t, turn.Err)
		assert.Len(t, client.calls, 2)
		h := s.History()
		require.Len(t, h, 3)
		assert.Equal(t, persona.Default().Apologies.Unreachable, h[2].Content)
	})
}

func TestHeard_CancelledCompletionIsNotAnswered(t *testing.T) {
	for _, policy := range []FailurePolicy{Substitute, Omit, RetryOnce} {
		t.Run(string(policy), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			client := &fakeClient{errs: []error{completion.Unreachable("fake", ctx.Err())}}
			s, sp := newSession(t, client, policy)

			turn := s.Heard(ctx, "I feel anxious today", nil)
			assert.Equal(t, OutcomeSkipped, turn.Outcome)
			assert.ErrorIs(t, turn.Err, context.Canceled)
			assert.Empty(t, turn.Reply)
			assert.Len(t, s.History(), 1)
			assert.Empty(t, sp.said)
			assert.Len(t, client.calls, 1)
			assert.Equal(t, AwaitingInput, s.Phase())
		})
	}
}

func TestRegenerate(t *testing.T) {
	client := &fakeClient{replies: []string{"first answer", "second answer"}}
	s, sp := newSession(t, client, Substitute)

	s.Heard(context.Background(), "help me", nil)
	turn := s.Regenerate(context.Background())
	assert.Equal(t, OutcomeReplied, turn.Outcome)
	assert.Equal(t, "second answer", turn.Reply)
	assert.Equal(t, "help me", turn.Transcript)

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, "second answer", h[2].Content)
	assert.Len(t, client.calls[1], 2, "regeneration does not resend the dropped reply")
	assert.Equal(t, []string{"first answer", "second answer"}, sp.said)
}

func TestRegenerate_OmitKeepsPreviousReply(t *testing.T) {
	client := &fakeClient{replies: []string{"first answer"}, errs: []error{nil, unreachable()}}
	s, _ := newSession(t, client, Omit)

	s.Heard(context.Background(), "help me", nil)
	turn := s.Regenerate(context.Background())
	assert.Error(t, turn.Err)

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, message.RoleUser, h[1].Role)
	assert.Equal(t, "first answer", h[2].Content)
}

func TestRegenerate_CancelledKeepsPreviousReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{replies: []string{"first answer"}, errs: []error{nil, completion.Unreachable("fake", context.Canceled)}}
	s, sp := newSession(t, client, Substitute)

	s.Heard(ctx, "help me", nil)
	cancel()
	turn := s.Regenerate(ctx)
	assert.Equal(t, OutcomeSkipped, turn.Outcome)

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, "first answer", h[2].Content)
	assert.Equal(t, []string{"first answer"}, sp.said)
}

func TestRegenerate_NothingToRegenerate(t *testing.T) {
	client := &fakeClient{}
	s, _ := newSession(t, client, Substitute)

	turn := s.Regenerate(context.Background())
	assert.Equal(t, OutcomeSkipped, turn.Outcome)
	assert.Empty(t, client.calls)
	assert.Len(t, s.History(), 1)
}

func TestRun(t *testing.T) {
	client := &fakeClient{replies: []string{"I hear you."}}
	input := &fakeListener{script: []scriptedInput{
		{err: listen.Classify(stt.ErrNoSpeech)},
		{text: ""},
		{text: "work has been hard"},
		{text: "Goodbye"},
		{text: "never read"},
	}}
	var events []EventType
	obs := ObserverFunc(func(_ context.Context, e Event) { events = append(events, e.Type) })

	s, sp := newSession(t, client, Substitute, WithListener(input), WithObserver(obs), WithID("console"))
	require.NoError(t, s.Run(context.Background()))

	p := persona.Default()
	assert.Equal(t, []string{p.Greeting, p.Apologies.Unintelligible, "I hear you.", p.Farewell}, sp.said)
	assert.Len(t, s.History(), 3)
	assert.Len(t, input.script, 1)
	assert.Equal(t, []EventType{
		EventGreeting,
		EventTurnSkipped,
		EventTurnSkipped,
		EventCompletion,
		EventReply,
		EventExit,
	}, events)
}

func TestRun_EndOfInputSaysFarewell(t *testing.T) {
	s, sp := newSession(t, &fakeClient{}, Substitute, WithListener(&fakeListener{}))
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{persona.Default().Greeting, persona.Default().Farewell}, sp.said)
	assert.True(t, s.Terminated())
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, _ := newSession(t, &fakeClient{}, Substitute, WithListener(&fakeListener{script: []scriptedInput{{text: "hi"}}}))
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestRun_RequiresListener(t *testing.T) {
	s, _ := newSession(t, &fakeClient{}, Substitute)
	assert.Error(t, s.Run(context.Background()))
}

func TestWithHistory_SkipsGreeting(t *testing.T) {
	h, err := message.Restore([]message.Message{
		{Role: message.RoleSystem, Content: "sys"},
		{Role: message.RoleUser, Content: "hi"},
		{Role: message.RoleAssistant, Content: "hello"},
	})
	require.NoError(t, err)

	client := &fakeClient{}
	s, _ := newSession(t, client, Substitute, WithHistory(h))
	assert.Equal(t, AwaitingInput, s.Phase())

	s.Heard(context.Background(), "again", nil)
	require.Len(t, client.calls, 1)
	assert.Len(t, client.calls[0], 4)
}

func TestParseFailurePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": Substitute, "substitute": Substitute, "omit": Omit, "retry-once": RetryOnce} {
		got, err := ParseFailurePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFailurePolicy("panic")
	assert.Error(t, err)
}

func withoutTime(m message.Message) message.Message {
	m.Time = time.Time{}
	return m
}

package listen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// lineReader is the part of *readline.Instance used by Text.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// Text reads typed utterances from the terminal.
type Text struct {
	rl       lineReader
	notifier Notifier
}

// NewText opens a readline prompt on the terminal.
func NewText(prompt string, notifier Notifier) (*Text, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("opening terminal input: %w", err)
	}
	return newText(rl, notifier), nil
}

func newText(rl lineReader, notifier Notifier) *Text {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Text{rl: rl, notifier: notifier}
}

// Listen returns the next typed line. End of input and Ctrl-C return ErrClosed.
// Blank lines are returned as "" so the session can skip them.
func (t *Text) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := t.rl.Readline()
	if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
		return "", ErrClosed
	}
	if err != nil {
		return "", &Error{Kind: Unknown, Err: err}
	}
	line = strings.TrimSpace(line)
	if line != "" {
		t.notifier.Heard(line)
	}
	return line, nil
}

// Close restores the terminal.
func (t *Text) Close() error {
	return t.rl.Close()
}

package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Background.Speak after Close.
var ErrClosed = errors.New("speaker closed")

// Background speaks without blocking the caller. Starting a new utterance
// cancels the previous one through its own context but does not wait for it
// to stop, so the tail of an old utterance may overlap the start of the next.
type Background struct {
	speaker Speaker

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewBackground wraps speaker.
func NewBackground(speaker Speaker) *Background {
	return &Background{speaker: speaker}
}

// Speak cancels any in-flight utterance and starts text in a new goroutine.
// Playback outlives ctx's cancellation (an HTTP request may end first) but
// keeps its values.
func (b *Background) Speak(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	if b.cancel != nil {
		b.cancel()
	}
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		if err := b.speaker.Speak(pctx, text); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("background speech failed", "error", err)
		}
	}()
	return nil
}

// Stop cancels the in-flight utterance, if any.
func (b *Background) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// Close stops the in-flight utterance and waits for every playback
// goroutine to return.
func (b *Background) Close() error {
	b.mu.Lock()
	b.closed = true
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Package store keeps web conversations between requests.
//
// The console never uses a store: its conversation lives in the session and
// is dropped on exit. The web front-end needs one because each HTTP request
// rebuilds the session from the stored history.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/nadzzz/solace/internal/message"
)

// ErrNotFound is returned when a conversation does not exist or has expired.
var ErrNotFound = errors.New("conversation not found")

// Conversation is a snapshot of a web conversation.
type Conversation struct {
	ID        string            `json:"id"`
	History   []message.Message `json:"messages"`
	Ended     bool              `json:"ended"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store persists conversation snapshots.
type Store interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Memory is an in-process Store. Conversations are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	convs map[string]Conversation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{convs: make(map[string]Conversation)}
}

func (m *Memory) Get(_ context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.History = slices.Clone(c.History)
	return &c, nil
}

func (m *Memory) Save(_ context.Context, c *Conversation) error {
	snapshot := *c
	snapshot.History = slices.Clone(c.History)
	m.mu.Lock()
	m.convs[c.ID] = snapshot
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return ErrNotFound
	}
	delete(m.convs, id)
	return nil
}

func (m *Memory) Close() error { return nil }

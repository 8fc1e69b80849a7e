package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/message"
)

func sample(id string) *Conversation {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Conversation{
		ID: id,
		History: []message.Message{
			{Role: message.RoleSystem, Content: "be kind", Time: now},
			{Role: message.RoleUser, Content: "hi", Time: now},
			{Role: message.RoleAssistant, Content: "hello", Time: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newMiniRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemory() },
		"redis": func(t *testing.T) Store {
			r, _ := newMiniRedis(t, time.Hour)
			return r
		},
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			want := sample("c1")
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			got.History = append(got.History, message.Message{Role: message.RoleUser, Content: "more"})
			again, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, again.History, 3, "snapshots are independent of callers")

			require.NoError(t, s.Delete(ctx, "c1"))
			_, err = s.Get(ctx, "c1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "c1"), ErrNotFound)
		})
	}
}

func TestRedis_TTL(t *testing.T) {
	r, mr := newMiniRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, sample("c2")))
	assert.Equal(t, time.Minute, mr.TTL("solace:conversation:c2"))

	mr.FastForward(2 * time.Minute)
	_, err := r.Get(ctx, "c2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

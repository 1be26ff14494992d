// Package history stores the canonical query trail of a search session.
// The newest entry is the current query; Back drops it.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/mohammed-shakir/mapsearch/internal/cache/keys"
)

// DefaultDepth bounds the number of entries kept per session.
const DefaultDepth = 50

type Memory struct {
	mu      sync.Mutex
	entries []string
	depth   int
}

func NewMemory(depth int) *Memory {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Memory{depth: depth}
}

func (m *Memory) ReadCurrentQuery(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return "", nil
	}
	return m.entries[len(m.entries)-1], nil
}

// WriteCanonicalQuery appends q unless it already is the current entry.
func (m *Memory) WriteCanonicalQuery(_ context.Context, q string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.entries); n > 0 && m.entries[n-1] == q {
		return nil
	}
	m.entries = append(m.entries, q)
	if over := len(m.entries) - m.depth; over > 0 {
		m.entries = append(m.entries[:0], m.entries[over:]...)
	}
	return nil
}

// Back drops the current entry and returns the one before it. ok is false
// when there is nothing to go back to.
func (m *Memory) Back(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) < 2 {
		return "", false, nil
	}
	m.entries = m.entries[:len(m.entries)-1]
	return m.entries[len(m.entries)-1], true, nil
}

// Entries returns the trail, newest first.
func (m *Memory) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[len(out)-1-i] = e
	}
	return out
}

// ListStore is the subset of redisstore.Client used by Redis.
type ListStore interface {
	Push(ctx context.Context, key string, val []byte, maxLen int64, ttl time.Duration) error
	Head(ctx context.Context, key string) ([]byte, bool, error)
	Pop(ctx context.Context, key string) ([]byte, bool, error)
	Range(ctx context.Context, key string, n int64) ([][]byte, error)
}

// Redis keeps one session's trail in a Redis list that expires with the
// session.
type Redis struct {
	store ListStore
	key   string
	depth int64
	ttl   time.Duration
}

func NewRedis(store ListStore, sessionID string, depth int, ttl time.Duration) *Redis {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Redis{store: store, key: keys.History(sessionID), depth: int64(depth), ttl: ttl}
}

func (r *Redis) ReadCurrentQuery(ctx context.Context) (string, error) {
	b, _, err := r.store.Head(ctx, r.key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Redis) WriteCanonicalQuery(ctx context.Context, q string) error {
	cur, ok, err := r.store.Head(ctx, r.key)
	if err != nil {
		return err
	}
	if ok && string(cur) == q {
		return nil
	}
	return r.store.Push(ctx, r.key, []byte(q), r.depth, r.ttl)
}

func (r *Redis) Back(ctx context.Context) (string, bool, error) {
	top, err := r.store.Range(ctx, r.key, 2)
	if err != nil || len(top) < 2 {
		return "", false, err
	}
	if _, _, err := r.store.Pop(ctx, r.key); err != nil {
		return "", false, err
	}
	return string(top[1]), true, nil
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/mapsearch/internal/core/observability"
	"github.com/mohammed-shakir/mapsearch/internal/params"
	"github.com/mohammed-shakir/mapsearch/internal/searchevents"
	"github.com/mohammed-shakir/mapsearch/internal/searchstate"
)

type Config struct {
	PageView          string
	PageSize          int
	BigAreaKm2        float64
	ResponseCacheSize int
	Padding           float64
	MarkerRes         int
	ClusterLimit      int
	TTL               time.Duration
	Max               int
}

func (c Config) withDefaults() Config {
	if c.PageView == "" {
		c.PageView = searchstate.DefaultPageView
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.ClusterLimit <= 0 {
		c.ClusterLimit = 200
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.Max <= 0 {
		c.Max = 1024
	}
	return c
}

// HistoryFactory creates the history of a new session.
type HistoryFactory func(sessionID string) Trail

// Registry holds live sessions in an LRU. Sessions idle for longer than the
// TTL or pushed out by newer ones are closed, aborting their requests.
type Registry struct {
	cfg        Config
	transport  searchstate.Transport
	newHistory HistoryFactory
	events     searchevents.Sink
	logger     *slog.Logger
	sessions   *expirable.LRU[string, *Session]
	live       atomic.Int64
}

func NewRegistry(cfg Config, tr searchstate.Transport, newHistory HistoryFactory, events searchevents.Sink, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if events == nil {
		events = searchevents.Nop{}
	}
	r := &Registry{
		cfg:        cfg.withDefaults(),
		transport:  tr,
		newHistory: newHistory,
		events:     events,
		logger:     logger,
	}
	r.sessions = expirable.NewLRU[string, *Session](r.cfg.Max, r.evicted, r.cfg.TTL)
	return r
}

// runs under the LRU lock; must not call back into the registry
func (r *Registry) evicted(id string, s *Session) {
	s.Close()
	observability.SetActiveSessions(int(r.live.Add(-1)))
	r.logger.Debug("session closed", "session_id", id)
}

// Create starts a session whose state is restored from query, which may be
// empty.
func (r *Registry) Create(ctx context.Context, query string) (*Session, error) {
	id := uuid.NewString()
	h := r.newHistory(id)
	if query != "" {
		if err := h.WriteCanonicalQuery(ctx, query); err != nil {
			return nil, fmt.Errorf("seed history: %w", err)
		}
	}

	log := r.logger.With("session_id", id)
	st := searchstate.New(params.Search, r.transport, h,
		searchstate.WithLogger(log),
		searchstate.WithPageView(r.cfg.PageView),
		searchstate.WithBigArea(r.cfg.BigAreaKm2),
		searchstate.WithResponseCache(r.cfg.ResponseCacheSize),
	)
	if err := st.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore session state: %w", err)
	}

	s := &Session{
		ID:      id,
		State:   st,
		Map:     &Viewport{},
		history: h,
		cfg:     r.cfg,
		events:  r.events,
		logger:  log,
	}
	st.Follow(s.Map, r.cfg.Padding, s.publish)

	r.sessions.Add(id, s)
	observability.SetActiveSessions(int(r.live.Add(1)))
	log.InfoContext(ctx, "session created", "query", query)
	return s, nil
}

// Get returns a live session and renews its TTL.
func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	r.sessions.Add(id, s)
	return s, nil
}

func (r *Registry) Delete(id string) error {
	if !r.sessions.Remove(id) {
		return ErrNotFound
	}
	return nil
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close tears down every session.
func (r *Registry) Close() {
	r.sessions.Purge()
}

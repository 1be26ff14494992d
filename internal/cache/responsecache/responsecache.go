// Package responsecache shares search responses between sessions through
// Redis, in front of the backend transport.
package responsecache

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/mapsearch/internal/cache/keys"
	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/transport"
)

// Store is the subset of redisstore.Client used here.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Cache struct {
	next      transport.Fetcher
	store     Store
	pageView  string
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
}

func New(next transport.Fetcher, store Store, pageView string, ttl, opTimeout time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Cache{next: next, store: store, pageView: pageView, ttl: ttl, opTimeout: opTimeout, logger: logger}
}

// Fetch serves payload from Redis when present and fills Redis after a
// backend fetch. Redis errors degrade to a plain backend fetch.
func (c *Cache) Fetch(ctx context.Context, payload string) (*model.Result, error) {
	key := keys.Response(c.pageView, payload)

	gctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	b, ok, err := c.store.Get(gctx, key)
	cancel()
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "response cache read failed", "key", key, "err", err)
	case ok:
		res, derr := transport.Decode(b)
		if derr == nil {
			return res, nil
		}
		c.logger.WarnContext(ctx, "cached response undecodable", "key", key, "err", derr)
	}

	res, err := c.next.Fetch(ctx, payload)
	if err != nil {
		return nil, err
	}
	if len(res.Raw) > 0 && c.ttl > 0 {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
		if err := c.store.Set(sctx, key, res.Raw, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "response cache write failed", "key", key, "err", err)
		}
		cancel()
	}
	return res, nil
}

// Transport exposes the cache as an abortable search transport.
func (c *Cache) Transport() transport.Func {
	return c.Fetch
}

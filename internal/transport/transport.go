// Package transport issues search requests to the backend over HTTP and
// decodes the response into a model.Result.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/core/observability"
	"github.com/mohammed-shakir/mapsearch/internal/searchstate"
)

// ErrStatus wraps non-2xx backend responses.
var ErrStatus = errors.New("search backend status")

const maxBody = 32 << 20

type Client struct {
	logger   *slog.Logger
	client   *http.Client
	base     *url.URL
	limiter  *rate.Limiter
	startNow func() time.Time // for tests
}

// New targets base, the search endpoint. rps <= 0 disables rate limiting.
func New(logger *slog.Logger, client *http.Client, base string, rps float64) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q: scheme and host required", base)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if client == nil {
		client = http.DefaultClient
	}
	c := &Client{logger: logger, client: client, base: u, startNow: time.Now}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c, nil
}

// Fetch sends payload as the query string and decodes the response.
func (c *Client) Fetch(ctx context.Context, payload string) (*model.Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	u := *c.base
	u.RawQuery = joinQuery(c.base.RawQuery, payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.startNow()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency("search", dur.Seconds())
	c.logger.DebugContext(ctx, "backend responded", "status", resp.StatusCode, "duration", dur.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Decode(b)
}

type call struct {
	cancel context.CancelFunc
}

func (c *call) Abort() { c.cancel() }

// Request runs Fetch in the background.
func (c *Client) Request(ctx context.Context, payload string, done func(*model.Result, error)) searchstate.Handle {
	return Func(c.Fetch).Request(ctx, payload, done)
}

func joinQuery(base, payload string) string {
	switch {
	case base == "":
		return payload
	case payload == "":
		return base
	default:
		return base + "&" + payload
	}
}

// Fetcher is the synchronous form of a search transport.
type Fetcher interface {
	Fetch(ctx context.Context, payload string) (*model.Result, error)
}

// Func adapts a synchronous fetch into a searchstate.Transport. done is
// called exactly once from a new goroutine; after Abort it receives the
// context error.
type Func func(ctx context.Context, payload string) (*model.Result, error)

func (f Func) Request(ctx context.Context, payload string, done func(*model.Result, error)) searchstate.Handle {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		res, err := f(ctx, payload)
		if err != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		done(res, err)
	}()
	return &call{cancel: cancel}
}

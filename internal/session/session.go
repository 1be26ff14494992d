// Package session hosts one search state per client session and renders the
// result view the client draws.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/params"
	"github.com/mohammed-shakir/mapsearch/internal/searchevents"
	"github.com/mohammed-shakir/mapsearch/internal/searchstate"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrUnknownParam = errors.New("unknown search parameter")
	ErrNoHistory    = errors.New("no earlier search in history")
)

// Trail is the session history: the searchstate collaborator plus going back.
type Trail interface {
	searchstate.History
	Back(ctx context.Context) (string, bool, error)
}

type Session struct {
	ID    string
	State *searchstate.State
	Map   *Viewport

	history Trail
	cfg     Config
	events  searchevents.Sink
	logger  *slog.Logger
}

// Apply sets the given parameters, a nil value resetting one to its
// default, then saves and waits for the search to settle.
func (s *Session) Apply(ctx context.Context, values map[string]*string) (View, error) {
	attrs := make(params.Attributes, len(values))
	for _, k := range sortedKeys(values) {
		if !params.Search.Has(k) {
			return View{}, fmt.Errorf("%w: %q", ErrUnknownParam, k)
		}
		if v := values[k]; v != nil {
			attrs[k] = *v
		} else {
			attrs[k] = nil
		}
	}
	diff := s.State.Set(attrs)
	s.logger.DebugContext(ctx, "attributes applied", "changed", len(diff))
	if err := s.save(ctx, func(done func(*model.Result, error)) { s.State.Save(ctx, done, true) }); err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// MoveViewport records where the client map settled and searches the new
// area unless it still matches the searched location.
func (s *Session) MoveViewport(ctx context.Context, b geobox.Geobox) (View, error) {
	s.Map.Set(b)
	err := s.save(ctx, func(done func(*model.Result, error)) {
		if !s.State.ViewportSettled(ctx, done) {
			done(nil, nil)
		}
	})
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Back restores the previous history entry and searches it.
func (s *Session) Back(ctx context.Context) (View, error) {
	q, ok, err := s.history.Back(ctx)
	if err != nil {
		return View{}, fmt.Errorf("history back: %w", err)
	}
	if !ok {
		return View{}, ErrNoHistory
	}
	s.State.RestoreQuery(q)
	if err := s.save(ctx, func(done func(*model.Result, error)) { s.State.Save(ctx, done, true) }); err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Refresh searches the current state again, bypassing the cache.
func (s *Session) Refresh(ctx context.Context) (View, error) {
	if err := s.save(ctx, func(done func(*model.Result, error)) { s.State.Save(ctx, done, false) }); err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Query is the canonical query of the current state.
func (s *Session) Query() (string, bool) {
	return s.State.Query(nil)
}

func (s *Session) Close() {
	s.State.Close()
}

// save runs start with a completion callback and waits for it. A superseded
// request is not an error for the caller: the newer one carries the state.
func (s *Session) save(ctx context.Context, start func(done func(*model.Result, error))) error {
	type outcome struct {
		res *model.Result
		err error
	}
	ch := make(chan outcome, 1)
	start(func(res *model.Result, err error) {
		s.publish(res, err)
		ch <- outcome{res, err}
	})

	select {
	case o := <-ch:
		switch {
		case o.err == nil, errors.Is(o.err, searchstate.ErrAborted):
			return nil
		default:
			return o.err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) publish(res *model.Result, err error) {
	if res == nil && err == nil {
		// nothing was searched
		return
	}
	ev := searchevents.Event{
		SessionID: s.ID,
		Payload:   s.State.Payload(),
		Outcome:   outcomeOf(err),
		PageView:  s.cfg.PageView,
	}
	if q, ok := s.State.Query(nil); ok {
		ev.Query = q
	}
	if res != nil {
		ev.ItemCount = res.ItemCount
		ev.Overview = res.HasMarkers
	}
	s.events.Publish(ev)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, searchstate.ErrAborted):
		return "aborted"
	default:
		return "error"
	}
}

func sortedKeys(m map[string]*string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package searchstate maintains the typed search parameters of one page view,
// keeps them in sync with history and map viewport, and issues de-duplicated
// search requests.
package searchstate

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/params"
)

// ErrAborted is reported to a Save callback whose request was superseded or
// torn down.
var ErrAborted = errors.New("search request aborted")

const (
	// DefaultBigAreaKm2 is the location area above which the location filter
	// is not sent and the server searches unfiltered.
	DefaultBigAreaKm2 = 500000
	DefaultPageView   = "map"
)

type State struct {
	mu sync.Mutex
	// serializes observer notifications
	notifyMu sync.Mutex

	table     *params.Table
	transport Transport
	history   History
	logger    *slog.Logger

	pageView  string
	bigArea   float64
	titleFn   func(params.Attributes) string
	observers []Observer
	responses *lru.Cache[uint64, *model.Result]

	attrs       params.Attributes
	title       string
	lastRequest string
	lastResult  *model.Result
	inflight    *request
	nextID      uint64
	closed      bool

	mapw    Map
	padding float64
}

type Option func(*State)

func WithLogger(l *slog.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPageView sets the pageView marker sent with every request.
func WithPageView(v string) Option {
	return func(s *State) {
		if v = strings.TrimSpace(v); v != "" {
			s.pageView = v
		}
	}
}

func WithBigArea(km2 float64) Option {
	return func(s *State) {
		if km2 > 0 {
			s.bigArea = km2
		}
	}
}

// WithResponseCache keeps the last n responses by payload so that returning
// to an earlier state does not hit the network.
func WithResponseCache(n int) Option {
	return func(s *State) {
		if n <= 0 {
			return
		}
		c, err := lru.New[uint64, *model.Result](n)
		if err == nil {
			s.responses = c
		}
	}
}

func WithTitle(fn func(params.Attributes) string) Option {
	return func(s *State) {
		if fn != nil {
			s.titleFn = fn
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *State) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

func New(t *params.Table, tr Transport, h History, opts ...Option) *State {
	s := &State{
		table:     t,
		transport: tr,
		history:   h,
		logger:    slog.New(slog.DiscardHandler),
		pageView:  DefaultPageView,
		bigArea:   DefaultBigAreaKm2,
		titleFn:   DefaultTitle,
		attrs:     params.Attributes{},
	}
	for _, o := range opts {
		o(s)
	}
	s.title = s.titleFn(s.attrs)
	return s
}

// Set applies a partial update and returns the diff that was applied, which
// is empty when nothing changed. Changing anything but the offset resets the
// offset to the first page.
func (s *State) Set(partial params.Attributes) params.Attributes {
	if len(partial) == 0 {
		return params.Attributes{}
	}
	typed := s.table.Typed(partial.Clone())

	s.mu.Lock()
	defer s.mu.Unlock()
	diff := WithPageReset(s.table, s.attrs, Different(s.table, s.attrs, typed))
	if len(diff) == 0 {
		return diff
	}
	s.attrs = apply(s.attrs, diff)
	s.logger.Debug("search state changed", "diff", diffKeys(diff))
	return diff
}

// SetValue is Set for a single key.
func (s *State) SetValue(key string, value any) params.Attributes {
	return s.Set(params.Attributes{key: value})
}

// Attributes returns a copy of the non-default attributes.
func (s *State) Attributes() params.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs.Clone()
}

// Get returns the typed value of a parameter, or its default.
func (s *State) Get(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.attrs[name]; ok {
		return v
	}
	return s.table.Default(name)
}

// Offset is the current page offset.
func (s *State) Offset() int {
	n, _ := s.Get(params.Offset).(int)
	return n
}

// Query serializes partial merged over the current state. ok is false when
// the resulting query has no parameters.
func (s *State) Query(partial params.Attributes) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Encode(merged(s.table, s.attrs, partial))
}

func (s *State) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *State) LastResult() *model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// InFlight reports whether a request is pending.
func (s *State) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

// IsBig reports whether a box is too large to be used as a search filter.
func (s *State) IsBig(g geobox.Geobox) bool {
	return g.Area() > s.bigArea
}

// Restore replaces the state with what the history query says, without the
// page reset rule. It is used on first load and on back/forward navigation.
func (s *State) Restore(ctx context.Context) error {
	q, err := s.history.ReadCurrentQuery(ctx)
	if err != nil {
		return err
	}
	s.RestoreQuery(q)
	return nil
}

// RestoreQuery replaces the state with the decoded query.
func (s *State) RestoreQuery(q string) {
	typed := s.table.Typed(s.table.Decode(q))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = apply(params.Attributes{}, typed)
	s.title = s.titleFn(s.attrs)
}

// Close aborts any in-flight request. Further saves are refused.
func (s *State) Close() {
	s.mu.Lock()
	s.closed = true
	req := s.inflight
	s.mu.Unlock()
	if req != nil {
		s.abort(req)
	}
}

// DefaultTitle derives a page title from the attributes.
func DefaultTitle(a params.Attributes) string {
	var parts []string
	if n, _ := a[params.NameSearch].(string); n != "" {
		parts = append(parts, `"`+n+`"`)
	}
	if tags, _ := a[params.Tag].([]string); len(tags) > 0 {
		parts = append(parts, "tagged "+strings.Join(tags, ", "))
	}
	if loc, ok := a[params.Location].(geobox.Geobox); ok && loc.Name != "" {
		parts = append(parts, "near "+loc.Name)
	} else if ok && loc.HasCoords() {
		parts = append(parts, "in map area")
	}
	if len(parts) == 0 {
		return "Search"
	}
	return "Search: " + strings.Join(parts, " ")
}

func diffKeys(a params.Attributes) []string {
	return slices.Sorted(maps.Keys(a))
}

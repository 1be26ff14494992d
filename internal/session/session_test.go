package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/history"
	"github.com/mohammed-shakir/mapsearch/internal/params"
	"github.com/mohammed-shakir/mapsearch/internal/searchevents"
	"github.com/mohammed-shakir/mapsearch/internal/searchstate"
	"github.com/mohammed-shakir/mapsearch/internal/transport"
)

type backend struct {
	mu       sync.Mutex
	payloads []string
}

func (b *backend) fetch(_ context.Context, payload string) (*model.Result, error) {
	b.mu.Lock()
	b.payloads = append(b.payloads, payload)
	b.mu.Unlock()

	res := &model.Result{ItemCount: 3}
	for _, id := range []string{"a", "b", "c"} {
		lat, lon := 59.91, 10.75
		res.Items = append(res.Items, model.Item{ID: id, Name: "Place " + id,
			Addresses: []model.Address{{Text: id + " street", Lat: &lat, Lon: &lon}}})
	}
	if strings.Contains(payload, "location=Oslo") {
		loc, _ := geobox.FromCoords(59.8, 60.0, 10.6, 10.9)
		loc.Name = "Oslo"
		res.Location = &loc
	}
	return res, nil
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

type sink struct {
	mu     sync.Mutex
	events []searchevents.Event
}

func (s *sink) Publish(ev searchevents.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sink) all() []searchevents.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]searchevents.Event(nil), s.events...)
}

func newRegistry(t *testing.T, cfg Config) (*Registry, *backend, *sink) {
	t.Helper()
	be := &backend{}
	ev := &sink{}
	if cfg.PageSize == 0 {
		cfg.PageSize = 2
	}
	r := NewRegistry(cfg, transport.Func(be.fetch), func(string) Trail { return history.NewMemory(0) }, ev, nil)
	t.Cleanup(r.Close)
	return r, be, ev
}

func str(s string) *string { return &s }

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestCreate_RestoresQuery(t *testing.T) {
	r, _, _ := newRegistry(t, Config{})
	s, err := r.Create(ctx(t), "?tag=b,a&nameSearch=cafe")
	require.NoError(t, err)

	q, ok := s.Query()
	require.True(t, ok)
	require.Equal(t, "nameSearch=cafe&tag=b%2Ca", q)
	require.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	require.Same(t, s, got)
}

func TestApply_SearchesAndPlans(t *testing.T) {
	r, be, ev := newRegistry(t, Config{})
	s, err := r.Create(ctx(t), "nameSearch=cafe")
	require.NoError(t, err)

	v, err := s.Apply(ctx(t), map[string]*string{"tag": str("x")})
	require.NoError(t, err)
	require.Equal(t, 1, be.count())
	require.Equal(t, "nameSearch=cafe&tag=x&pageView=map&json=true", be.payloads[0])

	require.Equal(t, "nameSearch=cafe&tag=x", v.Query)
	require.False(t, v.Overview)
	require.Len(t, v.Detail, 2)
	require.Len(t, v.Abstract, 1)
	require.Equal(t, "c", v.Abstract[0].ItemID)
	require.Len(t, v.Clusters, 1)
	require.Equal(t, 1, v.Clusters[0].Count)
	require.True(t, v.Pagination.Visible)
	require.NotNil(t, v.Pagination.Next)
	require.Equal(t, 2, v.Pagination.Next.Offset)

	events := ev.all()
	require.Len(t, events, 1)
	require.Equal(t, "ok", events[0].Outcome)
	require.Equal(t, s.ID, events[0].SessionID)
	require.Equal(t, 3, events[0].ItemCount)

	// same state again is served without a request
	_, err = s.Apply(ctx(t), map[string]*string{"tag": str("x")})
	require.NoError(t, err)
	require.Equal(t, 1, be.count())
}

func TestApply_ResetAndUnknown(t *testing.T) {
	r, _, _ := newRegistry(t, Config{})
	s, err := r.Create(ctx(t), "nameSearch=cafe&offset=4")
	require.NoError(t, err)

	v, err := s.Apply(ctx(t), map[string]*string{"nameSearch": nil})
	require.NoError(t, err)
	require.Empty(t, v.Query)

	_, err = s.Apply(ctx(t), map[string]*string{"bogus": str("1")})
	require.ErrorIs(t, err, ErrUnknownParam)
}

func TestApply_EncompassesResolvedLocation(t *testing.T) {
	r, _, _ := newRegistry(t, Config{Padding: 0.1})
	s, err := r.Create(ctx(t), "")
	require.NoError(t, err)

	v, err := s.Apply(ctx(t), map[string]*string{"location": str("Oslo")})
	require.NoError(t, err)
	require.NotNil(t, v.Location)
	require.Equal(t, "Oslo", v.Location.Name)
	require.True(t, v.Location.HasCoords())
	require.NotNil(t, v.Encompass)
	require.True(t, v.Encompass.Contains(*v.Location))

	// the frame is handed out once
	require.Nil(t, s.View().Encompass)
}

func TestMoveViewport(t *testing.T) {
	r, be, _ := newRegistry(t, Config{})
	s, err := r.Create(ctx(t), "nameSearch=cafe")
	require.NoError(t, err)

	area, _ := geobox.FromCoords(59, 61, 10, 11)
	v, err := s.MoveViewport(ctx(t), area)
	require.NoError(t, err)
	require.Equal(t, 1, be.count())
	require.Contains(t, be.payloads[0], "location=59%2C61%2C10%2C11")
	require.NotNil(t, v.Viewport)

	// a slightly larger viewport still matches the searched area
	_, err = s.MoveViewport(ctx(t), area.Scale(1.2))
	require.NoError(t, err)
	require.Equal(t, 1, be.count())
}

func TestMoveViewport_AdoptsAreaAndPublishes(t *testing.T) {
	r, be, ev := newRegistry(t, Config{})
	s, err := r.Create(ctx(t), "")
	require.NoError(t, err)

	area, _ := geobox.FromCoords(1, 2, 3, 4)
	_, err = s.MoveViewport(ctx(t), area)
	require.NoError(t, err)
	require.Equal(t, 1, be.count())
	require.Eventually(t, func() bool { return len(ev.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, area, s.Map.CurrentViewport())

	loc, ok := s.State.Get(params.Location).(geobox.Geobox)
	require.True(t, ok)
	require.Equal(t, area, loc)
}

func TestBack(t *testing.T) {
	r, _, _ := newRegistry(t, Config{ResponseCacheSize: 4})
	s, err := r.Create(ctx(t), "")
	require.NoError(t, err)

	_, err = s.Back(ctx(t))
	require.ErrorIs(t, err, ErrNoHistory)

	_, err = s.Apply(ctx(t), map[string]*string{"nameSearch": str("a")})
	require.NoError(t, err)
	_, err = s.Apply(ctx(t), map[string]*string{"nameSearch": str("b")})
	require.NoError(t, err)

	v, err := s.Back(ctx(t))
	require.NoError(t, err)
	require.Equal(t, "nameSearch=a", v.Query)
}

func TestDelete_ClosesSession(t *testing.T) {
	r, _, _ := newRegistry(t, Config{})
	s, err := r.Create(ctx(t), "")
	require.NoError(t, err)

	require.NoError(t, r.Delete(s.ID))
	require.ErrorIs(t, r.Delete(s.ID), ErrNotFound)
	_, err = r.Get(s.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Apply(ctx(t), map[string]*string{"nameSearch": str("a")})
	require.ErrorIs(t, err, searchstate.ErrClosed)
}

func TestRegistry_EvictsOldest(t *testing.T) {
	r, _, _ := newRegistry(t, Config{Max: 1})
	a, err := r.Create(ctx(t), "")
	require.NoError(t, err)
	b, err := r.Create(ctx(t), "")
	require.NoError(t, err)

	_, err = r.Get(a.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(b.ID)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())
}

func TestViewport_ListViewSeesEverything(t *testing.T) {
	var v Viewport
	require.True(t, v.ContainsPoint(10, 10))
	area, _ := geobox.FromCoords(0, 1, 0, 1)
	v.Set(area)
	require.False(t, v.ContainsPoint(10, 10))
	require.True(t, v.ContainsPoint(0.5, 0.5))
}

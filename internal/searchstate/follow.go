package searchstate

import (
	"context"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/params"
)

// Follow makes the state track the map viewport. When the viewport settles on
// an area that no longer matches the searched location, the viewport becomes
// the location and a search is saved. Results carrying a location the
// viewport does not match are framed on the map with the given padding.
func (s *State) Follow(m Map, padding float64, onComplete func(*model.Result, error)) {
	s.mu.Lock()
	s.mapw = m
	s.padding = padding
	s.mu.Unlock()

	m.OnViewportSettled(func() {
		s.ViewportSettled(context.Background(), onComplete)
	})
}

// ViewportSettled handles one settled viewport and reports whether a search
// was started.
func (s *State) ViewportSettled(ctx context.Context, onComplete func(*model.Result, error)) bool {
	s.mu.Lock()
	m := s.mapw
	cur, _ := s.attrs[params.Location].(geobox.Geobox)
	s.mu.Unlock()
	if m == nil {
		return false
	}

	vp := m.CurrentViewport()
	if !vp.HasCoords() {
		return false
	}
	if cur.HasCoords() && vp.MatchesTarget(cur) {
		return false
	}
	if len(s.SetValue(params.Location, vp)) == 0 {
		return false
	}
	s.Save(ctx, onComplete, true)
	return true
}

func (s *State) encompass(loc *geobox.Geobox) {
	if loc == nil || !loc.HasCoords() {
		return
	}
	s.mu.Lock()
	m, pad := s.mapw, s.padding
	s.mu.Unlock()
	if m == nil || m.CurrentViewport().MatchesTarget(*loc) {
		return
	}
	m.Encompass(*loc, pad)
}

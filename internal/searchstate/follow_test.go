package searchstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/params"
)

type fakeMap struct {
	viewport  geobox.Geobox
	settled   func()
	encompass []geobox.Geobox
}

func (m *fakeMap) ContainsPoint(lat, lon float64) bool { return m.viewport.ContainsPoint(lat, lon) }
func (m *fakeMap) CurrentViewport() geobox.Geobox      { return m.viewport }
func (m *fakeMap) OnViewportSettled(fn func())         { m.settled = fn }
func (m *fakeMap) Encompass(b geobox.Geobox, padding float64) {
	m.encompass = append(m.encompass, b.Scale(1+padding))
}

func box(t *testing.T, s, n, w, e float64) geobox.Geobox {
	t.Helper()
	g, ok := geobox.FromCoords(s, n, w, e)
	require.True(t, ok)
	return g
}

func TestFollow_ViewportBecomesLocation(t *testing.T) {
	s, tr, _ := newState(t)
	m := &fakeMap{viewport: box(t, 10, 11, 10, 11)}
	s.Follow(m, 0.1, nil)
	require.NotNil(t, m.settled)

	s.RestoreQuery("offset=40")
	m.settled()

	loc, _ := s.Get(params.Location).(geobox.Geobox)
	require.Equal(t, m.viewport, loc)
	require.Equal(t, 0, s.Offset())
	require.Equal(t, 1, tr.count())
}

func TestFollow_MatchingViewportIsIgnored(t *testing.T) {
	s, tr, _ := newState(t)
	target := box(t, 10, 11, 10, 11)
	s.SetValue(params.Location, target)
	m := &fakeMap{viewport: target.Scale(1.2)}
	s.Follow(m, 0.1, nil)

	require.False(t, s.ViewportSettled(context.Background(), nil))
	require.Equal(t, 0, tr.count())

	// zoomed far out: no longer a match
	m.viewport = target.Scale(5)
	require.True(t, s.ViewportSettled(context.Background(), nil))
	require.Equal(t, 1, tr.count())
}

func TestFollow_EncompassesResolvedLocation(t *testing.T) {
	s, tr, _ := newState(t)
	m := &fakeMap{viewport: box(t, 0, 1, 0, 1)}
	s.Follow(m, 0.2, nil)
	s.SetValue(params.Location, "Oslo")

	resolved := box(t, 59.8, 60.0, 10.6, 10.9)
	resolved.Name = "Oslo"
	s.Save(context.Background(), nil, true)
	tr.last().finish(&model.Result{Location: &resolved}, nil)

	require.Len(t, m.encompass, 1)
	require.True(t, m.encompass[0].Contains(resolved))

	// the framed viewport matches, so settling does not search again
	m.viewport = m.encompass[0]
	require.False(t, s.ViewportSettled(context.Background(), nil))
	require.Equal(t, 1, tr.count())
}

package session

import (
	"sync"

	"github.com/mohammed-shakir/mapsearch/internal/geobox"
)

// Viewport is the server-side stand-in for a client's map widget. The client
// reports where its map settled and reads back the area to frame.
type Viewport struct {
	mu     sync.Mutex
	box    geobox.Geobox
	framed *geobox.Geobox
}

// ContainsPoint treats every point as visible until a viewport is known,
// as in a list view without a map.
func (v *Viewport) ContainsPoint(lat, lon float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.box.HasCoords() || v.box.ContainsPoint(lat, lon)
}

func (v *Viewport) CurrentViewport() geobox.Geobox {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.box
}

// OnViewportSettled keeps no callback: Session.MoveViewport reports the
// settled viewport itself so the caller can wait for the search it starts.
func (v *Viewport) OnViewportSettled(func()) {}

// Encompass frames b with padding. The client picks the framed area up with
// the next view and reports the viewport it actually settled on.
func (v *Viewport) Encompass(b geobox.Geobox, padding float64) {
	framed := b.Scale(1 + padding)
	v.mu.Lock()
	v.box = framed
	v.framed = &framed
	v.mu.Unlock()
}

// Set records b as the viewport without notifying anyone.
func (v *Viewport) Set(b geobox.Geobox) {
	v.mu.Lock()
	v.box = b
	v.framed = nil
	v.mu.Unlock()
}

// Framed returns and clears the pending area to frame.
func (v *Viewport) Framed() (geobox.Geobox, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.framed == nil {
		return geobox.Geobox{}, false
	}
	f := *v.framed
	v.framed = nil
	return f, true
}

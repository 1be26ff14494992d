package searchstate

import (
	"context"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
)

// Handle is an in-flight request that can be aborted.
type Handle interface {
	Abort()
}

// Transport issues one search request. done must be called exactly once,
// from any goroutine, with either a result or an error.
type Transport interface {
	Request(ctx context.Context, payload string, done func(*model.Result, error)) Handle
}

// History reads and writes the canonical query of the current page.
// WriteCanonicalQuery must not add an entry when the query is unchanged.
type History interface {
	ReadCurrentQuery(ctx context.Context) (string, error)
	WriteCanonicalQuery(ctx context.Context, query string) error
}

// Map is the map widget as seen by the engine.
type Map interface {
	ContainsPoint(lat, lon float64) bool
	CurrentViewport() geobox.Geobox
	OnViewportSettled(fn func())
	Encompass(box geobox.Geobox, padding float64)
}

// Observer receives the in-flight handle when a request is issued and nil
// once it settles. Observers must not call back into the State.
type Observer func(h Handle)

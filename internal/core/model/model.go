// Package model defines the search response types shared across the service.
package model

import (
	"encoding/json"

	"github.com/mohammed-shakir/mapsearch/internal/geobox"
)

// Address is one located place of an item. Lat/Lon are nil when the address
// has no coordinates.
type Address struct {
	ID   string   `json:"id,omitempty"`
	Text string   `json:"text,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

func (a Address) HasCoords() bool {
	return a.Lat != nil && a.Lon != nil
}

type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Addresses []Address       `json:"addresses,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Marker is a precomputed cluster marker sent by the server in overview mode.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Count int     `json:"count,omitempty"`
}

// Result is the part of the search response consumed by the engine.
type Result struct {
	Items     []Item         `json:"itemList"`
	ItemCount int            `json:"itemCount"`
	Location  *geobox.Geobox `json:"location,omitempty"`
	// HasMarkers is true when the payload carried a markerList, even an empty one.
	HasMarkers bool           `json:"-"`
	Markers    []Marker       `json:"markerList,omitempty"`
	Hint       map[string]any `json:"hint,omitempty"`
	Raw        []byte         `json:"-"`
}

// Slots counts pagination slots: one per address, or one for an item without addresses.
func (r *Result) Slots() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, it := range r.Items {
		if len(it.Addresses) == 0 {
			n++
			continue
		}
		n += len(it.Addresses)
	}
	return n
}

// Package markers groups abstract result markers into H3 cells so that
// overview maps draw one marker per neighbourhood instead of one per address.
package markers

import (
	"errors"
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/planner"
)

const (
	// res0HexAreaKm2 is the average H3 cell area at resolution 0; each finer
	// resolution divides it by seven.
	res0HexAreaKm2 = 4357449.416078383
	maxRes         = 15

	// DefaultCellsPerViewport is the target number of cells across a viewport.
	DefaultCellsPerViewport = 64
)

var ErrResolution = errors.New("invalid h3 resolution")

type Point struct {
	Lat    float64
	Lon    float64
	Weight int
	ItemID string
}

type Cluster struct {
	Cell  string   `json:"cell"`
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Count int      `json:"count"`
	Items []string `json:"items,omitempty"`
}

// ResolutionFor picks the finest resolution at which a viewport of the given
// area spans at most cells cells.
func ResolutionFor(areaKm2 float64, cells int) int {
	if cells <= 0 {
		cells = DefaultCellsPerViewport
	}
	if areaKm2 <= 0 || math.IsNaN(areaKm2) {
		return maxRes
	}
	res := 0
	hex := res0HexAreaKm2
	for res < maxRes && areaKm2/(hex/7) <= float64(cells) {
		hex /= 7
		res++
	}
	return res
}

// FromLayout collects the abstract placements of a plan, or the server's
// marker list when it sent one.
func FromLayout(res *model.Result, layout planner.Layout) []Point {
	if res == nil {
		return nil
	}
	if res.HasMarkers && len(res.Markers) > 0 {
		out := make([]Point, 0, len(res.Markers))
		for _, m := range res.Markers {
			w := m.Count
			if w <= 0 {
				w = 1
			}
			out = append(out, Point{Lat: m.Lat, Lon: m.Lon, Weight: w})
		}
		return out
	}
	var out []Point
	for _, p := range layout.Abstract() {
		if p.Address < 0 {
			continue
		}
		a := res.Items[p.Item].Addresses[p.Address]
		if !a.HasCoords() {
			continue
		}
		out = append(out, Point{Lat: *a.Lat, Lon: *a.Lon, Weight: 1, ItemID: res.Items[p.Item].ID})
	}
	return out
}

// Group buckets points into cells at res, sorted by cell for determinism.
// A cluster's position is the weighted mean of its points.
func Group(points []Point, res int) ([]Cluster, error) {
	if res < 0 || res > maxRes {
		return nil, fmt.Errorf("%w %d (must be 0..15)", ErrResolution, res)
	}
	type acc struct {
		lat, lon float64
		ref      float64
		count    int
		items    []string
	}
	byCell := make(map[h3.Cell]*acc)
	for _, p := range points {
		c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lon}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for %v,%v: %w", p.Lat, p.Lon, err)
		}
		w := p.Weight
		if w <= 0 {
			w = 1
		}
		a := byCell[c]
		if a == nil {
			a = &acc{ref: p.Lon}
			byCell[c] = a
		}
		a.lat += p.Lat * float64(w)
		a.lon += unwrapLon(p.Lon, a.ref) * float64(w)
		a.count += w
		if p.ItemID != "" {
			a.items = appendUnique(a.items, p.ItemID)
		}
	}

	out := make([]Cluster, 0, len(byCell))
	for c, a := range byCell {
		out = append(out, Cluster{
			Cell:  c.String(),
			Lat:   a.lat / float64(a.count),
			Lon:   wrapLon(a.lon / float64(a.count)),
			Count: a.count,
			Items: a.items,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
	return out, nil
}

// Coarsen merges clusters into their parents until at most limit remain or
// resolution 0 is reached.
func Coarsen(clusters []Cluster, limit int) ([]Cluster, error) {
	for limit > 0 && len(clusters) > limit {
		var c h3.Cell
		if err := c.UnmarshalText([]byte(clusters[0].Cell)); err != nil {
			return nil, fmt.Errorf("parse cell: %w", err)
		}
		res := c.Resolution()
		if res == 0 {
			break
		}
		merged, err := regroup(clusters, res-1)
		if err != nil {
			return nil, err
		}
		clusters = merged
	}
	return clusters, nil
}

func regroup(clusters []Cluster, parentRes int) ([]Cluster, error) {
	byParent := make(map[string]*Cluster)
	ref := make(map[string]float64)
	for _, cl := range clusters {
		var c h3.Cell
		if err := c.UnmarshalText([]byte(cl.Cell)); err != nil {
			return nil, fmt.Errorf("parse cell: %w", err)
		}
		if !c.IsValid() {
			return nil, fmt.Errorf("invalid h3 cell %q", cl.Cell)
		}
		p, err := c.Parent(parentRes)
		if err != nil {
			return nil, fmt.Errorf("h3 parent: %w", err)
		}
		key := p.String()
		m := byParent[key]
		if m == nil {
			m = &Cluster{Cell: key}
			byParent[key] = m
			ref[key] = cl.Lon
		}
		// accumulate weighted sums, divided below
		m.Lat += cl.Lat * float64(cl.Count)
		m.Lon += unwrapLon(cl.Lon, ref[key]) * float64(cl.Count)
		m.Count += cl.Count
		for _, id := range cl.Items {
			m.Items = appendUnique(m.Items, id)
		}
	}
	out := make([]Cluster, 0, len(byParent))
	for _, m := range byParent {
		m.Lat /= float64(m.Count)
		m.Lon = wrapLon(m.Lon / float64(m.Count))
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
	return out, nil
}

// ForViewport clusters the abstract markers of a plan for display in vp.
func ForViewport(res *model.Result, layout planner.Layout, vp geobox.Geobox, fixedRes, limit int) ([]Cluster, error) {
	points := FromLayout(res, layout)
	if len(points) == 0 {
		return nil, nil
	}
	r := fixedRes
	if r <= 0 {
		r = ResolutionFor(vp.Area(), DefaultCellsPerViewport)
	}
	clusters, err := Group(points, r)
	if err != nil {
		return nil, err
	}
	return Coarsen(clusters, limit)
}

// unwrapLon shifts lon by whole turns so it lies within 180 degrees of ref.
// Cells that straddle the antimeridian then average to a point inside them.
func unwrapLon(lon, ref float64) float64 {
	for lon-ref > 180 {
		lon -= 360
	}
	for lon-ref < -180 {
		lon += 360
	}
	return lon
}

func wrapLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func appendUnique(xs []string, v string) []string {
	for _, x := range xs {
		if x == v {
			return xs
		}
	}
	return append(xs, v)
}

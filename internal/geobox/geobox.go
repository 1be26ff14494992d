// Package geobox implements a latitude/longitude bounding box with the
// spherical geometry needed to compare, scale and test search regions.
package geobox

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// EarthRadiusKm is the sphere radius used by Area.
const EarthRadiusKm = 6378.1

// Geobox is a bounding rectangle in degrees. East may be numerically less than
// West when the box wraps across the antimeridian. Either all four coordinates
// are set or none are; a box with only a Name is an unresolved place.
type Geobox struct {
	South, North, West, East float64

	Name     string
	LongName string
	Type     string

	coords bool
}

// FromCoords validates the four coordinates and returns a box carrying them.
func FromCoords(south, north, west, east float64) (Geobox, bool) {
	if !validLat(south) || !validLat(north) || !validLon(west) || !validLon(east) {
		return Geobox{}, false
	}
	return Geobox{South: south, North: north, West: west, East: east, coords: true}, true
}

// Named returns a box for a bare place name with no coordinates.
func Named(name string) Geobox {
	return Geobox{Name: name}
}

func (g Geobox) HasCoords() bool {
	return g.coords
}

// Coords returns south, north, west, east.
func (g Geobox) Coords() (float64, float64, float64, float64) {
	return g.South, g.North, g.West, g.East
}

func (g Geobox) IsZero() bool {
	return !g.coords && g.Name == "" && g.LongName == "" && g.Type == ""
}

// Text returns the name if set, else "south,north,west,east", else "".
func (g Geobox) Text() string {
	if g.Name != "" {
		return g.Name
	}
	if g.coords {
		return g.CoordsText()
	}
	return ""
}

func (g Geobox) String() string { return g.Text() }

// CoordsText formats the coordinates using the shortest exact representation.
func (g Geobox) CoordsText() string {
	if !g.coords {
		return ""
	}
	return formatFloat(g.South) + "," + formatFloat(g.North) + "," +
		formatFloat(g.West) + "," + formatFloat(g.East)
}

// CoordsDifference is a relative difference between two boxes, used as a
// "close enough" threshold. It is 0 when neither box has coordinates and +Inf
// when exactly one does.
func (g Geobox) CoordsDifference(o Geobox) float64 {
	switch {
	case !g.coords && !o.coords:
		return 0
	case g.coords != o.coords:
		return math.Inf(1)
	}
	lat := ratio(
		math.Abs(g.South-o.South)+math.Abs(g.North-o.North),
		math.Abs(g.South-g.North)+math.Abs(o.South-o.North),
	)
	lon := ratio(
		math.Abs(g.West-o.West)+math.Abs(g.East-o.East),
		math.Abs(g.West-g.East)+math.Abs(o.West-o.East),
	)
	return lat + lon
}

// Difference is +Inf when the names differ, else CoordsDifference.
func (g Geobox) Difference(o Geobox) float64 {
	if g.Name != o.Name {
		return math.Inf(1)
	}
	return g.CoordsDifference(o)
}

// a zero span only compares equal to itself
func ratio(num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return num / den
}

// normEast unwraps East so that it is never less than West.
func (g Geobox) normEast() float64 {
	if g.East < g.West {
		return g.East + 360
	}
	return g.East
}

// Area returns the approximate surface in km². North >= South is assumed and
// not checked: a swapped box yields a negative area.
func (g Geobox) Area() float64 {
	if !g.coords {
		return 0
	}
	band := math.Sin(g.North*math.Pi/180) - math.Sin(g.South*math.Pi/180)
	return 2 * math.Pi * EarthRadiusKm * EarthRadiusKm * band * (g.normEast() - g.West) / 360
}

// Scale shrinks (factor < 1) or grows (factor > 1) the box about its center
// and returns the adjusted box. Boxes without coordinates are returned as is.
func (g Geobox) Scale(factor float64) Geobox {
	if !g.coords {
		return g
	}
	move := (1 - math.Max(0, factor)) / 2

	latSpan := g.North - g.South
	south := g.South + move*latSpan
	north := g.North - move*latSpan

	east := g.normEast()
	lonSpan := east - g.West
	west := g.West + move*lonSpan
	east -= move * lonSpan

	g.South = clamp(south, -90, 90)
	g.North = clamp(north, -90, 90)
	switch {
	case g.East >= g.West:
		g.West = clamp(west, -180, 180)
		g.East = clamp(east, -180, 180)
	case east-west >= 360:
		g.West, g.East = -180, 180
	default:
		g.West = wrapLon(west)
		g.East = wrapLon(east)
	}
	return g
}

// Center returns the midpoint, honoring antimeridian wrap.
func (g Geobox) Center() (lat, lon float64) {
	if !g.coords {
		return 0, 0
	}
	return (g.South + g.North) / 2, wrapLon((g.West + g.normEast()) / 2)
}

// Contains reports whether g encloses o on all four edges. Plain numeric
// comparison; wraparound is not considered.
func (g Geobox) Contains(o Geobox) bool {
	if !g.coords || !o.coords {
		return false
	}
	return g.South <= o.South && g.North >= o.North &&
		g.West <= o.West && g.East >= o.East
}

// ContainsPoint reports whether the point lies inside g, honoring antimeridian wrap.
func (g Geobox) ContainsPoint(lat, lon float64) bool {
	if !g.coords || lat < g.South || lat > g.North {
		return false
	}
	if g.East < g.West {
		return lon >= g.West || lon <= g.East
	}
	return lon >= g.West && lon <= g.East
}

// MatchesTarget reports whether g (typically a map viewport) is still a
// reasonable match for a searched target box: it must contain the target and
// not be more than eight times its area.
func (g Geobox) MatchesTarget(target Geobox) bool {
	return g.Contains(target) && target.Area() > g.Area()/8
}

func validLat(v float64) bool {
	return !math.IsNaN(v) && v >= -90 && v <= 90
}

func validLon(v float64) bool {
	return !math.IsNaN(v) && v >= -180 && v <= 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func wrapLon(v float64) float64 {
	if v > 180 {
		return v - 360
	}
	if v < -180 {
		return v + 360
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type wire struct {
	South    *float64 `json:"south,omitempty"`
	North    *float64 `json:"north,omitempty"`
	West     *float64 `json:"west,omitempty"`
	East     *float64 `json:"east,omitempty"`
	Name     string   `json:"name,omitempty"`
	LongName string   `json:"longName,omitempty"`
	Type     string   `json:"type,omitempty"`
}

func (g Geobox) MarshalJSON() ([]byte, error) {
	w := wire{Name: g.Name, LongName: g.LongName, Type: g.Type}
	if g.coords {
		w.South, w.North, w.West, w.East = &g.South, &g.North, &g.West, &g.East
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal geobox: %w", err)
	}
	return b, nil
}

// UnmarshalJSON accepts the plain-object shape, a "s,n,w,e" string or a bare
// name string. Invalid coordinates degrade to a name-only box.
func (g *Geobox) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*g = New(s)
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("unmarshal geobox: %w", err)
	}
	*g = New(m)
	return nil
}

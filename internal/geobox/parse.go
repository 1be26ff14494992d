package geobox

import (
	"math"
	"strconv"
	"strings"
)

// Corner is a point accessor as exposed by map viewport bounds.
type Corner interface {
	Lat() float64
	Lng() float64
}

// Bounds is a map-widget viewport bounds object.
type Bounds interface {
	SouthWest() Corner
	NorthEast() Corner
}

type tryParse func(args []any) (Geobox, bool)

// parsers are tried in order; the first structural match wins.
var parsers = []tryParse{
	fromObject,
	fromBounds,
	fromPositional,
	fromCoordString,
	fromName,
}

// New builds a box from one of several input shapes: a plain object with
// south/north/west/east (and optional name/longName/type), viewport Bounds,
// four positional coordinates, a "south,north,west,east" string, or a bare
// place name. It never fails; at worst the result is empty.
func New(args ...any) Geobox {
	for _, p := range parsers {
		if g, ok := p(args); ok {
			return g
		}
	}
	return Geobox{}
}

// Parse is New for a single string and reports whether it produced coordinates.
func Parse(s string) (Geobox, bool) {
	g := New(s)
	return g, g.HasCoords()
}

func fromObject(args []any) (Geobox, bool) {
	if len(args) != 1 {
		return Geobox{}, false
	}
	var m map[string]any
	switch v := args[0].(type) {
	case Geobox:
		return v, true
	case *Geobox:
		if v == nil {
			return Geobox{}, false
		}
		return *v, true
	case map[string]any:
		m = v
	case map[string]string:
		m = make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
	default:
		return Geobox{}, false
	}

	_, hasS := m["south"]
	_, hasN := m["north"]
	_, hasW := m["west"]
	_, hasE := m["east"]
	g := Geobox{
		Name:     str(m["name"]),
		LongName: str(m["longName"]),
		Type:     str(m["type"]),
	}
	if !hasS && !hasN && !hasW && !hasE {
		// name-only object
		return g, g.Name != ""
	}
	c, ok := coordsOf(m["south"], m["north"], m["west"], m["east"])
	if !ok {
		return Geobox{}, false
	}
	c.Name, c.LongName, c.Type = g.Name, g.LongName, g.Type
	return c, true
}

func fromBounds(args []any) (Geobox, bool) {
	if len(args) != 1 {
		return Geobox{}, false
	}
	b, ok := args[0].(Bounds)
	if !ok || b == nil {
		return Geobox{}, false
	}
	sw, ne := b.SouthWest(), b.NorthEast()
	if sw == nil || ne == nil {
		return Geobox{}, false
	}
	return FromCoords(sw.Lat(), ne.Lat(), sw.Lng(), ne.Lng())
}

func fromPositional(args []any) (Geobox, bool) {
	if len(args) != 4 {
		return Geobox{}, false
	}
	return coordsOf(args[0], args[1], args[2], args[3])
}

func fromCoordString(args []any) (Geobox, bool) {
	if len(args) != 1 {
		return Geobox{}, false
	}
	s, ok := args[0].(string)
	if !ok {
		return Geobox{}, false
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Geobox{}, false
	}
	return coordsOf(parts[0], parts[1], parts[2], parts[3])
}

func fromName(args []any) (Geobox, bool) {
	if len(args) != 1 {
		return Geobox{}, false
	}
	s, ok := args[0].(string)
	if !ok {
		return Geobox{}, false
	}
	return Named(strings.TrimSpace(s)), true
}

func coordsOf(s, n, w, e any) (Geobox, bool) {
	south, ok1 := num(s)
	north, ok2 := num(n)
	west, ok3 := num(w)
	east, ok4 := num(e)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Geobox{}, false
	}
	return FromCoords(south, north, west, east)
}

func num(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

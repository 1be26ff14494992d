package params

import (
	"slices"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/mapsearch/internal/geobox"
)

const (
	NameSearch = "nameSearch"
	Location   = "location"
	Tag        = "tag"
	Visibility = "visibility"
	Offset     = "offset"
)

// Visibility values
const (
	VisibilityPublic = "public"
	VisibilityAll    = "all"
	VisibilityMine   = "mine"
)

// locations closer than this are treated as unchanged
const sameBoxTolerance = 1e-9

// Search is the parameter table of the search page.
var Search = NewTable(
	Spec{
		Name:      NameSearch,
		Parse:     parseText,
		Default:   "",
		Serialize: serializeText,
	},
	Spec{
		Name:      Location,
		Parse:     parseLocation,
		Equal:     equalLocation,
		Default:   geobox.Geobox{},
		Serialize: serializeLocation,
	},
	Spec{
		Name:       Tag,
		Parse:      parseTags,
		Accumulate: accumulateTags,
		Equal:      equalTags,
		Default:    []string(nil),
		Serialize:  serializeTags,
	},
	Spec{
		Name:      Visibility,
		Parse:     parseVisibility,
		Default:   VisibilityPublic,
		Serialize: serializeText,
	},
	Spec{
		Name:      Offset,
		Parse:     parseOffset,
		Default:   0,
		Serialize: serializeOffset,
	},
)

func parseText(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return strings.TrimSpace(s), true
}

func serializeText(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func parseLocation(v any) (any, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return geobox.Geobox{}, true
		}
		return geobox.New(s), true
	}
	g := geobox.New(v)
	if g.IsZero() {
		if _, ok := v.(geobox.Geobox); !ok {
			return nil, false
		}
	}
	return g, true
}

func equalLocation(a, b any) bool {
	ga, ok1 := a.(geobox.Geobox)
	gb, ok2 := b.(geobox.Geobox)
	if !ok1 || !ok2 {
		return false
	}
	// a place name stands for whatever coordinates the server resolved for it
	if ga.Name != "" && ga.Name == gb.Name && (!ga.HasCoords() || !gb.HasCoords()) {
		return true
	}
	return ga.Difference(gb) < sameBoxTolerance
}

func serializeLocation(v any) (string, bool) {
	g, ok := v.(geobox.Geobox)
	if !ok {
		return "", false
	}
	txt := g.Text()
	return txt, txt != ""
}

func parseTags(v any) (any, bool) {
	var in []string
	switch t := v.(type) {
	case string:
		in = strings.Split(t, ",")
	case []string:
		in = t
	case []any:
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, false
			}
			in = append(in, s)
		}
	default:
		return nil, false
	}
	return addTags(nil, in), true
}

func accumulateTags(v any, prev any) (any, bool) {
	next, ok := parseTags(v)
	if !ok {
		return nil, false
	}
	p, _ := prev.([]string)
	return addTags(slices.Clone(p), next.([]string)), true
}

// addTags appends trimmed, non-empty, not yet present tags
func addTags(dst []string, in []string) []string {
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(dst, s) {
			continue
		}
		dst = append(dst, s)
	}
	return dst
}

func equalTags(a, b any) bool {
	ta, _ := a.([]string)
	tb, _ := b.([]string)
	return slices.Equal(ta, tb)
}

func serializeTags(v any) (string, bool) {
	t, ok := v.([]string)
	if !ok || len(t) == 0 {
		return "", false
	}
	return strings.Join(t, ","), true
}

func parseVisibility(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case VisibilityPublic, VisibilityAll, VisibilityMine:
		return s, true
	}
	return nil, false
}

func parseOffset(v any) (any, bool) {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		n = int(t)
	case string:
		p, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, false
		}
		n = p
	default:
		return nil, false
	}
	if n < 0 {
		return nil, false
	}
	return n, true
}

func serializeOffset(v any) (string, bool) {
	n, ok := v.(int)
	if !ok {
		return "", false
	}
	return strconv.Itoa(n), true
}

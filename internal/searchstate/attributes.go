package searchstate

import (
	"github.com/mohammed-shakir/mapsearch/internal/params"
)

// Different keeps the keys of typed whose value differs from current under
// the parameter's comparator.
func Different(t *params.Table, current, typed params.Attributes) params.Attributes {
	out := params.Attributes{}
	for k, v := range typed {
		if t.Equal(k, current[k], v) {
			continue
		}
		out[k] = v
	}
	return out
}

// WithPageReset returns diff plus offset=nil when diff changes anything but
// does not set offset itself and the current offset is not the default. Any
// state change sends the user back to the first page.
func WithPageReset(t *params.Table, current, diff params.Attributes) params.Attributes {
	if len(diff) == 0 {
		return diff
	}
	if _, ok := diff[params.Offset]; ok {
		return diff
	}
	if t.IsDefault(params.Offset, current[params.Offset]) {
		return diff
	}
	out := diff.Clone()
	out[params.Offset] = nil
	return out
}

// Next computes the attributes that follow current after applying diff,
// including the page reset rule. nil values remove the key.
func Next(t *params.Table, current, diff params.Attributes) params.Attributes {
	return apply(current, WithPageReset(t, current, diff))
}

func apply(current, diff params.Attributes) params.Attributes {
	out := current.Clone()
	for k, v := range diff {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// merged returns current overlaid with the typed partial.
func merged(t *params.Table, current, partial params.Attributes) params.Attributes {
	return apply(current, t.Typed(partial))
}

// withDefaults fills every parameter missing from a with its default.
func withDefaults(t *params.Table, a params.Attributes) params.Attributes {
	out := t.Defaults()
	for k, v := range a {
		if v != nil && t.Has(k) {
			out[k] = v
		}
	}
	return out
}

func sameState(t *params.Table, a, b params.Attributes) bool {
	fa, fb := withDefaults(t, a), withDefaults(t, b)
	for _, name := range t.Names() {
		if !t.Equal(name, fa[name], fb[name]) {
			return false
		}
	}
	return true
}

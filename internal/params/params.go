// Package params holds the table of search parameters and the codec that
// converts between raw values, typed attributes and canonical query strings.
package params

import (
	"reflect"
	"strings"
)

// Attributes maps parameter names to typed values. A present key with a nil
// value means "reset to default".
type Attributes map[string]any

func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Spec describes one named parameter.
type Spec struct {
	Name string
	// Parse accepts a raw string or an already typed value.
	Parse func(v any) (any, bool)
	// Accumulate folds a repeated query key into the previous value.
	Accumulate func(v any, prev any) (any, bool)
	// Equal defaults to strict equality when nil.
	Equal     func(a, b any) bool
	Default   any
	Serialize func(v any) (string, bool)
}

func (s Spec) equal(a, b any) bool {
	if s.Equal != nil {
		return s.Equal(a, b)
	}
	return strictEqual(a, b)
}

func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Table is an immutable, ordered set of specs. Declaration order is the
// canonical key order of encoded query strings.
type Table struct {
	specs []Spec
	index map[string]int
}

func NewTable(specs ...Spec) *Table {
	t := &Table{
		specs: make([]Spec, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	copy(t.specs, specs)
	for i, s := range t.specs {
		if s.Name == "" || s.Parse == nil || s.Serialize == nil {
			panic("params: parameter needs Name, Parse and Serialize")
		}
		if _, dup := t.index[s.Name]; dup {
			panic("params: duplicate parameter " + s.Name)
		}
		t.index[s.Name] = i
	}
	return t
}

func (t *Table) spec(name string) (Spec, bool) {
	i, ok := t.index[name]
	if !ok {
		return Spec{}, false
	}
	return t.specs[i], true
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *Table) Names() []string {
	out := make([]string, len(t.specs))
	for i, s := range t.specs {
		out[i] = s.Name
	}
	return out
}

func (t *Table) Default(name string) any {
	s, _ := t.spec(name)
	return s.Default
}

// Defaults returns every parameter set to its default value.
func (t *Table) Defaults() Attributes {
	out := make(Attributes, len(t.specs))
	for _, s := range t.specs {
		out[s.Name] = s.Default
	}
	return out
}

// Equal compares two values of the named parameter. nil stands for the default.
func (t *Table) Equal(name string, a, b any) bool {
	s, ok := t.spec(name)
	if !ok {
		return strictEqual(a, b)
	}
	if a == nil {
		a = s.Default
	}
	if b == nil {
		b = s.Default
	}
	return s.equal(a, b)
}

// IsDefault reports whether v equals the named parameter's default.
func (t *Table) IsDefault(name string, v any) bool {
	return t.Equal(name, v, nil)
}

// Typed parses every known key of raw. Unknown keys and values that fail to
// parse are dropped; values equal to the default become nil.
func (t *Table) Typed(raw Attributes) Attributes {
	out := make(Attributes, len(raw))
	for k, v := range raw {
		s, ok := t.spec(k)
		if !ok {
			continue
		}
		if v == nil {
			out[k] = nil
			continue
		}
		p, ok := s.Parse(v)
		if !ok {
			continue
		}
		if s.equal(p, s.Default) {
			p = nil
		}
		out[k] = p
	}
	return out
}

// Encode serializes non-nil attributes in declaration order. ok is false when
// no parameter remains, which is distinct from an empty query.
func (t *Table) Encode(attrs Attributes) (string, bool) {
	var parts []string
	for _, s := range t.specs {
		v, present := attrs[s.Name]
		if !present || v == nil {
			continue
		}
		txt, ok := s.Serialize(v)
		if !ok {
			continue
		}
		parts = append(parts, s.Name+"="+EncodeComponent(txt))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "&"), true
}

// Decode parses a query string. Unknown keys and malformed fragments are
// dropped; repeated keys accumulate when the parameter has an Accumulate func and
// overwrite otherwise. A leading '?' is ignored.
func (t *Table) Decode(query string) Attributes {
	out := Attributes{}
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return out
	}
	for _, frag := range strings.Split(query, "&") {
		if frag == "" {
			continue
		}
		k, raw, _ := strings.Cut(frag, "=")
		key, ok := DecodeComponent(k)
		if !ok {
			continue
		}
		s, known := t.spec(key)
		if !known {
			continue
		}
		val, ok := DecodeComponent(raw)
		if !ok {
			continue
		}
		prev, seen := out[key]
		var v any
		if seen && s.Accumulate != nil {
			v, ok = s.Accumulate(val, prev)
		} else {
			v, ok = s.Parse(val)
		}
		if !ok {
			continue
		}
		out[key] = v
	}
	return out
}

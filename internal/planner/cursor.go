package planner

// Bucket is the rendering class of one item address.
type Bucket int

const (
	// Detail is rendered in full and consumes one slot of the page budget.
	Detail Bucket = iota
	// Abstract is rendered as a marker only.
	Abstract
	// Paged is an address-less item outside the current page; nothing to draw.
	Paged
)

func (b Bucket) String() string {
	switch b {
	case Detail:
		return "detail"
	case Abstract:
		return "abstract"
	case Paged:
		return "paged"
	default:
		return "unknown"
	}
}

func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Cursor is the shrinking page budget threaded through one planning pass.
// Offset starts at the first slot of the current page and is decremented for
// every slot consumed; a slot is in the detail window while
// 0 >= Offset > -Limit. A Cursor must not be shared between passes.
type Cursor struct {
	Offset int
	Limit  int
}

func (c *Cursor) inWindow() bool {
	return c.Offset <= 0 && c.Offset > -c.Limit
}

// Take classifies one address. Located addresses outside the viewport are
// abstract and do not consume budget.
func (c *Cursor) Take(hasCoords, inViewport bool) Bucket {
	if hasCoords && !inViewport {
		return Abstract
	}
	b := Abstract
	if c.inWindow() {
		b = Detail
	}
	c.Offset--
	return b
}

// Skip consumes the single slot of an item without addresses.
func (c *Cursor) Skip() Bucket {
	b := Paged
	if c.inWindow() {
		b = Detail
	}
	c.Offset--
	return b
}

// Package planner decides which results are rendered in full detail and which
// as abstract markers, and computes the pagination links for a result page.
package planner

import (
	"fmt"
	"strconv"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
)

// OverviewFactor is how many pages of slots the client pages locally before
// switching to overview mode.
const OverviewFactor = 3

// Viewport answers whether a point is currently visible on the map.
type Viewport interface {
	ContainsPoint(lat, lon float64) bool
}

// ViewportFunc adapts a function to Viewport.
type ViewportFunc func(lat, lon float64) bool

func (f ViewportFunc) ContainsPoint(lat, lon float64) bool { return f(lat, lon) }

// Placement is the decision for one (item, address) pair. Address is -1 for
// an item without addresses.
type Placement struct {
	Item    int    `json:"item"`
	Address int    `json:"address"`
	Bucket  Bucket `json:"bucket"`
}

type Layout struct {
	Overview   bool        `json:"overview"`
	Placements []Placement `json:"placements"`
	Pagination Pagination  `json:"pagination"`
}

// Detail returns detail placements in iteration order.
func (l Layout) Detail() []Placement { return l.filter(Detail) }

// Abstract returns abstract placements in iteration order.
func (l Layout) Abstract() []Placement { return l.filter(Abstract) }

func (l Layout) filter(b Bucket) []Placement {
	var out []Placement
	for _, p := range l.Placements {
		if p.Bucket == b {
			out = append(out, p)
		}
	}
	return out
}

// IsOverview reports whether the result must be shown as markers only: the
// server sent a marker list, or there are more than OverviewFactor pages.
func IsOverview(res *model.Result, pageSize int) bool {
	if res == nil {
		return false
	}
	if res.HasMarkers {
		return true
	}
	return total(res) > OverviewFactor*pageSize
}

func total(res *model.Result) int {
	return max(res.ItemCount, res.Slots())
}

// Plan runs one deterministic pass over the result with a fresh cursor
// starting at offset.
func Plan(res *model.Result, vp Viewport, offset, pageSize int) Layout {
	if pageSize <= 0 {
		pageSize = 1
	}
	if offset < 0 {
		offset = 0
	}
	var out Layout
	if res == nil {
		return out
	}
	out.Overview = IsOverview(res, pageSize)
	out.Placements = make([]Placement, 0, res.Slots())

	if out.Overview {
		for i, it := range res.Items {
			if len(it.Addresses) == 0 {
				out.Placements = append(out.Placements, Placement{Item: i, Address: -1, Bucket: Abstract})
				continue
			}
			for j := range it.Addresses {
				out.Placements = append(out.Placements, Placement{Item: i, Address: j, Bucket: Abstract})
			}
		}
		out.Pagination = Paginate(total(res), offset, pageSize, len(res.Items), true)
		return out
	}

	cur := &Cursor{Offset: offset, Limit: pageSize}
	for i, it := range res.Items {
		if len(it.Addresses) == 0 {
			out.Placements = append(out.Placements, Placement{Item: i, Address: -1, Bucket: cur.Skip()})
			continue
		}
		for j, a := range it.Addresses {
			in := a.HasCoords() && vp != nil && vp.ContainsPoint(*a.Lat, *a.Lon)
			out.Placements = append(out.Placements, Placement{Item: i, Address: j, Bucket: cur.Take(a.HasCoords(), in)})
		}
	}
	out.Pagination = Paginate(res.Slots(), offset, pageSize, len(res.Items), false)
	return out
}

type Link struct {
	Label     string `json:"label"`
	Offset    int    `json:"offset"`
	Clickable bool   `json:"clickable"`
}

// Pagination is empty (Visible false) when no control applies.
type Pagination struct {
	Visible  bool   `json:"visible"`
	Previous *Link  `json:"previous,omitempty"`
	Next     *Link  `json:"next,omitempty"`
	Pages    []Link `json:"pages,omitempty"`
	Range    string `json:"range,omitempty"`
}

// Paginate computes the links for a page. In page mode every page gets a
// link (the current one not clickable) plus Previous/Next by one page. In
// overview mode only Previous/Next by pageSize are shown around the
// "{first}-{last}" range label.
func Paginate(total, offset, pageSize, resultCount int, overview bool) Pagination {
	if pageSize <= 0 {
		return Pagination{}
	}
	if overview {
		return overviewLinks(total, offset, pageSize, resultCount)
	}

	pages := (total + pageSize - 1) / pageSize
	if pages <= 1 {
		return Pagination{}
	}
	current := offset / pageSize
	p := Pagination{Visible: true, Pages: make([]Link, 0, pages)}
	for i := 0; i < pages; i++ {
		p.Pages = append(p.Pages, Link{
			Label:     strconv.Itoa(i + 1),
			Offset:    i * pageSize,
			Clickable: i != current,
		})
	}
	if offset > 0 {
		p.Previous = &Link{Label: "Previous", Offset: max(0, offset-pageSize), Clickable: true}
	}
	if offset+pageSize < total {
		p.Next = &Link{Label: "Next", Offset: offset + pageSize, Clickable: true}
	}
	return p
}

func overviewLinks(total, offset, limit, resultCount int) Pagination {
	var p Pagination
	if offset > 0 {
		p.Previous = &Link{Label: "Previous", Offset: max(0, offset-limit), Clickable: true}
	}
	if offset+resultCount < total {
		p.Next = &Link{Label: "Next", Offset: offset + limit, Clickable: true}
	}
	if p.Previous == nil && p.Next == nil {
		return Pagination{}
	}
	p.Visible = true
	p.Range = fmt.Sprintf("%d-%d", offset+1, offset+resultCount)
	return p
}

package session

import (
	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/core/observability"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/markers"
	"github.com/mohammed-shakir/mapsearch/internal/params"
	"github.com/mohammed-shakir/mapsearch/internal/planner"
)

// Entry is one rendered (item, address) pair. Address is nil for an item
// without addresses.
type Entry struct {
	ItemID  string         `json:"item_id"`
	Name    string         `json:"name,omitempty"`
	Address *model.Address `json:"address,omitempty"`
}

type View struct {
	ID         string             `json:"id"`
	Query      string             `json:"query"`
	Title      string             `json:"title"`
	Overview   bool               `json:"overview"`
	ItemCount  int                `json:"item_count"`
	Detail     []Entry            `json:"detail"`
	Abstract   []Entry            `json:"abstract"`
	Clusters   []markers.Cluster  `json:"clusters"`
	Pagination planner.Pagination `json:"pagination"`
	Location   *geobox.Geobox     `json:"location,omitempty"`
	Viewport   *geobox.Geobox     `json:"viewport,omitempty"`
	Encompass  *geobox.Geobox     `json:"encompass,omitempty"`
	Hint       map[string]any     `json:"hint,omitempty"`
	Pending    bool               `json:"pending"`
}

// View plans the last result against the current viewport.
func (s *Session) View() View {
	q, _ := s.State.Query(nil)
	v := View{
		ID:       s.ID,
		Query:    q,
		Title:    s.State.Title(),
		Pending:  s.State.InFlight(),
		Detail:   []Entry{},
		Abstract: []Entry{},
		Clusters: []markers.Cluster{},
	}
	if loc, ok := s.State.Get(params.Location).(geobox.Geobox); ok {
		v.Location = &loc
	}
	vp := s.Map.CurrentViewport()
	if vp.HasCoords() {
		v.Viewport = &vp
	}
	if f, ok := s.Map.Framed(); ok {
		v.Encompass = &f
	}

	res := s.State.LastResult()
	if res == nil {
		return v
	}
	layout := planner.Plan(res, s.Map, s.State.Offset(), s.cfg.PageSize)
	observability.IncPlan(layout.Overview)

	v.Overview = layout.Overview
	v.ItemCount = max(res.ItemCount, res.Slots())
	v.Pagination = layout.Pagination
	v.Hint = res.Hint
	v.Detail = entries(res, layout.Detail())
	v.Abstract = entries(res, layout.Abstract())

	clusters, err := markers.ForViewport(res, layout, vp, s.cfg.MarkerRes, s.cfg.ClusterLimit)
	if err != nil {
		s.logger.Warn("marker clustering failed", "session_id", s.ID, "err", err)
	} else if clusters != nil {
		v.Clusters = clusters
	}
	return v
}

func entries(res *model.Result, ps []planner.Placement) []Entry {
	out := make([]Entry, 0, len(ps))
	for _, p := range ps {
		it := res.Items[p.Item]
		e := Entry{ItemID: it.ID, Name: it.Name}
		if p.Address >= 0 {
			a := it.Addresses[p.Address]
			e.Address = &a
		}
		out = append(out, e)
	}
	return out
}

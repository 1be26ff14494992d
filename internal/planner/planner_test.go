package planner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
)

func ptr(f float64) *float64 { return &f }

func located(lat, lon float64) model.Address {
	return model.Address{Lat: ptr(lat), Lon: ptr(lon)}
}

func items(n int) []model.Item {
	out := make([]model.Item, n)
	for i := range out {
		out[i] = model.Item{
			ID:        fmt.Sprintf("item-%d", i+1),
			Addresses: []model.Address{located(float64(i), float64(i))},
		}
	}
	return out
}

var everywhere = ViewportFunc(func(_, _ float64) bool { return true })

func buckets(l Layout) []Bucket {
	out := make([]Bucket, len(l.Placements))
	for i, p := range l.Placements {
		out[i] = p.Bucket
	}
	return out
}

func TestPlan_FirstPageAllVisible(t *testing.T) {
	res := &model.Result{Items: items(5), ItemCount: 5}

	l := Plan(res, everywhere, 0, 2)

	require.False(t, l.Overview)
	require.Equal(t, []Bucket{Detail, Detail, Abstract, Abstract, Abstract}, buckets(l))
	require.NotNil(t, l.Pagination.Next)
	require.Equal(t, 2, l.Pagination.Next.Offset)
	require.Nil(t, l.Pagination.Previous)
	require.Len(t, l.Pagination.Pages, 3)
	require.False(t, l.Pagination.Pages[0].Clickable)
	require.True(t, l.Pagination.Pages[1].Clickable)
	require.Equal(t, 4, l.Pagination.Pages[2].Offset)
}

func TestPlan_SecondPage(t *testing.T) {
	res := &model.Result{Items: items(5), ItemCount: 5}

	l := Plan(res, everywhere, 2, 2)

	require.Equal(t, []Bucket{Abstract, Abstract, Detail, Detail, Abstract}, buckets(l))
	require.Equal(t, 0, l.Pagination.Previous.Offset)
	require.Equal(t, 4, l.Pagination.Next.Offset)
	require.False(t, l.Pagination.Pages[1].Clickable)
}

func TestPlan_OffscreenAddressesAreFree(t *testing.T) {
	res := &model.Result{Items: items(4), ItemCount: 4}
	// only odd coordinates are visible
	vp := ViewportFunc(func(lat, _ float64) bool { return int(lat)%2 == 1 })

	l := Plan(res, vp, 0, 1)

	require.Equal(t, []Bucket{Abstract, Detail, Abstract, Abstract}, buckets(l))
}

func TestPlan_NestedAddressesAndAddressless(t *testing.T) {
	res := &model.Result{Items: []model.Item{
		{ID: "a", Addresses: []model.Address{located(1, 1), located(2, 2)}},
		{ID: "b"},
		{ID: "c", Addresses: []model.Address{{Text: "no coords"}}},
		{ID: "d"},
	}}

	l := Plan(res, everywhere, 0, 3)

	require.Equal(t, []Placement{
		{Item: 0, Address: 0, Bucket: Detail},
		{Item: 0, Address: 1, Bucket: Detail},
		{Item: 1, Address: -1, Bucket: Detail},
		{Item: 2, Address: 0, Bucket: Abstract},
		{Item: 3, Address: -1, Bucket: Paged},
	}, l.Placements)
	require.Len(t, l.Detail(), 3)
	require.Len(t, l.Abstract(), 1)
}

func TestPlan_OverviewByCount(t *testing.T) {
	res := &model.Result{Items: items(20), ItemCount: 5000}

	require.True(t, IsOverview(res, 20))
	l := Plan(res, everywhere, 0, 20)

	require.True(t, l.Overview)
	for _, b := range buckets(l) {
		require.Equal(t, Abstract, b)
	}
	require.Nil(t, l.Pagination.Previous)
	require.Equal(t, 20, l.Pagination.Next.Offset)
	require.Equal(t, "1-20", l.Pagination.Range)
}

func TestPlan_OverviewByMarkerList(t *testing.T) {
	res := &model.Result{Items: items(3), ItemCount: 3, HasMarkers: true}

	l := Plan(res, everywhere, 0, 20)

	require.True(t, l.Overview)
	require.Equal(t, []Bucket{Abstract, Abstract, Abstract}, buckets(l))
	require.False(t, l.Pagination.Visible)
}

func TestPlan_OverviewAddresslessIsAbstract(t *testing.T) {
	res := &model.Result{Items: []model.Item{
		{ID: "a", Addresses: []model.Address{located(1, 1)}},
		{ID: "b"},
	}, ItemCount: 2, HasMarkers: true}

	l := Plan(res, everywhere, 0, 20)

	require.True(t, l.Overview)
	require.Equal(t, []Placement{
		{Item: 0, Address: 0, Bucket: Abstract},
		{Item: 1, Address: -1, Bucket: Abstract},
	}, l.Placements)
	require.Empty(t, l.filter(Paged))
}

func TestPlan_Deterministic(t *testing.T) {
	res := &model.Result{Items: items(9), ItemCount: 9}
	a := Plan(res, everywhere, 4, 3)
	b := Plan(res, everywhere, 4, 3)
	require.Equal(t, a, b)
}

func TestPlan_NilResult(t *testing.T) {
	l := Plan(nil, everywhere, 0, 10)
	require.False(t, l.Overview)
	require.Empty(t, l.Placements)
}

func TestPaginate_Overview(t *testing.T) {
	p := Paginate(100, 40, 20, 20, true)
	require.Equal(t, 20, p.Previous.Offset)
	require.Equal(t, 60, p.Next.Offset)
	require.Equal(t, "41-60", p.Range)

	p = Paginate(100, 10, 20, 20, true)
	require.Equal(t, 0, p.Previous.Offset)

	p = Paginate(100, 80, 20, 20, true)
	require.Nil(t, p.Next)
	require.NotNil(t, p.Previous)

	require.Equal(t, Pagination{}, Paginate(15, 0, 20, 15, true))
}

func TestPaginate_SinglePageHasNoControls(t *testing.T) {
	require.Equal(t, Pagination{}, Paginate(3, 0, 10, 3, false))
	require.Equal(t, Pagination{}, Paginate(3, 0, 0, 3, false))
}

func TestCursor_Window(t *testing.T) {
	c := &Cursor{Offset: 1, Limit: 2}
	require.Equal(t, Abstract, c.Take(true, true))
	require.Equal(t, Detail, c.Take(false, false))
	require.Equal(t, Detail, c.Skip())
	require.Equal(t, Paged, c.Skip())
	require.Equal(t, Abstract, c.Take(true, false))
	require.Equal(t, -3, c.Offset)
}

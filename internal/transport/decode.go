package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
)

var ErrInvalidJSON = errors.New("invalid search response json")

// Decode reads the fields the engine consumes from a search response.
// Unknown fields are ignored and the raw body is kept on the result.
func Decode(b []byte) (*model.Result, error) {
	if !gjson.ValidBytes(b) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(b)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidJSON)
	}

	res := &model.Result{Raw: b}
	doc.Get("itemList").ForEach(func(_, it gjson.Result) bool {
		res.Items = append(res.Items, decodeItem(it))
		return true
	})
	res.ItemCount = int(doc.Get("itemCount").Int())

	if loc := decodeLocation(doc.Get("location")); loc != nil {
		res.Location = loc
	}

	// an empty markerList still switches the client to overview mode
	if ml := doc.Get("markerList"); ml.Exists() && ml.Type != gjson.Null {
		res.HasMarkers = true
		ml.ForEach(func(_, m gjson.Result) bool {
			lat, lon, ok := latLon(m)
			if !ok {
				return true
			}
			res.Markers = append(res.Markers, model.Marker{Lat: lat, Lon: lon, Count: int(m.Get("count").Int())})
			return true
		})
	}

	if h := doc.Get("hint"); h.IsObject() {
		if m, ok := h.Value().(map[string]any); ok {
			res.Hint = m
		}
	}
	return res, nil
}

func decodeItem(it gjson.Result) model.Item {
	item := model.Item{
		ID:   it.Get("id").String(),
		Name: it.Get("name").String(),
		Raw:  json.RawMessage(it.Raw),
	}
	it.Get("addresses").ForEach(func(_, a gjson.Result) bool {
		addr := model.Address{
			ID:   a.Get("id").String(),
			Text: a.Get("text").String(),
		}
		if lat, lon, ok := latLon(a); ok {
			addr.Lat, addr.Lon = &lat, &lon
		}
		item.Addresses = append(item.Addresses, addr)
		return true
	})
	return item
}

func latLon(r gjson.Result) (float64, float64, bool) {
	lat := r.Get("lat")
	lon := r.Get("lon")
	if !lon.Exists() {
		lon = r.Get("lng")
	}
	if lat.Type != gjson.Number || lon.Type != gjson.Number {
		return 0, 0, false
	}
	return lat.Float(), lon.Float(), true
}

func decodeLocation(r gjson.Result) *geobox.Geobox {
	var g geobox.Geobox
	switch {
	case r.Type == gjson.String:
		g = geobox.New(r.String())
	case r.IsObject():
		m, ok := r.Value().(map[string]any)
		if !ok {
			return nil
		}
		g = geobox.New(m)
	default:
		return nil
	}
	if g.IsZero() {
		return nil
	}
	return &g
}

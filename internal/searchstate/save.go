package searchstate

import (
	"context"
	"errors"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/core/observability"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/params"
)

// ErrClosed is reported to a Save callback after Close.
var ErrClosed = errors.New("search state closed")

// request is guarded by State.mu
type request struct {
	id      uint64
	payload string
	handle  Handle
	aborted bool
	settled bool
}

// Payload returns the request payload Save would send now.
func (s *State) Payload() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloadLocked()
}

func (s *State) payloadLocked() string {
	attrs := s.attrs.Clone()
	if loc, ok := attrs[params.Location].(geobox.Geobox); ok && s.IsBig(loc) {
		// too large to filter on; the server searches unfiltered
		delete(attrs, params.Location)
	}
	if s.lastResult != nil && !s.lastResult.HasMarkers {
		// the previous result was complete and is paged locally
		delete(attrs, params.Offset)
	}
	markers := "pageView=" + params.EncodeComponent(s.pageView) + "&json=true"
	q, ok := s.table.Encode(attrs)
	if !ok {
		return markers
	}
	return q + "&" + markers
}

// Signature is the cache key of a payload.
func Signature(payload string) uint64 {
	return xxhash.Sum64String(payload)
}

// Save sends the current state to the server unless useCache is set and the
// payload equals the last successful one. onComplete is called exactly once:
// with the result on success or cache hit, with ErrAborted when the request
// was superseded or torn down, and with the transport error otherwise.
func (s *State) Save(ctx context.Context, onComplete func(*model.Result, error), useCache bool) {
	if onComplete == nil {
		onComplete = func(*model.Result, error) {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		onComplete(nil, ErrClosed)
		return
	}
	payload := s.payloadLocked()
	prev := s.inflight

	if useCache {
		if res, ok := s.cachedLocked(payload); ok {
			s.inflight = nil
			s.mu.Unlock()
			if prev != nil {
				s.abort(prev)
			}
			observability.IncSearchRequest("cache_hit")
			s.logger.Debug("search served from cache", "payload", payload)
			s.syncHistory(ctx)
			s.notify(nil)
			onComplete(res, nil)
			return
		}
	}

	s.nextID++
	req := &request{id: s.nextID, payload: payload}
	s.inflight = req
	s.mu.Unlock()

	if prev != nil {
		s.abort(prev)
	}

	observability.IncSearchRequest("network")
	s.logger.Debug("search request", "id", req.id, "payload", payload)

	h := s.transport.Request(ctx, payload, func(res *model.Result, err error) {
		s.settle(ctx, req, res, err, onComplete)
	})

	s.notifyMu.Lock()
	s.mu.Lock()
	req.handle = h
	abortNow := req.aborted && !req.settled
	announce := !req.aborted && !req.settled
	s.mu.Unlock()
	if announce {
		s.notifyLocked(h)
	}
	s.notifyMu.Unlock()

	if abortNow && h != nil {
		h.Abort()
	}
}

// cachedLocked returns the result for an identical earlier payload.
func (s *State) cachedLocked(payload string) (*model.Result, bool) {
	if s.lastResult != nil && payload == s.lastRequest {
		return s.lastResult, true
	}
	if s.responses == nil {
		return nil, false
	}
	res, ok := s.responses.Get(Signature(payload))
	if !ok {
		return nil, false
	}
	s.lastResult, s.lastRequest = res, payload
	return res, true
}

func (s *State) abort(req *request) {
	s.mu.Lock()
	if req.aborted || req.settled {
		s.mu.Unlock()
		return
	}
	req.aborted = true
	h := req.handle
	s.mu.Unlock()
	if h != nil {
		h.Abort()
	}
}

func (s *State) settle(ctx context.Context, req *request, res *model.Result, err error, onComplete func(*model.Result, error)) {
	s.notifyMu.Lock()

	s.mu.Lock()
	if req.settled {
		s.mu.Unlock()
		s.notifyMu.Unlock()
		return
	}
	req.settled = true
	current := s.inflight == req
	if current {
		s.inflight = nil
	}
	announced := req.handle != nil && !req.aborted
	aborted := req.aborted
	if !aborted && err == nil && res != nil {
		s.lastResult = res
		s.lastRequest = req.payload
		if s.responses != nil {
			s.responses.Add(Signature(req.payload), res)
		}
		s.adoptLocationLocked(res.Location)
	}
	s.mu.Unlock()

	if current && (announced || aborted) {
		s.notifyLocked(nil)
	}
	s.notifyMu.Unlock()

	switch {
	case aborted:
		observability.IncSearchRequest("aborted")
		s.logger.Debug("search request aborted", "id", req.id)
		onComplete(nil, ErrAborted)
	case err != nil:
		observability.IncSearchRequest("error")
		s.logger.Error("search request failed", "id", req.id, "err", err)
		onComplete(nil, err)
	case res == nil:
		observability.IncSearchRequest("error")
		s.logger.Error("search request returned no result", "id", req.id)
		onComplete(nil, errors.New("empty search response"))
	default:
		s.syncHistory(ctx)
		s.encompass(res.Location)
		onComplete(res, nil)
	}
}

// adoptLocationLocked takes the coordinates the server resolved for a named
// location, without a diff.
func (s *State) adoptLocationLocked(resolved *geobox.Geobox) {
	if resolved == nil || !resolved.HasCoords() {
		return
	}
	cur, ok := s.attrs[params.Location].(geobox.Geobox)
	if !ok || cur.Name == "" || cur.Name != resolved.Name || cur.HasCoords() {
		return
	}
	s.attrs[params.Location] = *resolved
}

func (s *State) notify(h Handle) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifyLocked(h)
}

func (s *State) notifyLocked(h Handle) {
	for _, o := range s.observers {
		o(h)
	}
}

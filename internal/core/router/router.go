// Package router exposes search sessions over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/mapsearch/internal/core/observability"
	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	mylog "github.com/mohammed-shakir/mapsearch/internal/logger"
	"github.com/mohammed-shakir/mapsearch/internal/searchstate"
	"github.com/mohammed-shakir/mapsearch/internal/session"
	"github.com/mohammed-shakir/mapsearch/internal/transport"
)

const maxBody = 64 << 10

// Sessions is the part of the session registry the handlers need.
type Sessions interface {
	Create(ctx context.Context, query string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string) error
}

var validate = validator.New()

type viewportBody struct {
	South *float64 `json:"south" validate:"required,gte=-90,lte=90"`
	North *float64 `json:"north" validate:"required,gte=-90,lte=90"`
	West  *float64 `json:"west" validate:"required,gte=-180,lte=180"`
	East  *float64 `json:"east" validate:"required,gte=-180,lte=180"`
}

type created struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// Mount registers the session routes on r.
func Mount(r chi.Router, logger *slog.Logger, reg Sessions) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handlers{logger: logger, reg: reg}
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", observe(h.create))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", observe(h.withSession(h.view)))
			r.Delete("/", observe(h.remove))
			r.Post("/attributes", observe(h.withSession(h.attributes)))
			r.Post("/viewport", observe(h.withSession(h.viewport)))
			r.Post("/back", observe(h.withSession(h.back)))
			r.Post("/refresh", observe(h.withSession(h.refresh)))
			r.Get("/query", observe(h.withSession(h.query)))
		})
	})
}

type handlers struct {
	logger *slog.Logger
	reg    Sessions
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

func (h *handlers) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, err := h.reg.Get(id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next(w, r.WithContext(mylog.WithSession(r.Context(), id)), s)
	}
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.Create(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, _ := s.Query()
	writeJSON(w, http.StatusCreated, created{ID: s.ID, Query: q})
}

func (h *handlers) view(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, s.View())
}

func (h *handlers) attributes(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var values map[string]*string
	if err := decodeBody(w, r, &values); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.render(w, r, func(ctx context.Context) (session.View, error) { return s.Apply(ctx, values) })
}

func (h *handlers) viewport(w http.ResponseWriter, r *http.Request, s *session.Session) {
	box, err := parseViewport(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.render(w, r, func(ctx context.Context) (session.View, error) { return s.MoveViewport(ctx, box) })
}

func (h *handlers) back(w http.ResponseWriter, r *http.Request, s *session.Session) {
	h.render(w, r, s.Back)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request, s *session.Session) {
	h.render(w, r, s.Refresh)
}

func (h *handlers) query(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	q, ok := s.Query()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, q)
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Delete(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, op func(context.Context) (session.View, error)) {
	v, err := op(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "session request failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, err.Error(), code)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, searchstate.ErrClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrUnknownParam):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoHistory):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, transport.ErrStatus), errors.Is(err, transport.ErrInvalidJSON):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseViewport(w http.ResponseWriter, r *http.Request) (geobox.Geobox, error) {
	var body viewportBody
	if err := decodeBody(w, r, &body); err != nil {
		return geobox.Geobox{}, err
	}
	if err := validate.Struct(body); err != nil {
		return geobox.Geobox{}, fmt.Errorf("invalid viewport: %w", err)
	}
	if *body.North < *body.South {
		return geobox.Geobox{}, errors.New("invalid viewport: north must not be below south")
	}
	box, ok := geobox.FromCoords(*body.South, *body.North, *body.West, *body.East)
	if !ok {
		return geobox.Geobox{}, errors.New("invalid viewport")
	}
	return box, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// observe records the request under its route pattern once served.
func observe(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

package main

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/mapsearch/internal/core/health"
	"github.com/mohammed-shakir/mapsearch/internal/core/model"
	"github.com/mohammed-shakir/mapsearch/internal/core/server"
	"github.com/mohammed-shakir/mapsearch/internal/history"
	"github.com/mohammed-shakir/mapsearch/internal/session"
	"github.com/mohammed-shakir/mapsearch/internal/transport"
)

func TestMakeBoxes(t *testing.T) {
	boxes := makeBoxes(40, rand.New(rand.NewSource(1)))
	require.Len(t, boxes, 40)
	for _, b := range boxes {
		require.True(t, b.HasCoords())
		require.Greater(t, b.Area(), 0.0)
	}
	// hot boxes sit around Stockholm first
	lat, lon := boxes[0].Center()
	require.InDelta(t, 59.33, lat, 0.2)
	require.InDelta(t, 18.07, lon, 0.2)

	require.Len(t, makeBoxes(3, rand.New(rand.NewSource(1))), 3)
}

func TestPercentile(t *testing.T) {
	require.Equal(t, 0.0, percentile(nil, 50))
	v := []float64{1, 2, 3, 4}
	require.Equal(t, 1.0, percentile(v, 0))
	require.Equal(t, 4.0, percentile(v, 100))
	require.InDelta(t, 2.5, percentile(v, 50), 1e-9)
}

func TestRun_AgainstServer(t *testing.T) {
	fetch := transport.Func(func(context.Context, string) (*model.Result, error) {
		return &model.Result{ItemCount: 0}, nil
	})
	reg := session.NewRegistry(session.Config{}, fetch,
		func(string) session.Trail { return history.NewMemory(0) }, nil, nil)
	defer reg.Close()
	srv := httptest.NewServer(server.Handler(slog.New(slog.DiscardHandler), reg, map[string]health.Pinger{}))
	defer srv.Close()

	cfg := Config{TargetURL: srv.URL, Concurrency: 2, ZipfS: 1.3, ZipfV: 1, seed: 7}
	cfg.boxes = makeBoxes(16, rand.New(rand.NewSource(cfg.seed)))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var csv bytes.Buffer
	sum, err := Run(ctx, cfg, srv.Client(), &csv)
	require.NoError(t, err)

	require.Equal(t, 2, sum.Sessions)
	require.Positive(t, sum.TotalRequests)
	require.Zero(t, sum.ErrorCount)
	require.Equal(t, sum.TotalRequests, sum.SuccessCount)
	require.True(t, strings.HasPrefix(csv.String(), "timestamp,latency_ms,status,error,box_idx\n"))

	// sessions are deleted once the run ends
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_NoServer(t *testing.T) {
	cfg := Config{TargetURL: "http://127.0.0.1:1", Concurrency: 1, ZipfS: 1.3, ZipfV: 1}
	cfg.boxes = makeBoxes(8, rand.New(rand.NewSource(1)))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var csv bytes.Buffer
	_, err := Run(ctx, cfg, nil, &csv)
	require.Error(t, err)
}

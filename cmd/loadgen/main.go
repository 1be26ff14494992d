// loadgen drives the session API: every worker opens a session and pans its
// viewport over a pool of boxes picked with a Zipf distribution, so a few
// boxes are hot and the rest cold.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammed-shakir/mapsearch/internal/core/httpclient"
	"github.com/mohammed-shakir/mapsearch/internal/logger"
)

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:8090", "mapsearch base URL")
	flag.StringVar(&cfg.Query, "query", "", "query each session starts from")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "concurrent sessions")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.Boxes, "boxes", 128, "distinct viewports in the pool")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "output file prefix (JSON/CSV)")
	flag.Parse()
	return cfg
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg := loadConfig()
	zl := logger.Build(logger.Config{Level: "info", Console: true, Component: "loadgen"}, os.Stderr)
	log := logger.NewSlog(&zl)

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Error("mkdir results", "err", err)
		return 1
	}
	prefix := fmt.Sprintf("%s_%s", cfg.OutputPrefix, time.Now().UTC().Format("20060102_150405Z"))
	csvPath, jsonPath := prefix+"_samples.csv", prefix+"_summary.json"

	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Error("open csv", "err", err)
		return 1
	}
	defer func() { _ = csvFile.Close() }()

	seed := time.Now().UnixNano()
	cfg.boxes = makeBoxes(cfg.Boxes, rand.New(rand.NewSource(seed)))
	cfg.seed = seed

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	log.Info("loadgen start", "target", cfg.TargetURL, "duration", cfg.Duration,
		"concurrency", cfg.Concurrency, "boxes", len(cfg.boxes), "query", strings.TrimSpace(cfg.Query))

	sum, err := Run(ctx, cfg, httpclient.NewOutbound(), csvFile)
	if err != nil {
		log.Error("loadgen failed", "err", err)
		return 1
	}
	if err := writeSummary(jsonPath, sum); err != nil {
		log.Error("write summary", "err", err)
		return 1
	}
	log.Info("done", "total", sum.TotalRequests, "success", sum.SuccessCount, "errors", sum.ErrorCount,
		"rps", sum.ThroughputRPS, "p50_ms", sum.P50Ms, "p95_ms", sum.P95Ms, "p99_ms", sum.P99Ms,
		"summary", jsonPath, "samples", csvPath)
	return 0
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/mapsearch/internal/cache/redisstore"
	"github.com/mohammed-shakir/mapsearch/internal/cache/responsecache"
	"github.com/mohammed-shakir/mapsearch/internal/core/config"
	"github.com/mohammed-shakir/mapsearch/internal/core/health"
	"github.com/mohammed-shakir/mapsearch/internal/core/httpclient"
	"github.com/mohammed-shakir/mapsearch/internal/core/observability"
	"github.com/mohammed-shakir/mapsearch/internal/core/server"
	"github.com/mohammed-shakir/mapsearch/internal/history"
	"github.com/mohammed-shakir/mapsearch/internal/logger"
	"github.com/mohammed-shakir/mapsearch/internal/searchevents"
	"github.com/mohammed-shakir/mapsearch/internal/searchstate"
	"github.com/mohammed-shakir/mapsearch/internal/session"
	"github.com/mohammed-shakir/mapsearch/internal/transport"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	configFlag := flag.String("config", "", "YAML config file, overridden by the environment")
	pageViewFlag := flag.String("page-view", "", "map or list")
	flag.Parse()

	if *configFlag != "" {
		_ = os.Setenv("CONFIG_FILE", *configFlag)
	}
	cfg := config.FromEnv()
	if v := strings.ToLower(strings.TrimSpace(*pageViewFlag)); v == "map" || v == "list" {
		cfg.PageView = v
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		PageView:  cfg.PageView,
		Component: "mapsearch",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	observability.SetPageView(cfg.PageView)
	observability.ExposeBuildInfo(Version)
	appLog.Info("starting mapsearch",
		"addr", cfg.Addr,
		"version", Version,
		"backend", cfg.BackendURL,
		"page_view", cfg.PageView,
		"history", cfg.HistoryDriver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := transport.New(appLog, httpclient.NewOutbound(), cfg.BackendURL, cfg.BackendRPS)
	if err != nil {
		appLog.Error("failed to initialize backend transport", "err", err)
		return 1
	}
	var tr searchstate.Transport = backend

	deps := map[string]health.Pinger{}
	var rdb *redisstore.Client
	if cfg.HistoryDriver == "redis" || cfg.Redis.CacheEnabled {
		rdb, err = redisstore.New(ctx, cfg.Redis.Addr)
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.Redis.Addr, "err", err)
			return 1
		}
		defer func() { _ = rdb.Close() }()
		deps["redis"] = rdb
	}
	if cfg.Redis.CacheEnabled {
		rc := responsecache.New(backend, rdb, cfg.PageView, cfg.ResponseCacheTTL, cfg.Redis.OpTimeout, appLog)
		tr = rc.Transport()
	}

	newHistory := func(string) session.Trail { return history.NewMemory(history.DefaultDepth) }
	if cfg.HistoryDriver == "redis" {
		newHistory = func(id string) session.Trail {
			return history.NewRedis(rdb, id, history.DefaultDepth, cfg.SessionTTL)
		}
	}

	var events searchevents.Sink = searchevents.Nop{}
	if cfg.Events.Enabled {
		pub, err := searchevents.NewPublisher(splitList(cfg.Events.Brokers), cfg.Events.Topic, 1024, appLog)
		if err != nil {
			appLog.Error("failed to initialize search event publisher", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("search event publisher close", "err", err)
			}
		}()
		events = pub
	}

	reg := session.NewRegistry(session.Config{
		PageView:          cfg.PageView,
		PageSize:          cfg.PageSize,
		BigAreaKm2:        cfg.BigAreaKm2,
		ResponseCacheSize: cfg.ResponseCacheSize,
		Padding:           cfg.EncompassPadding,
		MarkerRes:         cfg.MarkerRes,
		TTL:               cfg.SessionTTL,
		Max:               cfg.SessionMax,
	}, tr, newHistory, events, appLog)
	defer reg.Close()

	if err := server.Run(ctx, cfg, appLog, reg, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

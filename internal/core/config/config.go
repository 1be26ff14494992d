// Package config reads service settings from the environment, optionally
// layered over a YAML file named by CONFIG_FILE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RedisCfg struct {
	Addr         string
	CacheEnabled bool
	OpTimeout    time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
}

type Config struct {
	Addr              string
	LogLevel          string
	BackendURL        string
	BackendRPS        float64
	PageView          string
	PageSize          int
	BigAreaKm2        float64
	EncompassPadding  float64
	HistoryDriver     string
	SessionTTL        time.Duration
	SessionMax        int
	ResponseCacheSize int
	ResponseCacheTTL  time.Duration
	MarkerRes         int
	Redis             RedisCfg
	Events            EventsCfg
}

// file holds values from CONFIG_FILE; the environment wins over it.
var file map[string]string

func FromEnv() Config {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		m, err := readFile(p)
		if err == nil {
			file = m
		}
	}
	defer func() { file = nil }()

	pageSize := getint("PAGE_SIZE", 20)
	if pageSize <= 0 {
		pageSize = 20
	}
	res := getint("MARKER_RES", 0)
	if res < 0 || res > 15 {
		res = 0
	}
	view := strings.ToLower(getenv("PAGE_VIEW", "map"))
	if view != "map" && view != "list" {
		view = "map"
	}
	driver := strings.ToLower(getenv("HISTORY_DRIVER", "memory"))
	if driver != "memory" && driver != "redis" {
		driver = "memory"
	}

	return Config{
		Addr:              getenv("ADDR", ":8090"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		BackendURL:        getenv("SEARCH_BACKEND_URL", "http://localhost:8080/search"),
		BackendRPS:        getfloat("BACKEND_RPS", 20),
		PageView:          view,
		PageSize:          pageSize,
		BigAreaKm2:        getfloat("BIG_AREA_KM2", 500000),
		EncompassPadding:  getfloat("ENCOMPASS_PADDING", 0.1),
		HistoryDriver:     driver,
		SessionTTL:        getduration("SESSION_TTL", 30*time.Minute),
		SessionMax:        getint("SESSION_MAX", 1024),
		ResponseCacheSize: getint("RESPONSE_CACHE_SIZE", 32),
		ResponseCacheTTL:  getduration("RESPONSE_CACHE_TTL", 60*time.Second),
		MarkerRes:         res,
		Redis: RedisCfg{
			Addr:         getenv("REDIS_ADDR", "localhost:6379"),
			CacheEnabled: getbool("REDIS_CACHE_ENABLED", false),
			OpTimeout:    getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "search-issued"),
		},
	}
}

// readFile parses a flat YAML mapping whose keys are the environment names.
func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out, nil
}

func lookup(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return file[k]
}

func getenv(k, def string) string {
	if v := lookup(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := lookup(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := lookup(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := lookup(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := lookup(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/mapsearch/internal/geobox"
)

type Config struct {
	TargetURL    string
	Query        string
	Concurrency  int
	Duration     time.Duration
	ZipfS        float64
	ZipfV        float64
	Boxes        int
	OutputPrefix string

	boxes []geobox.Geobox
	seed  int64
}

// one sample per viewport move
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	BoxIndex  int
}

type Summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	Sessions      int       `json:"sessions"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Boxes         int       `json:"boxes"`
	TargetURL     string    `json:"target"`
}

// makeBoxes returns a quarter of hot viewports around a few city centers and
// fills the rest with random ones over Sweden.
func makeBoxes(count int, r *rand.Rand) []geobox.Geobox {
	centers := [][2]float64{
		{59.3293, 18.0686}, // Stockholm
		{57.7089, 11.9746}, // Göteborg
		{55.6050, 13.0038}, // Malmö
		{65.5848, 22.1547}, // Luleå
	}
	out := make([]geobox.Geobox, 0, count)
	hot := min(count, max(8, count/4))
	for i := range hot {
		c := centers[i%len(centers)]
		lat, lon := c[0]+(r.Float64()-0.5)*0.2, c[1]+(r.Float64()-0.5)*0.2
		h, w := 0.12+r.Float64()*0.08, 0.12+r.Float64()*0.08
		out = appendBox(out, lat, lon, h, w)
	}
	for len(out) < count {
		lat, lon := 55+r.Float64()*11, 11+r.Float64()*13
		h, w := 0.05+r.Float64()*0.2, 0.05+r.Float64()*0.2
		out = appendBox(out, lat, lon, h, w)
	}
	return out
}

func appendBox(out []geobox.Geobox, lat, lon, h, w float64) []geobox.Geobox {
	if b, ok := geobox.FromCoords(lat-h/2, lat+h/2, lon-w/2, lon+w/2); ok {
		return append(out, b)
	}
	return out
}

// Run keeps every worker panning until ctx is done and returns the summary.
// Samples are written to samples as CSV.
func Run(ctx context.Context, cfg Config, client *http.Client, samples io.Writer) (Summary, error) {
	if len(cfg.boxes) == 0 {
		return Summary{}, errors.New("no viewports to pan over")
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return Summary{}, fmt.Errorf("zipf parameters out of range: s=%v v=%v", cfg.ZipfS, cfg.ZipfV)
	}
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(cfg.TargetURL, "/")
	imax := uint64(len(cfg.boxes) - 1)

	samplesCh := make(chan sample, 4096)
	done := make(chan Summary, 1)
	go collect(samplesCh, samples, done)

	start := time.Now()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions int
	)
	for id := range cfg.Concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sid, err := createSession(ctx, client, base, cfg.Query)
			if err != nil {
				return
			}
			defer deleteSession(client, base, sid)
			mu.Lock()
			sessions++
			mu.Unlock()

			r := rand.New(rand.NewSource(cfg.seed + int64(id) + 1))
			zipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, imax)
			for ctx.Err() == nil {
				idx := int(zipf.Uint64())
				s := moveViewport(ctx, client, base, sid, cfg.boxes[idx])
				if ctx.Err() != nil {
					// cut off by the deadline, not a server failure
					return
				}
				s.BoxIndex = idx
				samplesCh <- s
			}
		}(id)
	}
	wg.Wait()
	close(samplesCh)

	sum := <-done
	end := time.Now()
	sum.StartTime, sum.EndTime = start.UTC(), end.UTC()
	sum.DurationSec = end.Sub(start).Seconds()
	if sum.DurationSec > 0 {
		sum.ThroughputRPS = float64(sum.TotalRequests) / sum.DurationSec
	}
	sum.Sessions = sessions
	sum.Concurrency, sum.ZipfS, sum.ZipfV = cfg.Concurrency, cfg.ZipfS, cfg.ZipfV
	sum.Boxes, sum.TargetURL = len(cfg.boxes), cfg.TargetURL
	if sessions == 0 {
		return sum, fmt.Errorf("no session could be created at %s", base)
	}
	return sum, nil
}

func collect(in <-chan sample, w io.Writer, done chan<- Summary) {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"timestamp", "latency_ms", "status", "error", "box_idx"})
	var sum Summary
	lat := make([]float64, 0, 1<<16)
	for s := range in {
		sum.TotalRequests++
		ms := float64(s.Latency.Microseconds()) / 1000.0
		if s.ErrorMsg == "" {
			sum.SuccessCount++
			lat = append(lat, ms)
		} else {
			sum.ErrorCount++
		}
		_ = cw.Write([]string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(ms, 'f', 3, 64),
			strconv.Itoa(s.Status),
			s.ErrorMsg,
			strconv.Itoa(s.BoxIndex),
		})
	}
	cw.Flush()

	sort.Float64s(lat)
	sum.P50Ms, sum.P95Ms, sum.P99Ms = percentile(lat, 50), percentile(lat, 95), percentile(lat, 99)
	done <- sum
}

func createSession(ctx context.Context, client *http.Client, base, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/sessions?q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: status %d", resp.StatusCode)
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return body.ID, nil
}

func deleteSession(client *http.Client, base, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, base+"/sessions/"+id, nil)
	if err != nil {
		return
	}
	if resp, err := client.Do(req); err == nil {
		_ = resp.Body.Close()
	}
}

func moveViewport(ctx context.Context, client *http.Client, base, id string, b geobox.Geobox) sample {
	s, n, w, e := b.Coords()
	body, _ := json.Marshal(map[string]float64{"south": s, "north": n, "west": w, "east": e})

	start := time.Now()
	out := sample{Timestamp: start}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/sessions/"+id+"/viewport", bytes.NewReader(body))
	if err != nil {
		out.ErrorMsg = err.Error()
		return out
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	out.Latency = time.Since(start)
	if err != nil {
		out.ErrorMsg = err.Error()
		return out
	}
	out.Status = resp.StatusCode
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return out
}

func writeSummary(path string, sum Summary) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode summary: %w", err)
	}
	return f.Close()
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		// NaN does not survive JSON encoding
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := (p / 100.0) * float64(len(sorted)-1)
	i := int(math.Floor(k))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	d := k - float64(i)
	return sorted[i]*(1-d) + sorted[i+1]*d
}

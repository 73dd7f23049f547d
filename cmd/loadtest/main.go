// Command loadtest replays autocomplete traffic against the suggest service.
//
// Each worker "types" a title or author one keystroke at a time and issues a
// suggestion request per keystroke, the way a search box does. A share of
// the requests use regexp mode and title resolution.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:5000] [-concurrency 10] [-duration 30s] [-rps 0]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	RPS         float64
	Titles      []string
	Authors     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latenciesMu   sync.Mutex
	latencies     map[string][]time.Duration
	statusCodesMu sync.Mutex
	statusCodes   map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(endpoint string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	// resolve_title answers 404 for titles it does not know.
	if statusCode < 300 || (endpoint == "resolve" && statusCode == http.StatusNotFound) {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies[endpoint] = append(s.latencies[endpoint], duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	s.statusCodes[statusCode]++
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "base URL of the suggest service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent typists")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "global request rate limit, 0 for unlimited")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		Titles: []string{
			"The Great Gatsby",
			"Pride and Prejudice",
			"Moby Dick",
			"Frankenstein",
			"Alice's Adventures in Wonderland",
			"Les Misérables",
			"Great Expectations",
			"The Adventures of Sherlock Holmes",
			"A Tale of Two Cities",
			"Dracula",
		},
		Authors: []string{
			"Austen",
			"Dickens, Charles",
			"Shelley",
			"Doyle",
			"Twain, Mark",
			"Hugo, Victor",
		},
	}

	fmt.Println("=== Catalog Suggest Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	if cfg.RPS > 0 {
		fmt.Printf("Rate limit:  %.0f req/s\n", cfg.RPS)
	}
	fmt.Println()

	start := time.Now()
	stats := runLoadTest(cfg)
	printReport(stats, time.Since(start))
}

// keystrokes returns the successive prefixes typed for s, starting at two
// runes.
func keystrokes(s string) []string {
	runes := []rune(s)
	out := make([]string, 0, len(runes))
	for i := 2; i <= len(runes); i++ {
		out = append(out, string(runes[:i]))
	}
	return out
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Concurrency)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for round := w; gctx.Err() == nil; round++ {
				for _, target := range requestsFor(cfg, round) {
					if err := limiter.Wait(gctx); err != nil {
						return nil
					}
					fire(gctx, client, stats, target)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println(" done!")
	fmt.Println()
	return stats
}

type target struct {
	endpoint string
	url      string
}

// requestsFor builds one typing session. Every fifth round types an author,
// every seventh issues a regexp query and every round ends by resolving the
// full title.
func requestsFor(cfg Config, round int) []target {
	var out []target
	switch {
	case round%7 == 0:
		title := cfg.Titles[round%len(cfg.Titles)]
		expr := "^" + string([]rune(title)[:3])
		out = append(out, target{"regexp", cfg.BaseURL + "/api/v1/suggest?mode=regexp&title_query=" + url.QueryEscape(expr)})
	case round%5 == 0:
		author := cfg.Authors[round%len(cfg.Authors)]
		for _, prefix := range keystrokes(author) {
			out = append(out, target{"author", cfg.BaseURL + "/api/v1/suggest?auth_query=" + url.QueryEscape(prefix)})
		}
	default:
		title := cfg.Titles[round%len(cfg.Titles)]
		for _, prefix := range keystrokes(title) {
			out = append(out, target{"title", cfg.BaseURL + "/api/v1/suggest?title_query=" + url.QueryEscape(prefix)})
		}
		out = append(out, target{"resolve", cfg.BaseURL + "/api/v1/resolve_title?title_query=" + url.QueryEscape(title)})
	}
	return out
}

func fire(ctx context.Context, client *http.Client, stats *Stats, t target) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.RecordRequest(t.endpoint, duration, 0, err)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.RecordRequest(t.endpoint, duration, resp.StatusCode, nil)
}

func printReport(stats *Stats, elapsed time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/elapsed.Seconds())
	}

	stats.latenciesMu.Lock()
	endpoints := make([]string, 0, len(stats.latencies))
	for endpoint := range stats.latencies {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)
	for _, endpoint := range endpoints {
		latencies := append([]time.Duration(nil), stats.latencies[endpoint]...)
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sumSquared += diff * diff
		}

		fmt.Println()
		fmt.Printf("=== Latency: %s (%d requests) ===\n", endpoint, len(latencies))
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}
	stats.latenciesMu.Unlock()

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

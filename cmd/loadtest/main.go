// Command loadtest drives GET /api/v1/search on a running searcher and
// reports throughput, latency percentiles, status codes and cache hit rate.
//
// Queries come from the section titles of a local searchindex.js when
// -index is set, otherwise from a small built-in list.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-index book/searchindex.js]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
)

var defaultQueries = []string{
	"introduction",
	"getting started",
	"configuration",
	"install",
	"search",
	"summary",
	"theme",
	"preprocessor",
	"renderer",
	"command line",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	indexPath := flag.String("index", "", "searchindex.js to draw queries from")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "limit parameter sent with every search")
	flag.Parse()

	queries := defaultQueries
	if *indexPath != "" {
		idx, err := searchindex.LoadFile(*indexPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading index: %v\n", err)
			os.Exit(1)
		}
		if titles := titleQueries(idx); len(titles) > 0 {
			queries = titles
		}
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		Queries:     queries,
	}

	fmt.Println("=== docsearch load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	report := stats.Report(cfg.Duration)
	report.Print(os.Stdout)
	if report.Total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the searcher running?")
		os.Exit(1)
	}
}

// titleQueries returns the distinct non-empty section titles of idx in
// ref order.
func titleQueries(idx *searchindex.Index) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ref := range idx.Refs() {
		doc, ok := idx.Document(ref)
		if !ok || doc.Title == "" || seen[doc.Title] {
			continue
		}
		seen[doc.Title] = true
		out = append(out, doc.Title)
	}
	return out
}

func searchURL(base, query string, limit int) string {
	return fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", base, url.QueryEscape(query), limit)
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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		queryIdx := w
		g.Go(func() error {
			for gctx.Err() == nil {
				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++

				req, err := http.NewRequestWithContext(gctx, http.MethodGet, searchURL(cfg.BaseURL, query, cfg.Limit), nil)
				if err != nil {
					return fmt.Errorf("creating request: %w", err)
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if gctx.Err() == nil {
						stats.RecordRequest(elapsed, 0, false, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(elapsed, resp.StatusCode, resp.Header.Get("X-Cache") == "HIT", nil)
			}
			return nil
		})
	}

	fmt.Print("Running")
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nload test aborted: %v\n", err)
	}
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// Package service is the query front door shared by the HTTP handler, the
// MCP tools and the CLI. It clamps limits, consults the result cache,
// executes against the current index snapshot and reports each search to
// metrics and analytics.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// ResultCache stores search results. *cache.QueryCache implements it.
type ResultCache interface {
	GetOrCompute(ctx context.Context, key string, computeFn func() (*executor.SearchResult, error)) (*executor.SearchResult, bool, error)
	Invalidate(ctx context.Context) error
	Stats() cache.Stats
}

// Tracker receives one analytics event per search. *analytics.Collector
// implements it.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Announcer tells other searchers that this one loaded a new index.
type Announcer func(ctx context.Context, snap *indexstore.Snapshot, reason string) error

// Options wires a Service. Only Store is required.
type Options struct {
	Store        *indexstore.Store
	Timeout      time.Duration
	Cache        ResultCache
	Tracker      Tracker
	Announce     Announcer
	Metrics      *metrics.Metrics
	DefaultLimit int
	MaxResults   int
}

// DocumentView is a stored document with its resolved URL.
type DocumentView struct {
	Ref         string `json:"ref"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Breadcrumbs string `json:"breadcrumbs"`
	URL         string `json:"url"`
}

// IndexSummary describes the index currently served.
type IndexSummary struct {
	Path           string                     `json:"path,omitempty"`
	Version        string                     `json:"version"`
	Lang           string                     `json:"lang"`
	Ref            string                     `json:"ref"`
	Fields         []string                   `json:"fields"`
	Documents      int                        `json:"documents"`
	Pipeline       []string                   `json:"pipeline"`
	SearchOptions  searchindex.SearchOptions  `json:"search_options"`
	Effective      []searchindex.FieldConfig  `json:"effective_fields"`
	ResultsOptions searchindex.ResultsOptions `json:"results_options"`
	Fingerprint    string                     `json:"fingerprint"`
	LoadedAt       time.Time                  `json:"loaded_at"`
}

// ReloadResult reports the outcome of an explicit reload.
type ReloadResult struct {
	Changed     bool   `json:"changed"`
	Fingerprint string `json:"fingerprint"`
	Documents   int    `json:"documents"`
}

type Service struct {
	store        *indexstore.Store
	exec         *executor.Executor
	cache        ResultCache
	tracker      Tracker
	announce     Announcer
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = searchindex.DefaultLimitResults
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	s := &Service{
		store:        opts.Store,
		exec:         executor.New(opts.Store, opts.Timeout),
		cache:        opts.Cache,
		tracker:      opts.Tracker,
		announce:     opts.Announce,
		metrics:      opts.Metrics,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		logger:       slog.Default().With("component", "search-service"),
	}
	if opts.Store != nil && opts.Cache != nil {
		opts.Store.OnReload(func(*indexstore.Snapshot) {
			s.OnIndexChanged(context.Background())
		})
	}
	return s
}

// CacheEnabled reports whether results are cached.
func (s *Service) CacheEnabled() bool { return s.cache != nil }

// Limit turns a requested limit into the one searched with: 0 means the
// default and anything above the maximum is clamped.
func (s *Service) Limit(requested int) int {
	if requested <= 0 {
		return s.defaultLimit
	}
	return min(requested, s.maxResults)
}

// Search answers query from source. The boolean reports a cache hit.
func (s *Service) Search(ctx context.Context, query string, limit int, source string) (*executor.SearchResult, bool, error) {
	start := time.Now()
	limit = s.Limit(limit)
	ctx, span := tracing.Start(ctx, "search")

	result, cacheHit, err := s.search(ctx, query, limit)
	latency := time.Since(start)
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	span.Log(ctx)
	s.report(ctx, query, source, result, cacheHit, latency, err)
	if err != nil {
		return nil, false, err
	}
	return result, cacheHit, nil
}

func (s *Service) search(ctx context.Context, query string, limit int) (*executor.SearchResult, bool, error) {
	_, prepare := tracing.Start(ctx, "prepare")
	snap, plan, err := s.exec.Prepare(query)
	prepare.End()
	if err != nil {
		return nil, false, err
	}
	if plan.Empty() || s.cache == nil {
		result, err := s.execute(ctx, snap, plan, limit)
		return result, false, err
	}
	key := cache.Key(snap.Index.Fingerprint, plan, limit)
	cctx, lookup := tracing.Start(ctx, "cache")
	result, hit, err := s.cache.GetOrCompute(cctx, key, func() (*executor.SearchResult, error) {
		return s.execute(cctx, snap, plan, limit)
	})
	lookup.SetAttr("hit", hit)
	lookup.End()
	if err != nil {
		return nil, false, err
	}
	// shared with concurrent callers; copy before stamping this query
	own := *result
	own.Query = query
	return &own, hit, nil
}

func (s *Service) execute(ctx context.Context, snap *indexstore.Snapshot, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error) {
	ctx, span := tracing.Start(ctx, "execute")
	defer span.End()
	result, err := s.exec.Execute(ctx, snap, plan, limit)
	if result != nil {
		span.SetAttr("total_hits", result.TotalHits)
	}
	return result, err
}

func (s *Service) report(ctx context.Context, query, source string, result *executor.SearchResult, cacheHit bool, latency time.Duration, err error) {
	log := logger.FromContext(ctx)
	var ev analytics.SearchEvent
	if result != nil {
		ev.Tokens = result.Tokens
		ev.TotalHits = result.TotalHits
		ev.Returned = len(result.Results)
		ev.IndexVersion = result.IndexVersion
	}
	ev.Type = analytics.Classify(ev.TotalHits, cacheHit, err)

	cacheStatus := "disabled"
	if s.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	s.metrics.ObserveSearch(string(ev.Type), cacheStatus, ev.Returned, latency)

	if err != nil {
		log.Error("search failed", "query", query, "source", source, "error", err)
	} else {
		log.Info("search completed",
			"query", query,
			"source", source,
			"total_hits", ev.TotalHits,
			"returned", ev.Returned,
			"cache_hit", cacheHit,
			"latency_ms", latency.Milliseconds(),
		)
	}

	if s.tracker == nil {
		return
	}
	ev.Query = query
	ev.LatencyMs = latency.Milliseconds()
	ev.CacheHit = cacheHit
	ev.Source = source
	ev.Timestamp = time.Now().UTC()
	ev.RequestID = logger.RequestID(ctx)
	s.tracker.Track(ev)
}

// Document returns the stored document ref.
func (s *Service) Document(ref string) (*DocumentView, error) {
	snap, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	doc, ok := snap.Index.Document(ref)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "no document with ref %q", ref)
	}
	url, _ := snap.Index.DocURL(ref)
	return &DocumentView{
		Ref:         doc.ID,
		Title:       doc.Title,
		Body:        doc.Body,
		Breadcrumbs: doc.Breadcrumbs,
		URL:         url,
	}, nil
}

// Summary describes the index being served.
func (s *Service) Summary() (*IndexSummary, error) {
	snap, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	idx := snap.Index
	return &IndexSummary{
		Path:           s.store.Path(),
		Version:        idx.Version,
		Lang:           idx.Lang,
		Ref:            idx.Ref,
		Fields:         idx.Fields,
		Documents:      idx.Len(),
		Pipeline:       snap.Pipeline.Names(),
		SearchOptions:  snap.Options,
		Effective:      snap.Fields,
		ResultsOptions: idx.ResultsOptions,
		Fingerprint:    idx.Fingerprint,
		LoadedAt:       idx.LoadedAt,
	}, nil
}

// Reload re-reads the index file. When it changed, other searchers are
// told; the store listener registered by New drops cached results.
func (s *Service) Reload(ctx context.Context, reason string) (*ReloadResult, error) {
	snap, changed, err := s.store.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("reloading index: %w", err)
	}
	if changed && s.announce != nil {
		if err := s.announce(ctx, snap, reason); err != nil {
			s.logger.Warn("failed to announce reload", "error", err)
		}
	}
	return &ReloadResult{
		Changed:     changed,
		Fingerprint: snap.Index.Fingerprint,
		Documents:   snap.Index.Len(),
	}, nil
}

// OnIndexChanged drops cached results after any snapshot swap, whether
// from the API, the file watcher or a reload event. Cache keys already carry
// the index fingerprint, so this only reclaims space.
func (s *Service) OnIndexChanged(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("cache invalidation after reload failed", "error", err)
	}
}

// InvalidateCache drops every cached result.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "caching is disabled")
	}
	return s.cache.Invalidate(ctx)
}

// CacheStats returns cache counters, or false when caching is disabled.
func (s *Service) CacheStats() (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(), true
}

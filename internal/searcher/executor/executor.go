package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/teaser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// Hit is one ranked document ready for display.
type Hit struct {
	Ref         string  `json:"ref"`
	Score       float64 `json:"score"`
	Title       string  `json:"title"`
	Breadcrumbs string  `json:"breadcrumbs"`
	URL         string  `json:"url"`
	Teaser      string  `json:"teaser"`
}

type SearchResult struct {
	Query        string   `json:"query"`
	TotalHits    int      `json:"total_hits"`
	Results      []Hit    `json:"results"`
	Tokens       []string `json:"tokens"`
	IndexVersion string   `json:"index_version"`
}

// SnapshotSource hands out the index snapshot to query. *indexstore.Store
// implements it.
type SnapshotSource interface {
	Current() (*indexstore.Snapshot, error)
}

type Executor struct {
	source  SnapshotSource
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Executor over source. A positive timeout bounds every
// Execute call.
func New(source SnapshotSource, timeout time.Duration) *Executor {
	return &Executor{
		source:  source,
		timeout: timeout,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Prepare pins the current snapshot and parses query with its pipeline.
func (e *Executor) Prepare(query string) (*indexstore.Snapshot, *parser.QueryPlan, error) {
	snap, err := e.source.Current()
	if err != nil {
		return nil, nil, err
	}
	return snap, parser.Parse(query, snap.Pipeline), nil
}

// Search prepares and executes query against the current snapshot.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	snap, plan, err := e.Prepare(query)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, snap, plan, limit)
}

// Execute ranks the documents of snap against plan and returns at most
// limit hits. limit <= 0, or a limit above the index's limit_results,
// falls back to limit_results.
func (e *Executor) Execute(ctx context.Context, snap *indexstore.Snapshot, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	result := &SearchResult{
		Query:        plan.RawQuery,
		Results:      []Hit{},
		Tokens:       plan.Tokens,
		IndexVersion: Version(snap),
	}
	if plan.Empty() {
		return result, nil
	}

	scores, err := resilience.WithTimeout(ctx, e.timeout, "search", func(ctx context.Context) (map[string]float64, error) {
		return scoreFields(ctx, snap, plan.Tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("executing query %q: %w", plan.RawQuery, err)
	}

	ranked := merger.TopK(scores, effectiveLimit(limit, snap.Index.ResultsOptions.LimitResults))
	result.TotalHits = len(scores)
	result.Results = make([]Hit, 0, len(ranked))
	for _, sd := range ranked {
		result.Results = append(result.Results, buildHit(snap, sd, plan.Words))
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"tokens", plan.Tokens,
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// Version identifies the index content a result was computed from.
func Version(snap *indexstore.Snapshot) string {
	fp := snap.Index.Fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return fp
}

func scoreFields(ctx context.Context, snap *indexstore.Snapshot, tokens []string) (map[string]float64, error) {
	perField := make([]ranker.FieldScores, len(snap.Fields))
	g, ctx := errgroup.WithContext(ctx)
	for i, fc := range snap.Fields {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perField[i] = ranker.ScoreField(snap.Index, tokens, fc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ranker.Combine(snap.Fields, perField), nil
}

func effectiveLimit(limit, limitResults int) int {
	if limitResults <= 0 {
		return limit
	}
	if limit <= 0 || limit > limitResults {
		return limitResults
	}
	return limit
}

func buildHit(snap *indexstore.Snapshot, sd ranker.ScoredDoc, words []string) Hit {
	hit := Hit{Ref: sd.Ref, Score: sd.Score}
	if doc, ok := snap.Index.Document(sd.Ref); ok {
		hit.Title = doc.Title
		hit.Breadcrumbs = doc.Breadcrumbs
		hit.Teaser = teaser.Make(doc.Body, words, snap.Index.ResultsOptions.TeaserWordCount)
	}
	if u, ok := snap.Index.DocURL(sd.Ref); ok {
		hit.URL = HighlightURL(u, words)
	}
	return hit
}

// componentUnescaper turns url.QueryEscape output into what a browser's
// encodeURIComponent produces. The quote stays escaped as %27.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// HighlightURL adds a highlight parameter carrying words to a
// page.html#anchor document URL, keeping the anchor last. Words are escaped
// the way the mdBook search widget escapes them.
func HighlightURL(docURL string, words []string) string {
	page, anchor, hasAnchor := strings.Cut(docURL, "#")
	if len(words) > 0 {
		encoded := componentUnescaper.Replace(url.QueryEscape(strings.Join(words, " ")))
		page += "?highlight=" + encoded
	}
	if hasAnchor {
		page += "#" + anchor
	}
	return page
}

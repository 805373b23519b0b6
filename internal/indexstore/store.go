// Package indexstore owns the search index a process serves. It loads the
// index file, keeps the current snapshot behind an atomic pointer so queries
// never block on a reload, and swaps in a new snapshot when the file changes
// on disk, on a timer, or when a reload event arrives over Kafka. A failed
// reload keeps the previous snapshot.
package indexstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const defaultDebounce = 250 * time.Millisecond

// Snapshot is an index together with everything derived from it that
// queries need. Snapshots are immutable.
type Snapshot struct {
	Index    *searchindex.Index
	Pipeline *pipeline.Pipeline
	Options  searchindex.SearchOptions
	Fields   []searchindex.FieldConfig
}

// NewSnapshot prepares idx for querying. override, when non-nil, replaces
// the search options recorded in the index.
func NewSnapshot(idx *searchindex.Index, override *searchindex.SearchOptions) (*Snapshot, error) {
	p, err := pipeline.New(idx.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrMalformedIndex, err)
	}
	opts := idx.SearchOptions
	if override != nil {
		opts = *override
	}
	return &Snapshot{
		Index:    idx,
		Pipeline: p,
		Options:  opts,
		Fields:   opts.Resolve(idx.Fields),
	}, nil
}

// OverrideFromConfig converts the search.options config block into search
// options. It returns nil when the block is absent.
func OverrideFromConfig(oc *config.OptionsConfig) *searchindex.SearchOptions {
	if oc == nil {
		return nil
	}
	opts := &searchindex.SearchOptions{Bool: oc.Bool, Expand: oc.Expand}
	if len(oc.Fields) > 0 {
		opts.Fields = make(map[string]searchindex.FieldOptions, len(oc.Fields))
		for name, f := range oc.Fields {
			opts.Fields[name] = searchindex.FieldOptions{Boost: f.Boost, Bool: f.Bool, Expand: f.Expand}
		}
	}
	return opts
}

// Options configures a Store.
type Options struct {
	Path           string
	Override       *searchindex.SearchOptions
	LoadAttempts   int
	ReloadInterval time.Duration
	Debounce       time.Duration
	Metrics        *metrics.Metrics
}

// Store serves the current Snapshot and reloads it.
type Store struct {
	opts      Options
	current   atomic.Pointer[Snapshot]
	mu        sync.Mutex
	listeners []func(*Snapshot)
	logger    *slog.Logger
}

// New creates an empty Store for opts.Path. Call Load before serving.
func New(opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	return &Store{
		opts:   opts,
		logger: slog.Default().With("component", "index-store", "path", opts.Path),
	}
}

// NewStatic returns a Store that always serves snap and has no file behind
// it; Reload on it fails.
func NewStatic(snap *Snapshot) *Store {
	s := New(Options{})
	s.current.Store(snap)
	return s
}

// Path returns the index file the store reads.
func (s *Store) Path() string { return s.opts.Path }

// Current returns the snapshot queries should use, or an error wrapping
// apperrors.ErrIndexUnavailable when nothing has loaded yet.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: no index loaded from %q", apperrors.ErrIndexUnavailable, s.opts.Path)
	}
	return snap, nil
}

// Check reports whether an index is loaded. It is used as a readiness check.
func (s *Store) Check(_ context.Context) error {
	_, err := s.Current()
	return err
}

// OnReload registers fn to run after every snapshot swap.
func (s *Store) OnReload(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load reads the index, retrying with backoff up to LoadAttempts times.
func (s *Store) Load(ctx context.Context) error {
	if s.opts.Path == "" {
		return fmt.Errorf("%w: store has no index path", apperrors.ErrIndexUnavailable)
	}
	return resilience.Retry(ctx, "load-search-index", resilience.RetryConfig{
		MaxAttempts: s.opts.LoadAttempts,
		Backoff:     resilience.Backoff{Initial: 500 * time.Millisecond},
	}, func(int) error {
		_, _, err := s.Reload(ctx)
		return err
	})
}

// Reload re-reads the index file and swaps it in when its content changed.
// It returns the snapshot now being served and whether it is new. On error
// the previous snapshot stays in place.
func (s *Store) Reload(ctx context.Context) (*Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.opts.Path == "" {
		return nil, false, fmt.Errorf("%w: store has no index path", apperrors.ErrIndexUnavailable)
	}

	s.mu.Lock()
	start := time.Now()
	data, err := os.ReadFile(s.opts.Path)
	if err != nil {
		s.mu.Unlock()
		s.opts.Metrics.ObserveReload("failed", 0, time.Time{})
		return nil, false, fmt.Errorf("reading index %s: %w", s.opts.Path, err)
	}

	prev := s.current.Load()
	if prev != nil && prev.Index.Fingerprint == searchindex.Fingerprint(data) {
		s.mu.Unlock()
		s.opts.Metrics.ObserveReload("unchanged", 0, time.Time{})
		s.logger.Debug("search index unchanged", "fingerprint", short(prev.Index.Fingerprint))
		return prev, false, nil
	}

	idx, err := searchindex.Parse(data)
	var snap *Snapshot
	if err == nil {
		snap, err = NewSnapshot(idx, s.opts.Override)
	}
	if err != nil {
		s.mu.Unlock()
		s.opts.Metrics.ObserveReload("failed", 0, time.Time{})
		return nil, false, fmt.Errorf("loading index %s: %w", s.opts.Path, err)
	}
	s.current.Store(snap)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.opts.Metrics.ObserveReload("loaded", idx.Len(), idx.LoadedAt)
	s.logger.Info("search index loaded",
		"documents", idx.Len(),
		"fields", idx.Fields,
		"fingerprint", short(idx.Fingerprint),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, fn := range listeners {
		fn(snap)
	}
	return snap, true, nil
}

// StartReloadLoop re-reads the index every ReloadInterval until ctx is
// cancelled. It does nothing when the interval is not positive.
func (s *Store) StartReloadLoop(ctx context.Context) {
	if s.opts.ReloadInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.ReloadInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("reload loop stopping")
				return
			case <-ticker.C:
				if _, _, err := s.Reload(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("periodic reload failed, keeping previous index", "error", err)
				}
			}
		}
	}()
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

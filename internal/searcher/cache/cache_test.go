package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
)

type memoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string][]byte)}
}

func (m *memoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memoryBackend) DeleteMatching(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func result(query string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:     query,
		TotalHits: 1,
		Results:   []executor.Hit{{Ref: "3", Score: 1.5, Title: "MetaStore"}},
		Tokens:    []string{"metastor"},
	}
}

func TestKey(t *testing.T) {
	plan := parser.Parse("MetaStore", nil)
	k := Key("abc", plan, 10)

	assert.True(t, strings.HasPrefix(k, keyPrefix))
	assert.Equal(t, k, Key("abc", parser.Parse("MetaStore", nil), 10))
	assert.NotEqual(t, k, Key("abd", plan, 10), "fingerprint")
	assert.NotEqual(t, k, Key("abc", plan, 11), "limit")
	assert.NotEqual(t, k, Key("abc", parser.Parse("metastore", nil), 10), "highlight words")
}

func TestQueryCache_GetOrCompute(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	ctx := context.Background()
	var calls int
	compute := func() (*executor.SearchResult, error) {
		calls++
		return result("metastore"), nil
	}

	got, hit, err := c.GetOrCompute(ctx, "search:k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "MetaStore", got.Results[0].Title)

	got, hit, err = c.GetOrCompute(ctx, "search:k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, result("metastore"), got)
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, "50.0%", stats.HitRate)
	assert.Equal(t, "closed", stats.Breaker)
}

func TestQueryCache_ComputeError(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "search:k", func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(context.Background(), "search:k")
	assert.False(t, ok)
}

func TestQueryCache_ConcurrentMissesShareComputation(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), "search:shared", func() (*executor.SearchResult, error) {
				calls.Add(1)
				<-release
				return result("shared"), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "shared", res.Query)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestQueryCache_BackendFailureFallsBack(t *testing.T) {
	backend := newMemoryBackend()
	backend.err = errors.New("connection refused")
	c := New(backend, time.Minute, nil)

	for i := 0; i < 8; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), "search:k", func() (*executor.SearchResult, error) {
			return result("q"), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "q", res.Query)
	}
	stats := c.Stats()
	assert.Equal(t, "open", stats.Breaker)
	assert.Positive(t, stats.Errors)

	assert.Error(t, c.Invalidate(context.Background()))
}

func TestQueryCache_Invalidate(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["other:key"] = []byte("keep")
	c := New(backend, time.Minute, nil)
	c.Set(context.Background(), "search:a", result("a"))
	c.Set(context.Background(), "search:b", result("b"))

	require.NoError(t, c.Invalidate(context.Background()))
	_, ok := c.Get(context.Background(), "search:a")
	assert.False(t, ok)
	assert.Contains(t, backend.data, "other:key")
}

func TestQueryCache_CorruptEntryIsAMiss(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["search:bad"] = []byte("{not json")
	c := New(backend, time.Minute, nil)

	_, ok := c.Get(context.Background(), "search:bad")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

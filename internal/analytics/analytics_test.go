package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, e kafka.Event) error {
	return p.PublishBatch(ctx, []kafka.Event{e})
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func event(query string, hits int, latency int64, cacheHit bool) SearchEvent {
	return SearchEvent{
		Type:      Classify(hits, cacheHit, nil),
		Query:     query,
		TotalHits: hits,
		Returned:  hits,
		LatencyMs: latency,
		CacheHit:  cacheHit,
		Source:    SourceHTTP,
		Timestamp: time.Now().UTC(),
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, EventError, Classify(3, false, errors.New("x")))
	assert.Equal(t, EventZeroResult, Classify(0, true, nil))
	assert.Equal(t, EventCacheHit, Classify(2, true, nil))
	assert.Equal(t, EventCacheMiss, Classify(2, false, nil))
}

func TestCollector_FlushesOnBatchSizeAndClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorOptions{BufferSize: 100, BatchSize: 3, FlushInterval: time.Hour})
	c.Start(context.Background())

	for i := 0; i < 7; i++ {
		c.Track(event(fmt.Sprintf("q%d", i), 1, 5, false))
	}
	assert.Eventually(t, func() bool { return pub.count() >= 6 }, time.Second, 5*time.Millisecond)

	c.Close()
	assert.Equal(t, 7, pub.count())
	assert.Equal(t, "q0", pub.batches[0][0].Key)
	assert.Equal(t, "q0", pub.batches[0][0].Value.(SearchEvent).Query)
}

func TestCollector_FlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorOptions{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	c.Start(context.Background())
	defer c.Close()

	c.Track(event("metastore", 3, 2, false))
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollector_DrainsOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(pub, CollectorOptions{BatchSize: 100, FlushInterval: time.Hour})
	c.Start(ctx)

	c.Track(event("a", 1, 1, false))
	c.Track(event("b", 1, 1, false))
	cancel()
	c.Close()
	assert.Equal(t, 2, pub.count())
}

func TestCollector_PublishFailureIsDropped(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, CollectorOptions{BatchSize: 1, FlushInterval: time.Hour})
	c.Start(context.Background())
	c.Track(event("a", 1, 1, false))
	c.Close()
	assert.Zero(t, pub.count())
}

func TestCollector_DropsWhenBufferFull(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorOptions{BufferSize: 2, BatchSize: 100, FlushInterval: time.Hour})
	// not started: nothing drains the buffer
	for i := 0; i < 5; i++ {
		c.Track(event("q", 1, 1, false))
	}
	assert.Len(t, c.eventCh, 2)
}

func TestAggregator_Stats(t *testing.T) {
	agg := NewAggregator(2)
	agg.Record(event("metastore", 3, 10, false))
	agg.Record(event("metastore", 3, 20, true))
	agg.Record(event("karlsruhe", 2, 30, false))
	agg.Record(event("zzz", 0, 40, false))
	agg.Record(SearchEvent{Type: EventError, Query: "boom", Source: SourceMCP})

	stats := agg.Stats()
	assert.Equal(t, int64(5), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	assert.Equal(t, int64(40), stats.P99LatencyMs)
	assert.Equal(t, []QueryCount{{"metastore", 2}, {"karlsruhe", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"zzz", 1}}, stats.ZeroResultQueries)
	assert.Equal(t, map[string]int64{SourceHTTP: 4, SourceMCP: 1}, stats.BySource)
}

func TestAggregator_LatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator(1)
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Record(event("q", 1, int64(i), false))
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+10), agg.Stats().TotalSearches)
}

func TestAggregator_Restore(t *testing.T) {
	since := time.Now().Add(-time.Hour).UTC()
	agg := NewAggregator(5)
	agg.Restore(AggregatedStats{
		TotalSearches: 10,
		CacheHits:     4,
		TopQueries:    []QueryCount{{"metastore", 7}},
		BySource:      map[string]int64{SourceHTTP: 10},
		Since:         since,
	})
	agg.Record(event("metastore", 3, 1, false))

	stats := agg.Stats()
	assert.Equal(t, int64(11), stats.TotalSearches)
	assert.Equal(t, int64(4), stats.CacheHits)
	assert.Equal(t, []QueryCount{{"metastore", 8}}, stats.TopQueries)
	assert.Equal(t, since, stats.Since)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator(5)
	handle := HandleEvent(agg)

	payload, err := json.Marshal(event("metastore", 3, 4, false))
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("metastore"), payload))
	require.NoError(t, handle(context.Background(), nil, []byte("garbage")))

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestDirectPublisher(t *testing.T) {
	agg := NewAggregator(5)
	pub := &DirectPublisher{Aggregator: agg}
	c := NewCollector(pub, CollectorOptions{BatchSize: 1})
	c.Start(context.Background())
	c.Track(event("coming soon", 3, 1, false))
	c.Close()

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
	assert.Error(t, pub.Publish(context.Background(), kafka.Event{Value: "not an event"}))
}

type fakeHistory struct {
	snapshots []Snapshot
	err       error
	limit     int
}

func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	f.limit = limit
	return f.snapshots, f.err
}

func TestHandler(t *testing.T) {
	agg := NewAggregator(5)
	agg.Record(event("metastore", 3, 4, false))
	history := &fakeHistory{snapshots: []Snapshot{{ID: 7, Stats: AggregatedStats{TotalSearches: 9}}}}
	h := NewHandler(agg, history)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=5000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000, history.limit)
	assert.Contains(t, rec.Body.String(), `"total_searches":9`)
	assert.Contains(t, rec.Body.String(), `"id":7`)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	history.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// Package merger turns the per-document totals of a query into the ranked
// page that is returned to the caller.
package merger

import (
	"container/heap"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

// Before reports whether a ranks ahead of b: higher score first, then the
// lower ref.
func Before(a, b ranker.ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return searchindex.LessRef(a.Ref, b.Ref)
}

func compare(a, b ranker.ScoredDoc) int {
	switch {
	case Before(a, b):
		return -1
	case Before(b, a):
		return 1
	}
	return 0
}

// TopK returns the limit best documents of scores in rank order. limit <= 0
// returns every document.
func TopK(scores map[string]float64, limit int) []ranker.ScoredDoc {
	if limit <= 0 || limit > len(scores) {
		limit = len(scores)
	}
	if limit == 0 {
		return []ranker.ScoredDoc{}
	}

	// Small pages over many candidates keep a bounded heap; otherwise a
	// full sort is cheaper.
	if limit*4 < len(scores) {
		return boundedTopK(scores, limit)
	}
	docs := make([]ranker.ScoredDoc, 0, len(scores))
	for ref, score := range scores {
		docs = append(docs, ranker.ScoredDoc{Ref: ref, Score: score})
	}
	slices.SortFunc(docs, compare)
	return docs[:limit]
}

func boundedTopK(scores map[string]float64, limit int) []ranker.ScoredDoc {
	h := make(worstFirst, 0, limit+1)
	for ref, score := range scores {
		d := ranker.ScoredDoc{Ref: ref, Score: score}
		if len(h) == limit {
			if !Before(d, h[0]) {
				continue
			}
			h[0] = d
			heap.Fix(&h, 0)
			continue
		}
		heap.Push(&h, d)
	}
	out := make([]ranker.ScoredDoc, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(ranker.ScoredDoc)
	}
	return out
}

// worstFirst keeps the lowest-ranked kept document at the root.
type worstFirst []ranker.ScoredDoc

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return Before(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(ranker.ScoredDoc)) }
func (h *worstFirst) Pop() any {
	old := *h
	d := old[len(old)-1]
	*h = old[:len(old)-1]
	return d
}

package benchmark

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/teaser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
)

const fixture = "../../internal/searchindex/testdata/searchindex.js"

func loadSnapshot(b *testing.B) *indexstore.Snapshot {
	b.Helper()
	idx, err := searchindex.LoadFile(fixture)
	if err != nil {
		b.Fatal(err)
	}
	snap, err := indexstore.NewSnapshot(idx, nil)
	if err != nil {
		b.Fatal(err)
	}
	return snap
}

var queries = []struct {
	name  string
	query string
}{
	{"single", "metastore"},
	{"prefix", "meta"},
	{"two_words", "coming soon"},
	{"mixed_case", "MetaStore schema"},
	{"no_match", "zzzzzz"},
}

// BenchmarkQueryParse measures running queries through the index pipeline.
func BenchmarkQueryParse(b *testing.B) {
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				plan := parser.Parse(q.query, nil)
				_ = plan
			}
		})
	}
}

// BenchmarkScoreField measures scoring the body field with and without
// prefix expansion.
func BenchmarkScoreField(b *testing.B) {
	snap := loadSnapshot(b)
	plan := parser.Parse("meta", snap.Pipeline)
	for _, expand := range []bool{false, true} {
		fc := searchindex.FieldConfig{Name: "body", Boost: 1, Bool: searchindex.BoolOR, Expand: expand}
		b.Run(fmt.Sprintf("expand_%v", expand), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				scores := ranker.ScoreField(snap.Index, plan.Tokens, fc)
				_ = scores
			}
		})
	}
}

// BenchmarkTopK measures result selection for different candidate counts.
func BenchmarkTopK(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		scores := make(map[string]float64, n)
		for i := 0; i < n; i++ {
			scores[fmt.Sprint(i)] = float64((i*7919)%n) / float64(n)
		}
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				top := merger.TopK(scores, 30)
				_ = top
			}
		})
	}
}

// BenchmarkTeaser measures teaser extraction over a long body.
func BenchmarkTeaser(b *testing.B) {
	body := sampleTexts["long"]
	words := []string{"prefix", "trie"}
	b.ReportAllocs()
	b.SetBytes(int64(len(body)))
	for i := 0; i < b.N; i++ {
		_ = teaser.Make(body, words, 30)
	}
}

// BenchmarkExecutor measures a full search against the fixture book.
func BenchmarkExecutor(b *testing.B) {
	exec := executor.New(indexstore.NewStatic(loadSnapshot(b)), 0)
	ctx := context.Background()
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Search(ctx, q.query, 30); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkParseIndex measures decoding searchindex.js.
func BenchmarkParseIndex(b *testing.B) {
	data, err := os.ReadFile(fixture)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		if _, err := searchindex.Parse(data); err != nil {
			b.Fatal(err)
		}
	}
}

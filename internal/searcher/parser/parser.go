// Package parser turns raw query text into a QueryPlan: the normalised
// tokens looked up in the field tries and the raw words used for highlighting.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/pipeline"
)

// QueryPlan is a parsed query.
type QueryPlan struct {
	RawQuery string
	// Tokens are the query terms after the index pipeline, in query order.
	// Duplicates are kept; they count towards the coordination norm.
	Tokens []string
	// Words are the whitespace-separated words of the trimmed query as typed,
	// used for teasers and the highlight URL parameter.
	Words []string
}

// Empty reports whether the plan has nothing to look up.
func (p *QueryPlan) Empty() bool {
	return len(p.Tokens) == 0
}

// Parse tokenizes query and runs it through p. A nil pipeline uses the
// default trimmer, stopWordFilter, stemmer chain.
func Parse(query string, p *pipeline.Pipeline) *QueryPlan {
	if p == nil {
		p = pipeline.Default()
	}
	plan := &QueryPlan{
		RawQuery: query,
		Tokens:   make([]string, 0),
		Words:    make([]string, 0),
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return plan
	}
	plan.Tokens = p.Process(trimmed)
	for _, w := range strings.Split(trimmed, " ") {
		if w != "" {
			plan.Words = append(plan.Words, w)
		}
	}
	return plan
}

// Normalize returns the cache identity of a plan: its tokens, which fix the
// scores, plus the raw words, which shape teasers and highlight URLs.
func Normalize(plan *QueryPlan) string {
	return strings.Join(plan.Tokens, " ") + "|" + strings.Join(plan.Words, " ")
}

// Package ranker scores documents against query tokens the way elasticlunr
// does: per-field tf-idf with a field-length norm, a penalty for expanded
// (prefix) matches, boolean combination across tokens and a coordination
// norm, then a boost-weighted sum across fields.
package ranker

import (
	"math"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
)

// expandPenalty scales the score of a term reached by prefix expansion.
const expandPenalty = 0.15

// ScoredDoc is a document ref with its combined score.
type ScoredDoc struct {
	Ref   string  `json:"ref"`
	Score float64 `json:"score"`
}

// FieldScores maps document refs to their score within one field.
type FieldScores map[string]float64

// IDF returns 1 + ln(n / (df + 1)). An empty collection yields 1 so scores
// stay finite.
func IDF(n, df int) float64 {
	if n <= 0 {
		return 1
	}
	return 1 + math.Log(float64(n)/float64(df+1))
}

// ScoreField scores tokens against one field's trie. The boost of fc is not
// applied here. A field with boost 0 is skipped and yields nil.
func ScoreField(idx *searchindex.Index, tokens []string, fc searchindex.FieldConfig) FieldScores {
	if fc.Boost == 0 || len(tokens) == 0 {
		return nil
	}
	root := idx.Tree(fc.Name)
	if root == nil {
		return nil
	}
	and := fc.Bool == searchindex.BoolAND
	n := idx.Len()

	var scores FieldScores
	exactHits := make(map[string]int)

	for _, token := range tokens {
		// An empty token matches nothing and is never expanded, but it still
		// counts as a query term.
		if token == "" {
			scores = merge(scores, FieldScores{}, and)
			continue
		}
		keys := []string{token}
		if fc.Expand {
			keys = root.Expand(token)
		}

		tokenScores := make(FieldScores)
		for _, key := range keys {
			node := root.Lookup(key)
			if node == nil {
				continue
			}
			docs := node.Docs
			idf := IDF(n, node.DF)

			exact := key == token
			penalty := 1.0
			if !exact {
				kl := float64(utf8.RuneCountInString(key))
				tl := float64(utf8.RuneCountInString(token))
				penalty = (1 - (kl-tl)/kl) * expandPenalty
			}

			for ref, posting := range docs {
				if and && scores != nil {
					if _, ok := scores[ref]; !ok {
						continue
					}
				}
				if exact {
					exactHits[ref]++
				}
				tokenScores[ref] += posting.TF * idf * lengthNorm(idx.FieldLength(ref, fc.Name)) * penalty
			}
		}
		scores = merge(scores, tokenScores, and)
	}

	for ref, hits := range exactHits {
		if s, ok := scores[ref]; ok {
			scores[ref] = s * float64(hits) / float64(len(tokens))
		}
	}
	return scores
}

// Combine multiplies each field's scores by its boost and sums them per
// document. fields and perField are parallel slices.
func Combine(fields []searchindex.FieldConfig, perField []FieldScores) map[string]float64 {
	total := make(map[string]float64)
	for i, fc := range fields {
		if i >= len(perField) {
			break
		}
		for ref, s := range perField[i] {
			total[ref] += s * fc.Boost
		}
	}
	return total
}

func lengthNorm(fieldLength int) float64 {
	if fieldLength == 0 {
		return 1
	}
	return 1 / math.Sqrt(float64(fieldLength))
}

// merge folds one token's scores into the field accumulator. The first token
// seeds it; afterwards OR takes the union and AND the intersection, summing
// scores either way.
func merge(acc, next FieldScores, and bool) FieldScores {
	if acc == nil {
		return next
	}
	if and {
		out := make(FieldScores, len(acc))
		for ref, s := range next {
			if prev, ok := acc[ref]; ok {
				out[ref] = prev + s
			}
		}
		return out
	}
	for ref, s := range next {
		acc[ref] += s
	}
	return acc
}

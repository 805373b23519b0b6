// Package teaser cuts the excerpt shown under a search hit: a fixed-size
// window of words chosen to cover the most query matches, with matches
// wrapped in <em>.
package teaser

import (
	"html"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/pipeline"
)

const (
	weightMatch         = 40
	weightSentenceStart = 8
	weightWord          = 2
)

type weightedWord struct {
	word   string
	weight int
	offset int
}

// Make returns the teaser for body given the raw query words. wordCount is
// the window size in words. The result is HTML: body text is escaped and
// matched words are wrapped in <em></em>. A body without words is returned
// escaped in full.
func Make(body string, searchWords []string, wordCount int) string {
	stems := make([]string, 0, len(searchWords))
	for _, w := range searchWords {
		if s := pipeline.Stem(strings.ToLower(w)); s != "" {
			stems = append(stems, s)
		}
	}

	weighted, found := weigh(body, stems)
	if len(weighted) == 0 {
		return html.EscapeString(body)
	}

	size := len(weighted)
	if wordCount > 0 && wordCount < size {
		size = wordCount
	}
	start := 0
	if found {
		start = bestWindow(weighted, size)
	}

	var sb strings.Builder
	pos := weighted[start].offset
	for _, w := range weighted[start : start+size] {
		if pos < w.offset {
			sb.WriteString(html.EscapeString(body[pos:w.offset]))
		}
		end := w.offset + len(w.word)
		text := html.EscapeString(body[w.offset:end])
		if w.weight == weightMatch {
			sb.WriteString("<em>")
			sb.WriteString(text)
			sb.WriteString("</em>")
		} else {
			sb.WriteString(text)
		}
		pos = end
	}
	return sb.String()
}

// weigh splits body into sentences on ". " and words on " ", and weights
// every non-empty word. Offsets index into body.
func weigh(body string, stems []string) ([]weightedWord, bool) {
	var (
		out    []weightedWord
		found  bool
		offset int
	)
	for _, sentence := range strings.Split(body, ". ") {
		weight := weightSentenceStart
		for _, word := range strings.Split(sentence, " ") {
			if word != "" {
				if matches(word, stems) {
					weight = weightMatch
					found = true
				}
				out = append(out, weightedWord{word: word, weight: weight, offset: offset})
				weight = weightWord
			}
			offset += len(word) + 1
		}
		offset++
	}
	return out, found
}

func matches(word string, stems []string) bool {
	if len(stems) == 0 {
		return false
	}
	stemmed := pipeline.Stem(strings.ToLower(word))
	for _, s := range stems {
		if strings.HasPrefix(stemmed, s) {
			return true
		}
	}
	return false
}

// bestWindow returns the start of the size-word window with the highest
// weight sum. Among equal sums the last window wins.
func bestWindow(words []weightedWord, size int) int {
	sums := make([]int, 0, len(words)-size+1)
	sum := 0
	for _, w := range words[:size] {
		sum += w.weight
	}
	sums = append(sums, sum)
	for i := 0; i < len(words)-size; i++ {
		sum += words[i+size].weight - words[i].weight
		sums = append(sums, sum)
	}

	best, bestSum := 0, 0
	for i := len(sums) - 1; i >= 0; i-- {
		if sums[i] > bestSum {
			bestSum = sums[i]
			best = i
		}
	}
	return best
}

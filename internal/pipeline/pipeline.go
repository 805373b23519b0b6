// Package pipeline reproduces the text processing an elasticlunr index
// records in its "pipeline" key, so query text is normalised the same way
// the indexed text was. It lower-cases and splits input, then runs the named
// stages (trimmer, stopWordFilter, stemmer) over each token.
package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// ErrUnregisteredFunction is returned by New for a stage name it does not
// know.
var ErrUnregisteredFunction = errors.New("unregistered pipeline function")

// Func transforms one token. ok is false when the stage removes the token;
// a token emptied with ok still true stays in the output.
type Func func(token string) (out string, ok bool)

var (
	separator     = regexp.MustCompile(`[\s\-]+`)
	leadingNonWd  = regexp.MustCompile(`^\W+`)
	trailingNonWd = regexp.MustCompile(`\W+$`)
)

var registry = map[string]Func{
	"trimmer": keep(Trim),
	"stopWordFilter": func(token string) (string, bool) {
		out := FilterStopWord(token)
		return out, out != ""
	},
	"stemmer": keep(Stem),
}

// keep adapts a transform that never removes tokens.
func keep(fn func(string) string) Func {
	return func(token string) (string, bool) { return fn(token), true }
}

// Tokenize trims and lower-cases text and splits it on runs of whitespace
// and hyphens. Empty pieces are dropped.
func Tokenize(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	parts := separator.Split(text, -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Trim strips leading and trailing non-word characters.
func Trim(token string) string {
	token = leadingNonWd.ReplaceAllString(token, "")
	return trailingNonWd.ReplaceAllString(token, "")
}

// FilterStopWord drops stop words and empty tokens.
func FilterStopWord(token string) string {
	if token == "" || IsStopWord(token) {
		return ""
	}
	return token
}

// Stem reduces token to its Porter stem.
func Stem(token string) string {
	if token == "" {
		return ""
	}
	return porterstemmer.StemString(token)
}

// Pipeline is an ordered list of token stages.
type Pipeline struct {
	names  []string
	stages []Func
}

// New builds a pipeline from stage names as recorded in an index.
func New(names []string) (*Pipeline, error) {
	p := &Pipeline{
		names:  make([]string, 0, len(names)),
		stages: make([]Func, 0, len(names)),
	}
	for _, name := range names {
		fn, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnregisteredFunction, name)
		}
		p.names = append(p.names, name)
		p.stages = append(p.stages, fn)
	}
	return p, nil
}

// Default returns the trimmer, stopWordFilter, stemmer pipeline mdBook
// writes into every index.
func Default() *Pipeline {
	p, _ := New([]string{"trimmer", "stopWordFilter", "stemmer"})
	return p
}

// Names returns the stage names in order.
func (p *Pipeline) Names() []string {
	return append([]string(nil), p.names...)
}

// Run passes every token through the stages in order. A token a stage
// removes skips the remaining stages and is dropped. A token that is only
// emptied, as the trimmer does to "---", runs on and is kept; without a
// stopWordFilter it reaches the output as "".
func (p *Pipeline) Run(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		kept := true
		for _, stage := range p.stages {
			if tok, kept = stage(tok); !kept {
				break
			}
		}
		if kept {
			out = append(out, tok)
		}
	}
	return out
}

// Process tokenizes text and runs the pipeline over the result.
func (p *Pipeline) Process(text string) []string {
	return p.Run(Tokenize(text))
}

// Package searchindex models the prebuilt elasticlunr index that mdBook
// emits as searchindex.js. The index is read-only once parsed; nothing in
// this package adds, removes or rescores postings.
package searchindex

import (
	"sort"
	"strconv"
	"time"
)

// Document is one entry of the document store.
type Document struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Breadcrumbs string            `json:"breadcrumbs"`
	Fields      map[string]string `json:"-"`
}

// Field returns the stored text of the named field.
func (d *Document) Field(name string) string {
	switch name {
	case "title":
		return d.Title
	case "body":
		return d.Body
	case "breadcrumbs":
		return d.Breadcrumbs
	}
	return d.Fields[name]
}

// ResultsOptions controls how many results a search widget shows and how
// long teasers are.
type ResultsOptions struct {
	LimitResults    int `json:"limit_results"`
	TeaserWordCount int `json:"teaser_word_count"`
}

// Index is a parsed search index. Build one with Parse or LoadFile.
type Index struct {
	Version        string
	Lang           string
	Ref            string
	Fields         []string
	Pipeline       []string
	DocURLs        []string
	SearchOptions  SearchOptions
	ResultsOptions ResultsOptions
	Fingerprint    string
	LoadedAt       time.Time

	docs    map[string]*Document
	docInfo map[string]map[string]int
	length  int
	trees   map[string]*Node
}

// Len returns the number of documents, the N in idf.
func (idx *Index) Len() int { return idx.length }

// Tree returns the root of the named field's trie, or nil.
func (idx *Index) Tree(field string) *Node { return idx.trees[field] }

// Document returns the stored document for ref.
func (idx *Index) Document(ref string) (*Document, bool) {
	d, ok := idx.docs[ref]
	return d, ok
}

// Refs returns every document ref in ascending order.
func (idx *Index) Refs() []string {
	refs := make([]string, 0, len(idx.docs))
	for ref := range idx.docs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return LessRef(refs[i], refs[j]) })
	return refs
}

// FieldLength returns the token count of field in ref's document.
func (idx *Index) FieldLength(ref, field string) int {
	return idx.docInfo[ref][field]
}

// DocURL returns the page URL recorded for ref, including its anchor.
func (idx *Index) DocURL(ref string) (string, bool) {
	i, err := strconv.Atoi(ref)
	if err != nil || i < 0 || i >= len(idx.DocURLs) {
		return "", false
	}
	return idx.DocURLs[i], true
}

// TermStat is an indexed term with its document frequency.
type TermStat struct {
	Term string `json:"term"`
	DF   int    `json:"df"`
}

// Terms lists up to limit indexed terms of field that start with prefix.
// An empty prefix lists the whole field; limit <= 0 means no limit.
func (idx *Index) Terms(field, prefix string, limit int) []TermStat {
	root := idx.trees[field]
	if root == nil {
		return nil
	}
	start := root
	if prefix != "" {
		start = root.Lookup(prefix)
		if start == nil {
			return nil
		}
	}
	var out []TermStat
	start.walk(prefix, func(term string, n *Node) bool {
		out = append(out, TermStat{Term: term, DF: n.DF})
		return limit <= 0 || len(out) < limit
	})
	return out
}

// LessRef orders refs numerically when both are integers and lexically
// otherwise.
func LessRef(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

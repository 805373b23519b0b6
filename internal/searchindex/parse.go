package searchindex

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Defaults used when the file carries no results_options block.
const (
	DefaultLimitResults    = 30
	DefaultTeaserWordCount = 30
)

var jsPrefixes = [][]byte{
	[]byte("Object.assign(window.search,"),
	[]byte("window.search ="),
	[]byte("window.search="),
}

type rawFile struct {
	DocURLs        []string        `json:"doc_urls"`
	Index          *rawIndex       `json:"index"`
	ResultsOptions *ResultsOptions `json:"results_options"`
	SearchOptions  *SearchOptions  `json:"search_options"`
}

type rawIndex struct {
	DocumentStore rawDocumentStore        `json:"documentStore"`
	Fields        []string                `json:"fields"`
	Index         map[string]rawFieldTree `json:"index"`
	Lang          string                  `json:"lang"`
	Pipeline      []string                `json:"pipeline"`
	Ref           string                  `json:"ref"`
	Version       string                  `json:"version"`
}

type rawDocumentStore struct {
	DocInfo map[string]map[string]int `json:"docInfo"`
	Docs    map[string]map[string]any `json:"docs"`
	Length  *int                      `json:"length"`
	Save    bool                      `json:"save"`
}

type rawFieldTree struct {
	Root *Node `json:"root"`
}

// Fingerprint returns the hex sha256 of raw index bytes. Parse records it on
// the Index so callers can tell whether a file changed without parsing it.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LoadFile reads and parses the index at path.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}
	idx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing index %s: %w", path, err)
	}
	return idx, nil
}

// Parse decodes an index from either the searchindex.js wrapper or the bare
// JSON object. Every decoding or consistency failure wraps
// apperrors.ErrMalformedIndex.
func Parse(data []byte) (*Index, error) {
	payload, err := unwrap(data)
	if err != nil {
		return nil, err
	}

	var raw rawFile
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedIndex, err)
	}
	if raw.Index == nil {
		return nil, fmt.Errorf("%w: missing index object", apperrors.ErrMalformedIndex)
	}

	idx := &Index{
		Version:     raw.Index.Version,
		Lang:        raw.Index.Lang,
		Ref:         raw.Index.Ref,
		Fields:      raw.Index.Fields,
		Pipeline:    raw.Index.Pipeline,
		DocURLs:     raw.DocURLs,
		Fingerprint: Fingerprint(data),
		LoadedAt:    time.Now().UTC(),
		docInfo:     raw.Index.DocumentStore.DocInfo,
		length:      documentCount(raw.Index.DocumentStore),
		trees:       make(map[string]*Node, len(raw.Index.Index)),
		docs:        make(map[string]*Document, len(raw.Index.DocumentStore.Docs)),
	}
	if raw.SearchOptions != nil {
		idx.SearchOptions = *raw.SearchOptions
	}
	idx.ResultsOptions = ResultsOptions{
		LimitResults:    DefaultLimitResults,
		TeaserWordCount: DefaultTeaserWordCount,
	}
	if ro := raw.ResultsOptions; ro != nil {
		if ro.LimitResults > 0 {
			idx.ResultsOptions.LimitResults = ro.LimitResults
		}
		if ro.TeaserWordCount > 0 {
			idx.ResultsOptions.TeaserWordCount = ro.TeaserWordCount
		}
	}

	for field, tree := range raw.Index.Index {
		if tree.Root == nil {
			return nil, fmt.Errorf("%w: field %q has no root", apperrors.ErrMalformedIndex, field)
		}
		idx.trees[field] = tree.Root
	}
	for ref, fields := range raw.Index.DocumentStore.Docs {
		idx.docs[ref] = newDocument(ref, fields)
	}

	if err := idx.validate(raw.Index.DocumentStore.Save); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) validate(saved bool) error {
	if idx.Ref == "" {
		return fmt.Errorf("%w: ref is not set", apperrors.ErrMalformedIndex)
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("%w: no fields", apperrors.ErrMalformedIndex)
	}
	for _, f := range idx.Fields {
		if idx.trees[f] == nil {
			return fmt.Errorf("%w: field %q has no tree", apperrors.ErrMalformedIndex, f)
		}
	}
	if idx.length < 0 {
		return fmt.Errorf("%w: negative document count", apperrors.ErrMalformedIndex)
	}
	if idx.length == 0 && len(idx.docInfo) > 0 {
		return fmt.Errorf("%w: length is 0 but docInfo holds %d docs",
			apperrors.ErrMalformedIndex, len(idx.docInfo))
	}
	if saved && len(idx.docs) != idx.length {
		return fmt.Errorf("%w: document store holds %d docs, length says %d",
			apperrors.ErrMalformedIndex, len(idx.docs), idx.length)
	}
	return nil
}

// documentCount returns the recorded document count. Older or hand-written
// indexes may omit length; docInfo has an entry per document whether or not
// the document bodies were saved, so it stands in.
func documentCount(ds rawDocumentStore) int {
	if ds.Length != nil {
		return *ds.Length
	}
	return max(len(ds.DocInfo), len(ds.Docs))
}

func unwrap(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	for _, p := range jsPrefixes {
		if bytes.HasPrefix(trimmed, p) {
			trimmed = bytes.TrimSpace(trimmed[len(p):])
			trimmed = bytes.TrimSuffix(trimmed, []byte(";"))
			trimmed = bytes.TrimSpace(trimmed)
			if p[len(p)-1] == ',' {
				trimmed = bytes.TrimSuffix(trimmed, []byte(")"))
			}
			break
		}
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object or searchindex.js wrapper", apperrors.ErrMalformedIndex)
	}
	return trimmed, nil
}

func newDocument(ref string, fields map[string]any) *Document {
	doc := &Document{ID: ref}
	for name, v := range fields {
		s := stringify(v)
		switch name {
		case "id":
			if s != "" {
				doc.ID = s
			}
		case "title":
			doc.Title = s
		case "body":
			doc.Body = s
		case "breadcrumbs":
			doc.Breadcrumbs = s
		default:
			if doc.Fields == nil {
				doc.Fields = make(map[string]string)
			}
			doc.Fields[name] = s
		}
	}
	return doc
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

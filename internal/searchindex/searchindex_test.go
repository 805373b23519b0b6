package searchindex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const fixturePath = "testdata/searchindex.js"

func loadFixture(t *testing.T) *Index {
	t.Helper()
	idx, err := LoadFile(fixturePath)
	require.NoError(t, err)
	return idx
}

const tinyIndex = `{
  "doc_urls": ["a.html#one", "b.html#two"],
  "index": {
    "documentStore": {
      "docInfo": {"0": {"body": 3}, "1": {"body": 0}},
      "docs": {"0": {"body": "Go go gopher", "id": "0"}, "1": {"body": "", "id": "1"}},
      "length": 2,
      "save": true
    },
    "fields": ["body"],
    "index": {"body": {"root": {"df": 0, "docs": {},
      "g": {"df": 0, "docs": {},
        "o": {"df": 1, "docs": {"0": {"tf": 1.4142135623730951}},
          "p": {"df": 0, "docs": {}, "h": {"df": 0, "docs": {}, "e": {"df": 0, "docs": {},
            "r": {"df": 1, "docs": {"0": {"tf": 1.0}}}}}}}}}}},
    "lang": "English",
    "pipeline": ["trimmer", "stopWordFilter", "stemmer"],
    "ref": "id",
    "version": "0.9.5"
  }
}`

func TestLoadFile_JavaScriptWrapper(t *testing.T) {
	idx := loadFixture(t)

	assert.Equal(t, "0.9.5", idx.Version)
	assert.Equal(t, "English", idx.Lang)
	assert.Equal(t, "id", idx.Ref)
	assert.Equal(t, []string{"title", "body", "breadcrumbs"}, idx.Fields)
	assert.Equal(t, []string{"trimmer", "stopWordFilter", "stemmer"}, idx.Pipeline)
	assert.Equal(t, 6, idx.Len())
	assert.Equal(t, ResultsOptions{LimitResults: 30, TeaserWordCount: 30}, idx.ResultsOptions)
	assert.Equal(t, "OR", idx.SearchOptions.Bool)
	assert.True(t, idx.SearchOptions.Expand)
	require.NotNil(t, idx.SearchOptions.Fields["title"].Boost)
	assert.Equal(t, 2.0, *idx.SearchOptions.Fields["title"].Boost)
	assert.Len(t, idx.Fingerprint, 64)
}

func TestParse_BareJSON(t *testing.T) {
	idx, err := Parse([]byte(tinyIndex))
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	// no results_options block in the file
	assert.Equal(t, DefaultLimitResults, idx.ResultsOptions.LimitResults)
	assert.Equal(t, DefaultTeaserWordCount, idx.ResultsOptions.TeaserWordCount)
}

func TestParse_MissingLength(t *testing.T) {
	noLength := strings.Replace(tinyIndex, `"length": 2,`, "", 1)
	require.NotEqual(t, tinyIndex, noLength)

	idx, err := Parse([]byte(noLength))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	// bodies not saved: docInfo still counts every document
	unsaved := strings.Replace(noLength, `"save": true`, `"save": false`, 1)
	unsaved = strings.Replace(unsaved,
		`"docs": {"0": {"body": "Go go gopher", "id": "0"}, "1": {"body": "", "id": "1"}},`, "", 1)
	idx, err = Parse([]byte(unsaved))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	zero := strings.Replace(tinyIndex, `"length": 2,`, `"length": 0,`, 1)
	_, err = Parse([]byte(strings.Replace(zero, `"save": true`, `"save": false`, 1)))
	assert.ErrorIs(t, err, apperrors.ErrMalformedIndex)
}

func TestParse_AssignmentWrapper(t *testing.T) {
	idx, err := Parse([]byte("window.search = " + tinyIndex + ";\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
}

func TestParse_FingerprintTracksContent(t *testing.T) {
	a, err := Parse([]byte(tinyIndex))
	require.NoError(t, err)
	b, err := Parse([]byte(tinyIndex))
	require.NoError(t, err)
	c, err := Parse([]byte(tinyIndex + "\n"))
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "console.log('hi')"},
		{"truncated", `Object.assign(window.search, {"index": {"fields": [`},
		{"no index", `{"doc_urls": []}`},
		{"no ref", `{"index": {"fields": ["body"], "index": {"body": {"root": {"df": 0, "docs": {}}}}}}`},
		{"no fields", `{"index": {"ref": "id", "fields": []}}`},
		{"missing tree", `{"index": {"ref": "id", "fields": ["body"], "index": {}}}`},
		{"multi-char edge", `{"index": {"ref": "id", "fields": ["body"], "index": {"body": {"root": {"df": 0, "docs": {}, "ab": {"df": 0, "docs": {}}}}}}}`},
		{"length mismatch", `{"index": {"ref": "id", "fields": ["body"], "documentStore": {"docs": {"0": {"id": "0"}}, "length": 3, "save": true}, "index": {"body": {"root": {"df": 0, "docs": {}}}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedIndex)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "searchindex.js"))
	assert.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNode_Lookup(t *testing.T) {
	idx := loadFixture(t)
	body := idx.Tree("body")
	require.NotNil(t, body)

	node := body.Lookup("come")
	require.NotNil(t, node)
	assert.Equal(t, 3, node.DF)
	assert.Len(t, node.Docs, 3)

	// interior node: a path exists but no term ends here
	inner := body.Lookup("com")
	require.NotNil(t, inner)
	assert.Zero(t, inner.DF)
	assert.Empty(t, inner.Docs)

	assert.Nil(t, body.Lookup("zebra"))
	assert.Nil(t, body.Lookup(""))
	assert.Nil(t, idx.Tree("nope"))
}

func TestNode_Expand(t *testing.T) {
	idx := loadFixture(t)
	crumbs := idx.Tree("breadcrumbs")

	assert.Equal(t, []string{"metadata", "metadata/schema", "metastor"}, crumbs.Expand("meta"))
	assert.Equal(t, []string{"metastor"}, crumbs.Expand("metastor"))
	assert.Equal(t, []string{"upat"}, crumbs.Expand("upa"))
	assert.Nil(t, crumbs.Expand("xyz"))
	assert.Nil(t, crumbs.Expand(""))
}

func TestNode_Frequencies(t *testing.T) {
	idx := loadFixture(t)
	crumbs := idx.Tree("breadcrumbs")

	assert.Equal(t, 3, crumbs.DocFreq("metastor"))
	assert.Equal(t, 0, crumbs.DocFreq("metast"))
	assert.InDelta(t, 1.7320508075688772, crumbs.TermFrequency("metastor", "4"), 1e-12)
	assert.Zero(t, crumbs.TermFrequency("metastor", "0"))

	docs := crumbs.DocsFor("manag")
	assert.ElementsMatch(t, []string{"1", "4", "5"}, keys(docs))
	assert.Nil(t, crumbs.DocsFor("missing"))
}

func TestIndex_Documents(t *testing.T) {
	idx := loadFixture(t)

	doc, ok := idx.Document("5")
	require.True(t, ok)
	assert.Equal(t, "5", doc.ID)
	assert.Equal(t, "MetaStore", doc.Title)
	assert.Equal(t, "Coming soon!", doc.Body)
	assert.Equal(t, "MetaStore » Metadata Management » MetaStore", doc.Breadcrumbs)
	assert.Equal(t, doc.Title, doc.Field("title"))

	_, ok = idx.Document("42")
	assert.False(t, ok)

	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5"}, idx.Refs())
	assert.Equal(t, 20, idx.FieldLength("0", "body"))
	assert.Equal(t, 4, idx.FieldLength("5", "breadcrumbs"))
	assert.Zero(t, idx.FieldLength("0", "title"))
}

func TestIndex_DocURL(t *testing.T) {
	idx := loadFixture(t)

	u, ok := idx.DocURL("1")
	require.True(t, ok)
	assert.Equal(t, "about.html#target-audience", u)

	for _, ref := range []string{"6", "-1", "abc"} {
		_, ok := idx.DocURL(ref)
		assert.False(t, ok, ref)
	}
}

func TestIndex_Terms(t *testing.T) {
	idx := loadFixture(t)

	assert.Equal(t, []TermStat{
		{Term: "audienc", DF: 1},
		{Term: "metastor", DF: 3},
		{Term: "target", DF: 1},
	}, idx.Terms("title", "", 0))

	assert.Equal(t, []TermStat{{Term: "manag", DF: 3}}, idx.Terms("breadcrumbs", "man", 0))
	assert.Len(t, idx.Terms("body", "", 5), 5)
	assert.Nil(t, idx.Terms("body", "qq", 0))
	assert.Nil(t, idx.Terms("nope", "", 0))
}

func TestLessRef(t *testing.T) {
	assert.True(t, LessRef("2", "10"))
	assert.False(t, LessRef("10", "2"))
	assert.True(t, LessRef("a", "b"))
	assert.True(t, LessRef("10", "a"))
}

func keys(m map[string]Posting) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

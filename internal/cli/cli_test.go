package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
)

const fixture = "../searchindex/testdata/searchindex.js"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuery_Text(t *testing.T) {
	out, err := run(t, "query", fixture, "target", "audience")
	require.NoError(t, err)
	assert.Contains(t, out, `results for "target audience"`)
	assert.Contains(t, out, "[1] About » Target audience")
	assert.Contains(t, out, "about.html?highlight=target%20audience#target-audience")
}

func TestQuery_JSON(t *testing.T) {
	out, err := run(t, "query", fixture, "metastore", "--json", "-n", "2")
	require.NoError(t, err)

	var result executor.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.TotalHits)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "3", result.Results[0].Ref)
	assert.InDelta(t, 5.526080307955995, result.Results[0].Score, 1e-9)
}

func TestQuery_OptionOverrides(t *testing.T) {
	out, err := run(t, "query", fixture, "metastore", "schema", "--bool", "and", "--expand=false", "--json")
	require.NoError(t, err)

	var result executor.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Results, 1)
	assert.Equal(t, "4", result.Results[0].Ref)
	assert.InDelta(t, 2.266474632088368, result.Results[0].Score, 1e-9)

	_, err = run(t, "query", fixture, "meta", "--bool", "XOR")
	assert.ErrorContains(t, err, "--bool must be OR or AND")
}

func TestQuery_NoResults(t *testing.T) {
	out, err := run(t, "query", fixture, "zzzz")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestQuery_Args(t *testing.T) {
	_, err := run(t, "query", fixture)
	assert.Error(t, err)

	_, err = run(t, "query", "missing.js", "meta")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "documents:   6")
	assert.Contains(t, out, "fields:      title, body, breadcrumbs")
	assert.Contains(t, out, "pipeline:    trimmer, stopWordFilter, stemmer")

	out, err = run(t, "inspect", fixture, "--json")
	require.NoError(t, err)
	var summary service.IndexSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 6, summary.Documents)
}

func TestTerms(t *testing.T) {
	out, err := run(t, "terms", fixture, "body", "metastor")
	require.NoError(t, err)
	assert.Contains(t, out, "metastor")

	out, err = run(t, "terms", fixture, "body", "zzz")
	require.NoError(t, err)
	assert.Contains(t, out, "No terms found.")

	_, err = run(t, "terms", fixture, "nosuchfield")
	assert.ErrorContains(t, err, `no field "nosuchfield"`)
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"query", "inspect", "terms", "mcp"})

	flag := root.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "warn", flag.DefValue)
}

package ranker

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
)

const delta = 1e-9

func fixture(t *testing.T) *searchindex.Index {
	t.Helper()
	idx, err := searchindex.LoadFile("../../searchindex/testdata/searchindex.js")
	require.NoError(t, err)
	return idx
}

func field(name, mode string, expand bool) searchindex.FieldConfig {
	return searchindex.FieldConfig{Name: name, Boost: 1, Bool: mode, Expand: expand}
}

func TestIDF(t *testing.T) {
	assert.InDelta(t, 1+math.Log(6.0/4.0), IDF(6, 3), delta)
	assert.InDelta(t, 1+math.Log(3), IDF(6, 1), delta)
	assert.Equal(t, 1.0, IDF(0, 2))
}

func TestScoreField_ExactTerm(t *testing.T) {
	idx := fixture(t)
	scores := ScoreField(idx, []string{"metastor"}, field("breadcrumbs", searchindex.BoolOR, false))

	assert.Len(t, scores, 3)
	assert.InDelta(t, 1.7213361830752993, scores["3"], delta)
	assert.InDelta(t, 1.2171684877543127, scores["4"], delta)
	assert.InDelta(t, 1.2171684877543127, scores["5"], delta)
}

func TestScoreField_ExpansionPenalty(t *testing.T) {
	idx := fixture(t)
	scores := ScoreField(idx, []string{"meta"}, field("breadcrumbs", searchindex.BoolOR, true))

	// "meta" is not a term itself; every hit comes from a longer term
	assert.Len(t, scores, 5)
	assert.InDelta(t, 0.16998559740662755, scores["5"], delta)
	assert.InDelta(t, 0.12910021373064745, scores["3"], delta)
	assert.InDelta(t, 0.09128763658157345, scores["4"], delta)
	assert.InDelta(t, 0.06772588722239783, scores["0"], delta)
	assert.InDelta(t, 0.04788943411683286, scores["1"], delta)

	noExpand := ScoreField(idx, []string{"meta"}, field("breadcrumbs", searchindex.BoolOR, false))
	assert.Empty(t, noExpand)
}

func TestScoreField_Boolean(t *testing.T) {
	idx := fixture(t)
	tokens := []string{"metastor", "manag"}

	or := ScoreField(idx, tokens, field("breadcrumbs", searchindex.BoolOR, false))
	assert.Len(t, or, 4)
	// matched one of two tokens: halved by the coordination norm
	assert.InDelta(t, 0.8606680915376497, or["3"], delta)
	assert.InDelta(t, 0.4969069543321835, or["1"], delta)
	assert.InDelta(t, 1.9199010418083948, or["4"], delta)

	and := ScoreField(idx, tokens, field("breadcrumbs", searchindex.BoolAND, false))
	assert.Equal(t, []string{"4", "5"}, sortedRefs(and))
	assert.InDelta(t, 1.9199010418083948, and["4"], delta)
}

func TestScoreField_ANDWithMissingFirstToken(t *testing.T) {
	idx := fixture(t)
	scores := ScoreField(idx, []string{"zzz", "metastor"}, field("breadcrumbs", searchindex.BoolAND, false))
	assert.Empty(t, scores)
}

func TestScoreField_EmptyToken(t *testing.T) {
	idx := fixture(t)
	tokens := []string{"", "metastor"}

	or := ScoreField(idx, tokens, field("breadcrumbs", searchindex.BoolOR, false))
	assert.Len(t, or, 3)
	assert.InDelta(t, 1.7213361830752993/2, or["3"], delta)

	assert.Empty(t, ScoreField(idx, []string{""}, field("breadcrumbs", searchindex.BoolOR, true)))
	assert.Empty(t, ScoreField(idx, tokens, field("breadcrumbs", searchindex.BoolAND, false)))
}

func TestScoreField_Skips(t *testing.T) {
	idx := fixture(t)

	zero := field("title", searchindex.BoolOR, true)
	zero.Boost = 0
	assert.Nil(t, ScoreField(idx, []string{"metastor"}, zero))
	assert.Nil(t, ScoreField(idx, nil, field("title", searchindex.BoolOR, true)))
	assert.Nil(t, ScoreField(idx, []string{"metastor"}, field("author", searchindex.BoolOR, true)))
}

func TestCombine(t *testing.T) {
	idx := fixture(t)
	fields := idx.SearchOptions.Resolve(idx.Fields)
	tokens := []string{"metastor", "schema"}

	perField := make([]FieldScores, len(fields))
	for i, fc := range fields {
		perField[i] = ScoreField(idx, tokens, fc)
	}
	total := Combine(fields, perField)

	assert.InDelta(t, 4.168846694528716, total["4"], delta)
	assert.InDelta(t, 2.7630401539779976, total["3"], delta)
	assert.InDelta(t, 2.5109563063175044, total["5"], delta)
	assert.Len(t, total, 3)
}

func TestCombine_AppliesBoost(t *testing.T) {
	fields := []searchindex.FieldConfig{{Name: "a", Boost: 2}, {Name: "b", Boost: 0.5}}
	total := Combine(fields, []FieldScores{{"1": 1, "2": 3}, {"1": 4}})

	assert.Equal(t, map[string]float64{"1": 4, "2": 6}, total)
}

func sortedRefs(s FieldScores) []string {
	refs := make([]string, 0, len(s))
	for r := range s {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return searchindex.LessRef(refs[i], refs[j]) })
	return refs
}

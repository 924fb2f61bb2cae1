package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regtechmx/expediente-engine/internal/model"
)

func newMerger() *Merger {
	return New(model.DefaultRegistry(), 0)
}

func fields(kv map[string]string) *model.ExtractedFields {
	f := model.NewExtractedFields()
	for k, v := range kv {
		f.Set(k, v)
	}
	return f
}

func TestMerge_AllNilInput(t *testing.T) {
	res := newMerger().Merge([]*model.ExtractedFields{nil, nil, nil}, PolicyFirstWins)
	require.NotNil(t, res)
	require.NotNil(t, res.MergedFields)
	assert.Equal(t, 0, res.SourceCount)
	assert.Empty(t, res.Conflicts)
	assert.True(t, res.MergedFields.IsEmpty())
}

func TestMerge_NilEntriesSkipped(t *testing.T) {
	a := fields(map[string]string{model.KeyCausa: "Judicial"})
	res := newMerger().Merge([]*model.ExtractedFields{nil, a, nil}, PolicyFirstWins)
	assert.Equal(t, 1, res.SourceCount)
	v, ok := res.MergedFields.Get(model.KeyCausa)
	assert.True(t, ok)
	assert.Equal(t, "Judicial", v)
}

func TestMerge_AllEqualNoConflict(t *testing.T) {
	a := fields(map[string]string{model.KeyNumeroExpediente: "A/123/2024"})
	b := fields(map[string]string{model.KeyNumeroExpediente: "A/123/2024"})
	res := newMerger().Merge([]*model.ExtractedFields{a, b}, PolicyFirstWins)
	assert.Empty(t, res.Conflicts)
	assert.Contains(t, res.MergedFieldNames, model.KeyNumeroExpediente)
}

func TestMerge_Idempotent(t *testing.T) {
	a := fields(map[string]string{
		model.KeyNumeroExpediente: "A/123/2024",
		model.KeyCausa:            "Judicial",
		"CLABE":                   "012345678901234567",
	})
	single := newMerger().Merge([]*model.ExtractedFields{a}, PolicyFirstWins)
	double := newMerger().Merge([]*model.ExtractedFields{a, a}, PolicyFirstWins)

	assert.Empty(t, double.Conflicts)
	assert.Equal(t, single.MergedFields, double.MergedFields)
	assert.Equal(t, 2, double.SourceCount)
}

func TestMerge_NormalizedAmountsAgree(t *testing.T) {
	a := fields(map[string]string{model.KeyMontoSolicitado: "$100,000.00"})
	b := fields(map[string]string{model.KeyMontoSolicitado: "$100000"})
	res := newMerger().Merge([]*model.ExtractedFields{a, b}, PolicyFirstWins)
	assert.Empty(t, res.Conflicts)
	v, _ := res.MergedFields.Get(model.KeyMontoSolicitado)
	assert.Equal(t, "$100,000.00", v)
}

func TestMerge_ConflictRecorded(t *testing.T) {
	a := fields(map[string]string{model.KeyCausa: "Aseguramiento"})
	b := fields(map[string]string{model.KeyCausa: "Judicial"})
	res := newMerger().Merge([]*model.ExtractedFields{a, b}, PolicyFirstWins)

	require.Len(t, res.Conflicts, 1)
	c := res.Conflicts[0]
	assert.Equal(t, model.KeyCausa, c.FieldName)
	assert.ElementsMatch(t, []string{"Aseguramiento", "Judicial"}, c.Values)
	assert.Equal(t, "Aseguramiento", c.Resolved)
	assert.Equal(t, string(PolicyFirstWins), c.Resolution)
}

func TestMerge_Policies(t *testing.T) {
	a := fields(map[string]string{model.KeyCausa: "Judicial", model.KeyNumeroOficio: "OF-1"})
	b := fields(map[string]string{model.KeyCausa: "Administrativa"})

	tests := []struct {
		policy Policy
		want   string
	}{
		{PolicyFirstWins, "Judicial"},
		{PolicyLastWins, "Administrativa"},
		{PolicyLongestWins, "Administrativa"},
		{PolicyMostComplete, "Judicial"}, // a has more fields
	}
	for _, tt := range tests {
		res := newMerger().Merge([]*model.ExtractedFields{a, b}, tt.policy)
		v, _ := res.MergedFields.Get(model.KeyCausa)
		assert.Equal(t, tt.want, v, "policy %s", tt.policy)
	}
}

func TestMerge_FuzzyPolicyNameLike(t *testing.T) {
	a := fields(map[string]string{"Nombre": "Juan Peres Lopez"})
	b := fields(map[string]string{"Nombre": "Juan Pérez López"})
	res := newMerger().Merge([]*model.ExtractedFields{a, b}, PolicyFuzzy)

	v, _ := res.MergedFields.Get("Nombre")
	assert.Equal(t, "Juan Pérez López", v) // longest fuzzy-equal variant wins
}

func TestMerge_FuzzyPolicyNonNameLikeFallsBack(t *testing.T) {
	a := fields(map[string]string{model.KeyCausa: "Judicial"})
	b := fields(map[string]string{model.KeyCausa: "Judiciall extra"})
	res := newMerger().Merge([]*model.ExtractedFields{a, b}, PolicyFuzzy)

	v, _ := res.MergedFields.Get(model.KeyCausa)
	assert.Equal(t, "Judicial", v)
}

func TestMerge_ListFieldsUnioned(t *testing.T) {
	a := &model.ExtractedFields{
		Montos: []model.Monto{{Raw: "$100,000.00", Valor: 100000}},
		Fechas: []string{"15/03/2024"},
	}
	b := &model.ExtractedFields{
		Montos: []model.Monto{{Raw: "$100000", Valor: 100000}, {Raw: "$5,000.00", Valor: 5000}},
		Fechas: []string{"15/03/2024", "01/04/2024"},
	}
	res := newMerger().Merge([]*model.ExtractedFields{a, b}, PolicyFirstWins)

	assert.Len(t, res.MergedFields.Montos, 2) // $100k deduplicated across formats
	assert.Len(t, res.MergedFields.Fechas, 2)
}

func TestMergePair_PrimaryWins(t *testing.T) {
	primary := fields(map[string]string{model.KeyCausa: "Judicial"})
	secondary := fields(map[string]string{
		model.KeyCausa:        "Administrativa",
		model.KeyNumeroOficio: "OF-22/2024",
	})
	res := newMerger().MergePair(primary, secondary)

	causa, _ := res.MergedFields.Get(model.KeyCausa)
	oficio, _ := res.MergedFields.Get(model.KeyNumeroOficio)
	assert.Equal(t, "Judicial", causa)
	assert.Equal(t, "OF-22/2024", oficio)
}

func TestMerge_InvariantNamesSubsetOfFields(t *testing.T) {
	a := fields(map[string]string{model.KeyCausa: "Judicial", "RFC": "ABC010101AAA"})
	b := fields(map[string]string{model.KeyNumeroOficio: "OF-1"})
	res := newMerger().Merge([]*model.ExtractedFields{a, b}, PolicyFirstWins)

	populated := make(map[string]bool)
	for _, n := range res.MergedFields.FieldNames() {
		populated[n] = true
	}
	for _, n := range res.MergedFieldNames {
		assert.True(t, populated[n], "merged name %s missing from fields", n)
	}
}

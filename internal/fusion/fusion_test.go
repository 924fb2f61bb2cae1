package fusion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regtechmx/expediente-engine/internal/model"
)

func newEngine() *Engine {
	return New(model.DefaultRegistry(), DefaultConfig())
}

func fields(kv map[string]string) *model.ExtractedFields {
	f := model.NewExtractedFields()
	for k, v := range kv {
		f.Set(k, v)
	}
	return f
}

func ocrMeta(conf, quality float64) model.ExtractionMetadata {
	return model.ExtractionMetadata{HasOCR: true, OCRConfidence: conf, ImageQuality: quality}
}

func TestFuse_AllSourcesNilIsError(t *testing.T) {
	_, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML},
		{Kind: model.SourcePDFOCR},
	})
	assert.Error(t, err)
}

func TestFuse_ThreeWayAgreementHighConfidence(t *testing.T) {
	value := map[string]string{model.KeyNumeroExpediente: "A/123/2024"}
	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: fields(value)},
		{Kind: model.SourcePDFOCR, Fields: fields(value), Meta: ocrMeta(0.9, 0.8)},
		{Kind: model.SourceDOCXOCR, Fields: fields(value), Meta: ocrMeta(0.85, 0.8)},
	})
	require.NoError(t, err)

	fr := res.FieldResults[model.KeyNumeroExpediente]
	assert.Equal(t, model.DecisionAllAgree, fr.Decision)
	assert.GreaterOrEqual(t, fr.Confidence, 0.85)
	assert.Equal(t, "A/123/2024", fr.Value)
	assert.Len(t, fr.Sources, 3)
}

func TestFuse_NormalizedAmountsAgree(t *testing.T) {
	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: fields(map[string]string{model.KeyMontoSolicitado: "$100,000.00"})},
		{Kind: model.SourcePDFOCR, Fields: fields(map[string]string{model.KeyMontoSolicitado: "$100000"}), Meta: ocrMeta(0.9, 0.9)},
	})
	require.NoError(t, err)

	fr := res.FieldResults[model.KeyMontoSolicitado]
	assert.Equal(t, model.DecisionAllAgree, fr.Decision)
	assert.GreaterOrEqual(t, fr.Confidence, 0.85)
	assert.Equal(t, model.SourceXML, fr.WinnerSource)
}

func TestFuse_NarrowMarginConflictRequiresReview(t *testing.T) {
	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: fields(map[string]string{model.KeyCausa: "Aseguramiento"})},
		{Kind: model.SourcePDFOCR, Fields: fields(map[string]string{model.KeyCausa: "Judicial"}), Meta: ocrMeta(0.95, 0.95)},
	})
	require.NoError(t, err)

	fr := res.FieldResults[model.KeyCausa]
	assert.Equal(t, model.DecisionConflict, fr.Decision)
	assert.True(t, fr.RequiresManualReview)
	assert.Contains(t, res.ConflictingFields, model.KeyCausa)
}

func TestFuse_WideMarginWeightedVoting(t *testing.T) {
	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: fields(map[string]string{model.KeyCausa: "Aseguramiento"})},
		{Kind: model.SourceDOCXOCR, Fields: fields(map[string]string{model.KeyCausa: "Judicial"}), Meta: ocrMeta(0.3, 0.3)},
	})
	require.NoError(t, err)

	fr := res.FieldResults[model.KeyCausa]
	assert.Equal(t, model.DecisionWeightedVoting, fr.Decision)
	assert.Equal(t, "Aseguramiento", fr.Value)
	assert.Equal(t, model.SourceXML, fr.WinnerSource)
	assert.False(t, fr.RequiresManualReview)
}

func TestFuse_FuzzyAgreementNameLike(t *testing.T) {
	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: fields(map[string]string{"Nombre": "Juan Pérez López"})},
		{Kind: model.SourcePDFOCR, Fields: fields(map[string]string{"Nombre": "Juan Peres Lopez"}), Meta: ocrMeta(0.8, 0.8)},
	})
	require.NoError(t, err)

	fr := res.FieldResults["Nombre"]
	assert.Equal(t, model.DecisionFuzzyAgreement, fr.Decision)
	assert.Equal(t, "Juan Pérez López", fr.Value) // XML is the more reliable source
	assert.Greater(t, fr.Confidence, 0.7)
}

func TestFuse_PatternInvalidCandidateDropped(t *testing.T) {
	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: fields(map[string]string{"CLABE": "012345678901234567"})},
		// OCR mangled the CLABE down to 17 digits.
		{Kind: model.SourcePDFOCR, Fields: fields(map[string]string{"CLABE": "01234567890123456"}), Meta: ocrMeta(0.9, 0.9)},
	})
	require.NoError(t, err)

	fr := res.FieldResults["CLABE"]
	assert.Equal(t, "012345678901234567", fr.Value)
	assert.Equal(t, model.DecisionAllAgree, fr.Decision) // single survivor agrees with itself
}

func TestFuse_MissingRequiredForcesReview(t *testing.T) {
	// Only one optional-ish field present: required fields missing.
	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: fields(map[string]string{"Nombre": "Juan Pérez"})},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.MissingRequired)
	assert.Contains(t, res.MissingRequired, model.KeyFundamentoLegal)
	assert.NotEqual(t, model.ActionAutoProcess, res.NextAction)
}

func TestFuse_ListsUnioned(t *testing.T) {
	a := fields(map[string]string{model.KeyCausa: "Judicial"})
	a.Montos = []model.Monto{{Raw: "$100,000.00", Valor: 100000}}
	b := fields(map[string]string{model.KeyCausa: "Judicial"})
	b.Montos = []model.Monto{{Raw: "$100000", Valor: 100000}, {Raw: "$9,500.00", Valor: 9500}}

	res, err := newEngine().Fuse(context.Background(), []SourceFields{
		{Kind: model.SourceXML, Fields: a},
		{Kind: model.SourcePDFOCR, Fields: b, Meta: ocrMeta(0.9, 0.9)},
	})
	require.NoError(t, err)
	assert.Len(t, res.Expediente.Montos, 2)
}

func TestFuse_DeterministicAcrossSourceOrder(t *testing.T) {
	xml := SourceFields{Kind: model.SourceXML, Fields: fields(map[string]string{model.KeyCausa: "Aseguramiento", model.KeyNumeroOficio: "OF-1"})}
	pdf := SourceFields{Kind: model.SourcePDFOCR, Fields: fields(map[string]string{model.KeyCausa: "Judicial"}), Meta: ocrMeta(0.9, 0.9)}

	a, err := newEngine().Fuse(context.Background(), []SourceFields{xml, pdf})
	require.NoError(t, err)
	b, err := newEngine().Fuse(context.Background(), []SourceFields{pdf, xml})
	require.NoError(t, err)

	assert.Equal(t, a.FieldResults, b.FieldResults)
	assert.Equal(t, a.Expediente, b.Expediente)
}

func TestFuse_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine().Fuse(ctx, []SourceFields{
		{Kind: model.SourceXML, Fields: fields(map[string]string{model.KeyCausa: "Judicial"})},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextActionFor_ThresholdBoundaries(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, model.ActionAutoProcess, cfg.NextActionFor(0.85, false))
	assert.Equal(t, model.ActionReviewRecommended, cfg.NextActionFor(0.849, false))
	assert.Equal(t, model.ActionReviewRecommended, cfg.NextActionFor(0.70, false))
	assert.Equal(t, model.ActionManualReviewRequired, cfg.NextActionFor(0.699, false))

	// Missing required fields cap auto-processing.
	assert.Equal(t, model.ActionReviewRecommended, cfg.NextActionFor(0.95, true))
}

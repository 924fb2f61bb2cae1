package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regtechmx/expediente-engine/internal/model"
)

const xmlText = `Expediente: A/123/2024
Oficio: UIF/DGAJ/4455/2024
Causa: Aseguramiento
Autoridad: Juzgado Tercero de Distrito
Fundamento Legal: Artículo 142 de la Ley de Instituciones de Crédito
Monto: $100,000.00
Nombre: Juan Pérez López
CLABE: 012345678901234567
Firmante: Lic. María Gómez
Se solicita bloquear la cuenta y asegurar los recursos del cliente señalado.`

const pdfText = `Expediente: A/123/2024
Oficio: UIF/DGAJ/4455/2024
Causa: Aseguramiento
Autoridad: Juzgado Tercero de Distrito
Fundamento Legal: Artículo 142 de la Ley de Instituciones de Crédito
Monto: $100000
Nombre: Juan Peres Lopez
CLABE: 012345678901234567
Firmante: Lic. María Gómez
Se solicita bloquear la cuenta y asegurar los recursos del cliente señalado.`

func newTestEngine() *Engine {
	return New(Options{})
}

func TestProcess_FullPipeline(t *testing.T) {
	run, err := newTestEngine().Process(context.Background(), Request{
		CaseID: "case-001",
		Sources: []SourceDocument{
			{Kind: model.SourceXML, Text: xmlText},
			{Kind: model.SourcePDFOCR, Text: pdfText},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "case-001", run.CaseID)
	assert.False(t, run.CreatedAt.IsZero())

	require.NotNil(t, run.Fusion)
	exp := run.Fusion.Expediente
	assert.Equal(t, "A/123/2024", exp.NumeroExpediente)
	assert.Equal(t, "UIF/DGAJ/4455/2024", exp.NumeroOficio)
	assert.Equal(t, "Aseguramiento", exp.Causa)
	assert.NotEmpty(t, exp.TextoLibre)
	assert.Empty(t, run.Fusion.MissingRequired)
	assert.Equal(t, model.ActionAutoProcess, run.Fusion.NextAction)

	require.NotNil(t, run.Classification)
	assert.Equal(t, model.TipoAseguramiento, run.Classification.RequirementType)
	assert.Equal(t, 101, run.Classification.Code)
	assert.Equal(t, model.AutoridadJudicial, run.Classification.AuthorityType)
	assert.Empty(t, run.Classification.RejectionReasons)

	require.NotNil(t, run.Classification.Semantic)
	assert.NotNil(t, run.Classification.Semantic.Freeze)
}

func TestProcess_FuzzyNameReconciled(t *testing.T) {
	run, err := newTestEngine().Process(context.Background(), Request{
		CaseID: "case-002",
		Sources: []SourceDocument{
			{Kind: model.SourceXML, Text: xmlText},
			{Kind: model.SourcePDFOCR, Text: pdfText},
		},
	})
	require.NoError(t, err)

	fr := run.Fusion.FieldResults["Nombre"]
	assert.Equal(t, model.DecisionFuzzyAgreement, fr.Decision)
	assert.Equal(t, "Juan Pérez López", fr.Value)
}

func TestProcess_SingleSource(t *testing.T) {
	run, err := newTestEngine().Process(context.Background(), Request{
		CaseID: "case-003",
		Sources: []SourceDocument{
			{Kind: model.SourcePDFOCR, Text: pdfText},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "A/123/2024", run.Fusion.Expediente.NumeroExpediente)
	assert.Contains(t, run.Fusion.SourceReliability, model.SourcePDFOCR)
	assert.NotContains(t, run.Fusion.SourceReliability, model.SourceXML)
}

func TestProcess_NoSourcesIsError(t *testing.T) {
	_, err := newTestEngine().Process(context.Background(), Request{CaseID: "case-004"})
	assert.Error(t, err)

	_, err = newTestEngine().Process(context.Background(), Request{
		CaseID:  "case-005",
		Sources: []SourceDocument{{Kind: model.SourceXML, Text: ""}},
	})
	assert.Error(t, err)
}

func TestProcess_DeterministicAcrossSourceOrder(t *testing.T) {
	e := newTestEngine()
	forward := Request{CaseID: "c", Sources: []SourceDocument{
		{Kind: model.SourceXML, Text: xmlText},
		{Kind: model.SourcePDFOCR, Text: pdfText},
	}}
	reversed := Request{CaseID: "c", Sources: []SourceDocument{
		{Kind: model.SourcePDFOCR, Text: pdfText},
		{Kind: model.SourceXML, Text: xmlText},
	}}

	a, err := e.Process(context.Background(), forward)
	require.NoError(t, err)
	b, err := e.Process(context.Background(), reversed)
	require.NoError(t, err)

	assert.Equal(t, a.Fusion.FieldResults, b.Fusion.FieldResults)
	assert.Equal(t, a.Fusion.Expediente, b.Fusion.Expediente)
	assert.Equal(t, a.Classification.RequirementType, b.Classification.RequirementType)
}

func TestProcess_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine().Process(ctx, Request{
		CaseID:  "case-006",
		Sources: []SourceDocument{{Kind: model.SourceXML, Text: xmlText}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrderSources(t *testing.T) {
	out := orderSources([]SourceDocument{
		{Kind: model.SourceDOCXOCR, Text: "c"},
		{Kind: model.SourceXML, Text: "a"},
		{Kind: model.SourceXML, Text: "duplicate"},
		{Kind: model.SourcePDFOCR, Text: ""},
	})

	require.Len(t, out, 2)
	assert.Equal(t, model.SourceXML, out[0].Kind)
	assert.Equal(t, "a", out[0].Text)
	assert.Equal(t, model.SourceDOCXOCR, out[1].Kind)
}

func TestWithEstimatedQuality(t *testing.T) {
	meta := withEstimatedQuality(SourceDocument{Kind: model.SourcePDFOCR, Text: pdfText})
	assert.True(t, meta.HasOCR)
	assert.Greater(t, meta.OCRConfidence, 0.0)

	// Reported metadata is kept as-is.
	meta = withEstimatedQuality(SourceDocument{
		Kind: model.SourcePDFOCR,
		Meta: model.ExtractionMetadata{OCRConfidence: 0.42, ImageQuality: 0.33},
	})
	assert.InDelta(t, 0.42, meta.OCRConfidence, 0.001)
	assert.InDelta(t, 0.33, meta.ImageQuality, 0.001)

	// XML never gets OCR scaling.
	meta = withEstimatedQuality(SourceDocument{Kind: model.SourceXML, Text: xmlText})
	assert.False(t, meta.HasOCR)
}

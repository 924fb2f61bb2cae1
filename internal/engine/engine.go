// Package engine wires the processing pipeline together: per-source
// extraction, source fusion, classification and semantic analysis, producing
// one persisted Run per case.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regtechmx/expediente-engine/internal/classify"
	"github.com/regtechmx/expediente-engine/internal/extract"
	"github.com/regtechmx/expediente-engine/internal/fusion"
	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/semantic"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

// SourceDocument is one input document for a case.
type SourceDocument struct {
	Kind model.SourceKind         `json:"kind"`
	Text string                   `json:"text"`
	Meta model.ExtractionMetadata `json:"meta,omitempty"`
}

// Request is one case to process.
type Request struct {
	CaseID  string           `json:"case_id"`
	Sources []SourceDocument `json:"sources"`
}

// Options configures the engine. Zero values fall back to the package
// defaults so tests can build an engine with Options{}.
type Options struct {
	Registry    *model.FieldRegistry
	ExtractMode extract.Mode
	ExtractCfg  extract.Config
	// FuzzyThreshold feeds the intra-document merge inside extraction.
	FuzzyThreshold float64
	FusionCfg      fusion.Config
	ClassifyDict   *classify.Dictionary
	ClassifyCfg    classify.Config
	SemanticDict   *semantic.Dictionary
	SemanticCfg    semantic.Config
}

// Engine is the full processing pipeline. Stateless across cases; one engine
// serves concurrent requests.
type Engine struct {
	orchestrator *extract.Orchestrator
	fuser        *fusion.Engine
	classifier   *classify.Classifier
	analyzer     *semantic.Analyzer
	mode         extract.Mode
}

// New builds an engine from options.
func New(opts Options) *Engine {
	if opts.Registry == nil {
		opts.Registry = model.DefaultRegistry()
	}
	if opts.ExtractMode == "" {
		opts.ExtractMode = extract.ModeMergeAll
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = 0.85
	}
	if opts.FusionCfg.SourceReliability == nil {
		opts.FusionCfg = fusion.DefaultConfig()
	}
	if opts.ClassifyCfg == (classify.Config{}) {
		opts.ClassifyCfg = classify.DefaultClassifyConfig()
	}
	if opts.SemanticCfg == (semantic.Config{}) {
		opts.SemanticCfg = semantic.DefaultAnalyzeConfig()
	}
	return &Engine{
		orchestrator: extract.NewOrchestrator(opts.Registry, opts.FuzzyThreshold, opts.ExtractCfg),
		fuser:        fusion.New(opts.Registry, opts.FusionCfg),
		classifier:   classify.New(opts.ClassifyDict, opts.Registry, opts.ClassifyCfg),
		analyzer:     semantic.New(opts.SemanticDict, opts.SemanticCfg),
		mode:         opts.ExtractMode,
	}
}

// sourceOrder fixes the canonical processing order of sources.
var sourceOrder = []model.SourceKind{model.SourceXML, model.SourcePDFOCR, model.SourceDOCXOCR}

// Process runs the full pipeline for one case. Data-quality problems never
// fail a case; only an empty request or cancellation returns an error.
func (e *Engine) Process(ctx context.Context, req Request) (*model.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := orderSources(req.Sources)
	if len(docs) == 0 {
		return nil, eris.New("engine: request carries no source documents")
	}

	// Per-source extraction, results slotted by input index.
	extracted := make([]*model.ExtractedFields, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(sourceOrder))
	for i, doc := range docs {
		g.Go(func() error {
			fields, err := e.orchestrator.Extract(gctx, extract.Document{
				Text:   doc.Text,
				Source: doc.Kind,
			}, e.mode)
			if err != nil {
				return err
			}
			extracted[i] = fields
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: extraction")
	}

	inputs := make([]fusion.SourceFields, len(docs))
	for i, doc := range docs {
		inputs[i] = fusion.SourceFields{
			Kind:   doc.Kind,
			Fields: extracted[i],
			Meta:   withEstimatedQuality(doc),
		}
	}

	fused, err := e.fuser.Fuse(ctx, inputs)
	if err != nil {
		return nil, eris.Wrap(err, "engine: fusion")
	}

	// The directive body for downstream analysis comes from the most
	// reliable source that supplied text.
	for _, doc := range docs {
		if doc.Text != "" {
			fused.Expediente.TextoLibre = doc.Text
			break
		}
	}

	classification, err := e.classifier.Classify(ctx, fused.Expediente)
	if err != nil {
		return nil, eris.Wrap(err, "engine: classification")
	}
	analysis, err := e.analyzer.Analyze(ctx, fused.Expediente)
	if err != nil {
		return nil, eris.Wrap(err, "engine: semantic analysis")
	}
	classification.Semantic = analysis

	run := &model.Run{
		ID:             uuid.NewString(),
		CaseID:         req.CaseID,
		Fusion:         fused,
		Classification: classification,
		CreatedAt:      time.Now().UTC(),
	}

	zap.L().Info("case processed",
		zap.String("run_id", run.ID),
		zap.String("case_id", req.CaseID),
		zap.Float64("overall_confidence", fused.OverallConfidence),
		zap.String("next_action", string(fused.NextAction)),
		zap.String("requirement_type", string(classification.RequirementType)))

	return run, nil
}

// orderSources returns the sources with text, in canonical order, dropping
// duplicates of the same kind beyond the first.
func orderSources(sources []SourceDocument) []SourceDocument {
	var out []SourceDocument
	for _, kind := range sourceOrder {
		for _, s := range sources {
			if s.Kind == kind && s.Text != "" {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// withEstimatedQuality fills missing OCR metadata from the text itself so
// reliability scaling still applies when the OCR step reported nothing.
func withEstimatedQuality(doc SourceDocument) model.ExtractionMetadata {
	meta := doc.Meta
	if doc.Kind == model.SourcePDFOCR || doc.Kind == model.SourceDOCXOCR {
		meta.HasOCR = true
		if meta.OCRConfidence == 0 {
			meta.OCRConfidence = float64(textcmp.QualityScore(doc.Text)) / 100
		}
		if meta.ImageQuality == 0 {
			meta.ImageQuality = meta.OCRConfidence
		}
	}
	return meta
}

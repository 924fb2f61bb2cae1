package extract

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regtechmx/expediente-engine/internal/merge"
	"github.com/regtechmx/expediente-engine/internal/model"
)

// Mode selects how the orchestrator combines strategy outputs.
type Mode string

const (
	// ModeBestStrategy runs only the highest-confidence strategy.
	ModeBestStrategy Mode = "best_strategy"
	// ModeMergeAll runs every applicable strategy and merges the outputs.
	ModeMergeAll Mode = "merge_all"
	// ModeComplement fills gaps in a caller-supplied field set.
	ModeComplement Mode = "complement"
)

// Config tunes the orchestrator.
type Config struct {
	// Concurrency bounds parallel strategy execution. <= 0 means sequential.
	Concurrency int
	// MergePolicy resolves conflicts in ModeMergeAll.
	MergePolicy merge.Policy
}

// Orchestrator runs the fixed strategy set against one document. Strategies
// are stateless; one orchestrator is safe for concurrent extractions.
type Orchestrator struct {
	strategies []Strategy
	merger     *merge.Merger
	cfg        Config
}

// NewOrchestrator builds the orchestrator with the closed strategy set:
// pattern, contextual, table, complement, search.
func NewOrchestrator(registry *model.FieldRegistry, fuzzyThreshold float64, cfg Config) *Orchestrator {
	if cfg.MergePolicy == "" {
		cfg.MergePolicy = merge.PolicyMostComplete
	}
	strategies := []Strategy{
		NewPatternStrategy(),
		NewContextualStrategy(),
		NewTableStrategy(),
		NewComplementStrategy(),
		NewSearchStrategy(),
	}
	sort.Slice(strategies, func(i, j int) bool {
		return strategies[i].Priority() < strategies[j].Priority()
	})
	return &Orchestrator{
		strategies: strategies,
		merger:     merge.New(registry, fuzzyThreshold),
		cfg:        cfg,
	}
}

// Extract runs the strategies per the requested mode. It returns nil (not an
// empty set) when no strategy can handle the document so callers can try an
// alternative pipeline. ModeComplement requires doc.Known.
func (o *Orchestrator) Extract(ctx context.Context, doc Document, mode Mode) (*model.ExtractedFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch mode {
	case ModeBestStrategy:
		return o.extractBest(ctx, doc)
	case ModeMergeAll:
		return o.extractMergeAll(ctx, doc)
	case ModeComplement:
		if doc.Known == nil {
			return nil, eris.New("extract: complement mode requires existing fields")
		}
		return o.extractComplement(ctx, doc)
	default:
		return nil, eris.Errorf("extract: unknown mode %q", mode)
	}
}

// scored pairs a strategy with its confidence for this document.
type scored struct {
	strategy   Strategy
	confidence int
}

// applicable returns strategies that can handle the text with confidence
// > 0, sorted by confidence descending, priority ascending on ties. The
// ordering is a pure function of the inputs, never of completion order.
func (o *Orchestrator) applicable(doc Document) []scored {
	var out []scored
	for _, s := range o.strategies {
		if s.Name() == "complement" && doc.Known == nil {
			continue
		}
		if !s.CanHandle(doc.Text) {
			continue
		}
		if c := s.Confidence(doc.Text); c > 0 {
			out = append(out, scored{strategy: s, confidence: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].confidence != out[j].confidence {
			return out[i].confidence > out[j].confidence
		}
		return out[i].strategy.Priority() < out[j].strategy.Priority()
	})
	return out
}

func (o *Orchestrator) extractBest(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	candidates := o.applicable(doc)
	if len(candidates) == 0 {
		zap.L().Debug("extract: no strategy can handle document",
			zap.String("source", string(doc.Source)),
		)
		return nil, nil
	}
	best := candidates[0]
	zap.L().Debug("extract: best strategy selected",
		zap.String("strategy", best.strategy.Name()),
		zap.Int("confidence", best.confidence),
	)
	return best.strategy.Extract(ctx, doc)
}

func (o *Orchestrator) extractMergeAll(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	candidates := o.applicable(doc)
	if len(candidates) == 0 {
		return nil, nil
	}

	// Results slot by candidate index so aggregation order is fixed
	// regardless of which goroutine finishes first.
	results := make([]*model.ExtractedFields, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}
	for i, c := range candidates {
		g.Go(func() error {
			fields, err := c.strategy.Extract(gctx, doc)
			if err != nil {
				return err
			}
			results[i] = fields
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "extract: merge all")
	}

	merged := o.merger.Merge(results, o.cfg.MergePolicy)
	if merged.MergedFields.IsEmpty() {
		return nil, nil
	}
	if len(merged.Conflicts) > 0 {
		zap.L().Debug("extract: strategies disagreed",
			zap.Int("conflicts", len(merged.Conflicts)),
			zap.String("source", string(doc.Source)),
		)
	}
	return merged.MergedFields, nil
}

func (o *Orchestrator) extractComplement(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	var comp Strategy
	for _, s := range o.strategies {
		if s.Name() == "complement" {
			comp = s
			break
		}
	}
	if comp == nil || !comp.CanHandle(doc.Text) {
		return doc.Known.Clone(), nil
	}

	found, err := comp.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	// Known fields always win; complement output only fills gaps.
	return o.merger.MergePair(doc.Known, found).MergedFields, nil
}

// Package fusion reconciles up to three whole-document field sets (manually
// filled XML, OCR'd PDF, OCR'd DOCX) into one trustworthy record, field by
// field, with dynamic source-reliability weighting and conflict escalation.
package fusion

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

// SourceFields is one source's contribution to fusion: its extracted fields
// plus quality metadata. Fields may be nil when the source was unavailable.
type SourceFields struct {
	Kind   model.SourceKind
	Fields *model.ExtractedFields
	Meta   model.ExtractionMetadata
}

// Engine fuses per-source field sets. Stateless; safe for concurrent use.
type Engine struct {
	cfg      Config
	registry *model.FieldRegistry
}

// New creates a fusion engine.
func New(registry *model.FieldRegistry, cfg Config) *Engine {
	return &Engine{cfg: cfg, registry: registry}
}

// sourceOrder fixes the evaluation order of sources so fusion output never
// depends on the order the caller happened to list them in.
var sourceOrder = map[model.SourceKind]int{
	model.SourceXML:     0,
	model.SourcePDFOCR:  1,
	model.SourceDOCXOCR: 2,
}

// Fuse reconciles the sources into one FusionResult. At least one source
// must carry fields; an all-nil input is the one genuine contract violation
// and returns an error.
func (e *Engine) Fuse(ctx context.Context, sources []SourceFields) (*model.FusionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var live []SourceFields
	for _, s := range sources {
		if s.Fields != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return nil, eris.New("fusion: all sources empty, nothing to fuse")
	}
	sort.SliceStable(live, func(i, j int) bool {
		return sourceOrder[live[i].Kind] < sourceOrder[live[j].Kind]
	})

	reliability := make(map[model.SourceKind]float64, len(live))
	for _, s := range live {
		reliability[s.Kind] = e.effectiveReliability(s)
	}

	names := unionFieldNames(live)
	fieldResults := make([]model.FieldFusionResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Concurrency > 0 {
		g.SetLimit(e.cfg.Concurrency)
	}
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fieldResults[i] = e.fuseField(name, live, reliability)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "fusion: fuse fields")
	}

	merged := model.NewExtractedFields()
	result := &model.FusionResult{
		FieldResults:      make(map[string]model.FieldFusionResult, len(fieldResults)),
		SourceReliability: reliability,
	}
	for _, fr := range fieldResults {
		result.FieldResults[fr.FieldName] = fr
		if fr.Value != "" {
			merged.Set(fr.FieldName, fr.Value)
		}
		if fr.Decision == model.DecisionConflict {
			result.ConflictingFields = append(result.ConflictingFields, fr.FieldName)
		}
	}
	mergeLists(merged, live)

	for _, spec := range e.registry.Required() {
		if _, ok := merged.Get(spec.Key); !ok {
			result.MissingRequired = append(result.MissingRequired, spec.Key)
		}
	}

	result.Expediente = model.ExpedienteFromFields(merged)
	result.OverallConfidence = e.overallConfidence(fieldResults)
	result.NextAction = e.cfg.NextActionFor(result.OverallConfidence, len(result.MissingRequired) > 0)

	zap.L().Info("fusion: record reconciled",
		zap.Int("sources", len(live)),
		zap.Int("fields", len(fieldResults)),
		zap.Int("conflicts", len(result.ConflictingFields)),
		zap.Int("missing_required", len(result.MissingRequired)),
		zap.Float64("confidence", result.OverallConfidence),
		zap.String("next_action", string(result.NextAction)),
	)
	return result, nil
}

// effectiveReliability derives a source's trust from its base reliability
// and, for OCR sources, the OCR confidence and image quality it reported.
func (e *Engine) effectiveReliability(s SourceFields) float64 {
	base, ok := e.cfg.SourceReliability[s.Kind]
	if !ok {
		base = 0.5
	}
	if !s.Meta.HasOCR {
		return base
	}
	return base * (0.5 + 0.35*clamp01(s.Meta.OCRConfidence) + 0.15*clamp01(s.Meta.ImageQuality))
}

// fuseField runs the per-field decision ladder: exact agreement, fuzzy
// agreement for name-like fields, weighted voting, margin check.
func (e *Engine) fuseField(name string, live []SourceFields, reliability map[model.SourceKind]float64) model.FieldFusionResult {
	candidates := e.candidatesFor(name, live, reliability)
	result := model.FieldFusionResult{FieldName: name}
	if len(candidates) == 0 {
		result.Decision = model.DecisionBestEffort
		return result
	}
	for _, c := range candidates {
		result.Sources = append(result.Sources, c.Source)
	}

	// Exact agreement across every contributing source.
	if allAgree(candidates) {
		best := mostReliable(candidates)
		result.Value = best.Value
		result.WinnerSource = best.Source
		result.Decision = model.DecisionAllAgree
		result.Confidence = e.agreementConfidence(candidates)
		return result
	}

	// Fuzzy agreement, name-like fields only.
	if e.registry.IsNameLike(name) {
		if sim, ok := fuzzyAgree(candidates, e.cfg.FuzzyThreshold); ok {
			best := mostReliable(candidates)
			result.Value = best.Value
			result.WinnerSource = best.Source
			result.Decision = model.DecisionFuzzyAgreement
			result.Confidence = sim * e.cfg.AgreeConfidenceBase
			return result
		}
	}

	// Weighted voting over distinct values.
	winner, runnerUp, winnerShare, margin := e.vote(candidates)
	result.Value = winner.Value
	result.WinnerSource = winner.Source
	result.Confidence = winnerShare * e.cfg.AgreeConfidenceBase
	result.Decision = model.DecisionWeightedVoting

	if margin < e.cfg.ConflictMargin {
		spec := e.registry.ByKey(name)
		important := spec != nil && (spec.Critical || spec.Required)
		if important {
			result.Decision = model.DecisionConflict
			result.RequiresManualReview = true
		} else {
			result.Decision = model.DecisionBestEffort
		}
		zap.L().Warn("fusion: narrow margin between sources",
			zap.String("field", name),
			zap.String("winner", winner.Value),
			zap.String("runner_up", runnerUp.Value),
			zap.Float64("margin", margin),
			zap.String("decision", string(result.Decision)),
		)
	}
	return result
}

// candidatesFor builds the candidate list for one field, dropping values
// that fail pattern validation whenever at least one candidate passes.
func (e *Engine) candidatesFor(name string, live []SourceFields, reliability map[model.SourceKind]float64) []model.FieldCandidate {
	var all []model.FieldCandidate
	for _, s := range live {
		v, ok := s.Fields.Get(name)
		if !ok {
			continue
		}
		all = append(all, model.FieldCandidate{
			Source:       s.Kind,
			Value:        v,
			Reliability:  reliability[s.Kind],
			PatternValid: e.registry.PatternValid(name, v),
			CatalogValid: e.registry.CatalogValid(name, v),
		})
	}

	anyValid := false
	for _, c := range all {
		if c.PatternValid {
			anyValid = true
			break
		}
	}
	if !anyValid {
		return all
	}
	valid := all[:0]
	for _, c := range all {
		if c.PatternValid {
			valid = append(valid, c)
		}
	}
	return valid
}

func allAgree(candidates []model.FieldCandidate) bool {
	for _, c := range candidates[1:] {
		if !textcmp.EqualValues(candidates[0].Value, c.Value) {
			return false
		}
	}
	return true
}

func fuzzyAgree(candidates []model.FieldCandidate, threshold float64) (float64, bool) {
	minSim := 1.0
	for i := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			sim := textcmp.Similarity(candidates[i].Value, candidates[j].Value)
			if sim < minSim {
				minSim = sim
			}
		}
	}
	return minSim, minSim >= threshold
}

func mostReliable(candidates []model.FieldCandidate) model.FieldCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Reliability > best.Reliability {
			best = c
		}
	}
	return best
}

// vote groups candidates by normalized value and picks the group with the
// highest total weight. Returns the winner, the runner-up, the winner's
// share of total weight and the margin over the runner-up.
func (e *Engine) vote(candidates []model.FieldCandidate) (winner, runnerUp model.FieldCandidate, winnerShare, margin float64) {
	type group struct {
		rep    model.FieldCandidate
		weight float64
	}
	var groups []group
	total := 0.0
	for _, c := range candidates {
		w := c.Weight(e.cfg.PatternInvalidFactor, e.cfg.CatalogInvalidFactor)
		total += w
		placed := false
		for i := range groups {
			if textcmp.EqualValues(groups[i].rep.Value, c.Value) {
				groups[i].weight += w
				if c.Reliability > groups[i].rep.Reliability {
					groups[i].rep = c
				}
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, group{rep: c, weight: w})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].weight > groups[j].weight
	})
	winner = groups[0].rep
	winnerShare = groups[0].weight / total
	if len(groups) == 1 {
		return winner, winner, winnerShare, 1.0
	}
	runnerUp = groups[1].rep
	margin = (groups[0].weight - groups[1].weight) / total
	return winner, runnerUp, winnerShare, margin
}

// agreementConfidence maps full agreement into the configured band, scaled
// by average source reliability.
func (e *Engine) agreementConfidence(candidates []model.FieldCandidate) float64 {
	sum := 0.0
	for _, c := range candidates {
		sum += c.Reliability
	}
	avg := sum / float64(len(candidates))
	conf := e.cfg.AgreeConfidenceBase + (e.cfg.AgreeConfidenceMax-e.cfg.AgreeConfidenceBase)*avg
	if conf > e.cfg.AgreeConfidenceMax {
		conf = e.cfg.AgreeConfidenceMax
	}
	return conf
}

// overallConfidence blends required and optional field confidence 70/30.
// Required fields with no fused value count as zero.
func (e *Engine) overallConfidence(fieldResults []model.FieldFusionResult) float64 {
	byName := make(map[string]model.FieldFusionResult, len(fieldResults))
	for _, fr := range fieldResults {
		byName[fr.FieldName] = fr
	}

	reqSum, reqN := 0.0, 0
	for _, spec := range e.registry.Required() {
		reqN++
		if fr, ok := byName[spec.Key]; ok && fr.Value != "" {
			reqSum += fr.Confidence
		}
	}
	optSum, optN := 0.0, 0
	for _, fr := range fieldResults {
		spec := e.registry.ByKey(fr.FieldName)
		if spec != nil && spec.Required {
			continue
		}
		if fr.Value == "" {
			continue
		}
		optSum += fr.Confidence
		optN++
	}

	switch {
	case reqN == 0 && optN == 0:
		return 0
	case reqN == 0:
		return optSum / float64(optN)
	case optN == 0:
		return reqSum / float64(reqN)
	default:
		return 0.70*(reqSum/float64(reqN)) + 0.30*(optSum/float64(optN))
	}
}

func unionFieldNames(live []SourceFields) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range live {
		for _, n := range s.Fields.FieldNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

func mergeLists(dst *model.ExtractedFields, live []SourceFields) {
	seenMonto := make(map[string]bool)
	seenFecha := make(map[string]bool)
	for _, s := range live {
		for _, mo := range s.Fields.Montos {
			key, ok := textcmp.NormalizeAmount(mo.Raw)
			if !ok {
				key = textcmp.Normalize(mo.Raw)
			}
			if key == "" || seenMonto[key] {
				continue
			}
			seenMonto[key] = true
			dst.Montos = append(dst.Montos, mo)
		}
		for _, fe := range s.Fields.Fechas {
			key := textcmp.Normalize(fe)
			if key == "" || seenFecha[key] {
				continue
			}
			seenFecha[key] = true
			dst.Fechas = append(dst.Fechas, fe)
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

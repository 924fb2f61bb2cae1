package classify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

// Config holds the classification tunables.
type Config struct {
	// HighConfidence and SpotReviewFloor split confidence into
	// trust / spot-review / manual-classification tiers.
	HighConfidence  float64 `mapstructure:"high_confidence"`
	SpotReviewFloor float64 `mapstructure:"spot_review_floor"`
	// KeywordWeight, PresenceWeight and PatternWeight blend the three
	// classification signals. They should sum to 1.
	KeywordWeight  float64 `mapstructure:"keyword_weight"`
	PresenceWeight float64 `mapstructure:"presence_weight"`
	PatternWeight  float64 `mapstructure:"pattern_weight"`
	// KeywordSaturation is how many distinct keyword hits count as full
	// keyword evidence.
	KeywordSaturation int `mapstructure:"keyword_saturation"`
}

// DefaultClassifyConfig returns the tuned starting point.
func DefaultClassifyConfig() Config {
	return Config{
		HighConfidence:    0.90,
		SpotReviewFloor:   0.70,
		KeywordWeight:     0.60,
		PresenceWeight:    0.25,
		PatternWeight:     0.15,
		KeywordSaturation: 2,
	}
}

// Classifier assigns a requirement type to an expediente and validates it
// against the Article-4 completeness checklist and the Article-17 rejection
// grounds. Stateless once built.
type Classifier struct {
	dict     *Dictionary
	registry *model.FieldRegistry
	cfg      Config
}

// New builds a classifier. A nil dictionary uses the built-in defaults.
func New(dict *Dictionary, registry *model.FieldRegistry, cfg Config) *Classifier {
	if dict == nil {
		dict = DefaultDictionary()
	}
	if registry == nil {
		registry = model.DefaultRegistry()
	}
	return &Classifier{dict: dict, registry: registry, cfg: cfg}
}

// Classify determines the requirement type and legal standing of an
// expediente. Inconclusive evidence is not an error: it yields
// TipoDesconocido with NeedsManualClass set.
func (c *Classifier) Classify(ctx context.Context, exp *model.Expediente) (*model.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := c.searchText(exp)

	best := model.TipoDesconocido
	bestConf := 0.0
	bestHits := 0
	for _, profile := range c.dict.Types {
		hits := c.keywordHits(text, profile.Keywords)
		if hits == 0 {
			continue
		}
		conf := c.score(exp, profile, hits)
		if conf > bestConf {
			best, bestConf, bestHits = profile.Type, conf, hits
		}
	}

	result := &model.ClassificationResult{
		RequirementType: best,
		Code:            best.Code(),
		Confidence:      bestConf,
		AuthorityType:   c.authorityFor(exp),
		RequiredFields:  c.dict.RequiredFieldsFor(best),
	}
	if best == model.TipoDesconocido || bestConf < c.cfg.SpotReviewFloor {
		result.NeedsManualClass = true
	} else if bestConf <= c.cfg.HighConfidence {
		result.SpotReview = true
	}

	art4 := c.ValidateArticle4(exp, best)
	result.ArticleValidation = art4
	result.RejectionReasons = c.EvaluateArticle17(exp, result.AuthorityType, best, art4)
	if len(result.RejectionReasons) > 0 {
		art4.IsRejectable = true
	}

	zap.L().Info("classified expediente",
		zap.String("type", string(best)),
		zap.Int("code", result.Code),
		zap.Float64("confidence", bestConf),
		zap.Int("keyword_hits", bestHits),
		zap.String("authority", string(result.AuthorityType)),
		zap.Int("rejection_grounds", len(result.RejectionReasons)))

	return result, nil
}

// searchText assembles the classifiable text: the free text plus the fields
// that carry directive language.
func (c *Classifier) searchText(exp *model.Expediente) string {
	parts := []string{exp.TextoLibre}
	for _, key := range []string{model.KeyActuacionSolicitada, model.KeyCausa, "TipoDocumento"} {
		if v, ok := exp.Get(key); ok {
			parts = append(parts, v)
		}
	}
	return textcmp.Normalize(strings.Join(parts, " "))
}

// keywordHits counts distinct trigger phrases present in the normalized text.
// Multi-word phrases tolerate OCR noise through fuzzy phrase search.
func (c *Classifier) keywordHits(normText string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		nkw := textcmp.Normalize(kw)
		if nkw == "" {
			continue
		}
		if strings.Contains(normText, nkw) {
			hits++
			continue
		}
		if strings.Contains(nkw, " ") {
			if _, _, ok := textcmp.FindBestPhrase(normText, nkw, 0); ok {
				hits++
			}
		}
	}
	return hits
}

func (c *Classifier) score(exp *model.Expediente, profile TypeProfile, hits int) float64 {
	sat := c.cfg.KeywordSaturation
	if sat <= 0 {
		sat = 1
	}
	keywordScore := float64(hits) / float64(sat)
	if keywordScore > 1 {
		keywordScore = 1
	}

	presenceScore := 1.0
	if len(profile.MarkerFields) > 0 {
		present := 0
		for _, key := range profile.MarkerFields {
			if _, ok := exp.Get(key); ok {
				present++
			}
		}
		presenceScore = float64(present) / float64(len(profile.MarkerFields))
	}

	checked, valid := 0, 0
	for _, key := range exp.FieldNames() {
		spec := c.registry.ByKey(key)
		if spec == nil || spec.ValidationRegex == nil {
			continue
		}
		checked++
		if v, ok := exp.Get(key); ok && c.registry.PatternValid(key, v) {
			valid++
		}
	}
	patternScore := 1.0
	if checked > 0 {
		patternScore = float64(valid) / float64(checked)
	}

	return c.cfg.KeywordWeight*keywordScore +
		c.cfg.PresenceWeight*presenceScore +
		c.cfg.PatternWeight*patternScore
}

// authorityFor derives the issuing authority's legal nature from the
// AutoridadEmisora field. Unknown phrasings map to desconocida, never an
// error.
func (c *Classifier) authorityFor(exp *model.Expediente) model.AuthorityType {
	raw, ok := exp.Get(model.KeyAutoridadEmisora)
	if !ok {
		return model.AutoridadDesconocida
	}
	norm := textcmp.Normalize(raw)

	// Fixed probe order so overlapping phrase sets resolve the same way
	// every run.
	for _, at := range []model.AuthorityType{
		model.AutoridadJudicial,
		model.AutoridadPenal,
		model.AutoridadHacendaria,
		model.AutoridadAdministrativa,
	} {
		for _, phrase := range c.dict.Authorities[at] {
			if strings.Contains(norm, textcmp.Normalize(phrase)) {
				return at
			}
		}
	}
	return model.AutoridadDesconocida
}

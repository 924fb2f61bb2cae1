package fusion

import "github.com/regtechmx/expediente-engine/internal/model"

// Config holds the fusion tunables. Every value here is tuned empirically
// per document population and must come from configuration, not code.
type Config struct {
	// SourceReliability is the base trust per source kind.
	SourceReliability map[model.SourceKind]float64 `mapstructure:"source_reliability"`
	// FuzzyThreshold is the minimum similarity for fuzzy agreement on
	// name-like fields.
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	// ConflictMargin is the minimum winning-share margin below which a
	// weighted-voting result is downgraded.
	ConflictMargin float64 `mapstructure:"conflict_margin"`
	// AutoProcessThreshold and ReviewThreshold split overall confidence
	// into auto-process / review-recommended / manual-review tiers.
	AutoProcessThreshold float64 `mapstructure:"auto_process_threshold"`
	ReviewThreshold      float64 `mapstructure:"review_threshold"`
	// AgreeConfidenceBase..AgreeConfidenceMax is the confidence band for
	// exact agreement, scaled by source reliability.
	AgreeConfidenceBase float64 `mapstructure:"agree_confidence_base"`
	AgreeConfidenceMax  float64 `mapstructure:"agree_confidence_max"`
	// PatternInvalidFactor and CatalogInvalidFactor discount a candidate's
	// vote when it fails pattern or catalog validation.
	PatternInvalidFactor float64 `mapstructure:"pattern_invalid_factor"`
	CatalogInvalidFactor float64 `mapstructure:"catalog_invalid_factor"`
	// Concurrency bounds parallel per-field fusion. <= 0 means sequential.
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns the starting tunables for a typical oficio
// population: XML is hand-keyed and most trusted, PDF OCR beats DOCX OCR.
func DefaultConfig() Config {
	return Config{
		SourceReliability: map[model.SourceKind]float64{
			model.SourceXML:     0.90,
			model.SourcePDFOCR:  0.75,
			model.SourceDOCXOCR: 0.70,
		},
		FuzzyThreshold:       0.85,
		ConflictMargin:       0.15,
		AutoProcessThreshold: 0.85,
		ReviewThreshold:      0.70,
		AgreeConfidenceBase:  0.85,
		AgreeConfidenceMax:   0.95,
		PatternInvalidFactor: 0.60,
		CatalogInvalidFactor: 0.70,
		Concurrency:          4,
	}
}

// NextActionFor maps an overall confidence to the routing decision.
// Missing required fields cap the outcome at ReviewRecommended.
func (c Config) NextActionFor(overall float64, missingRequired bool) model.NextAction {
	switch {
	case overall >= c.AutoProcessThreshold:
		if missingRequired {
			return model.ActionReviewRecommended
		}
		return model.ActionAutoProcess
	case overall >= c.ReviewThreshold:
		return model.ActionReviewRecommended
	default:
		return model.ActionManualReviewRequired
	}
}

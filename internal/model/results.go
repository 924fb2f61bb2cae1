package model

import "time"

// FieldCandidate is one proposed value for a field during fusion of that
// field. Ephemeral: built, voted on, discarded.
type FieldCandidate struct {
	Source       SourceKind `json:"source"`
	Value        string     `json:"value"`
	Reliability  float64    `json:"reliability"`
	PatternValid bool       `json:"pattern_valid"`
	CatalogValid bool       `json:"catalog_valid"`
}

// Weight is the candidate's vote weight in weighted voting.
func (c FieldCandidate) Weight(patternFactor, catalogFactor float64) float64 {
	w := c.Reliability
	if !c.PatternValid {
		w *= patternFactor
	}
	if !c.CatalogValid {
		w *= catalogFactor
	}
	return w
}

// FieldConflict records a disagreement between sources for one field and how
// it was resolved. Never mutated after creation.
type FieldConflict struct {
	FieldName  string   `json:"field_name"`
	Values     []string `json:"values"`
	Resolved   string   `json:"resolved,omitempty"`
	Resolution string   `json:"resolution"`
}

// MergeResult is the outcome of merging N extracted field sets.
type MergeResult struct {
	MergedFields     *ExtractedFields `json:"merged_fields"`
	Conflicts        []FieldConflict  `json:"conflicts,omitempty"`
	MergedFieldNames []string         `json:"merged_field_names,omitempty"`
	SourceCount      int              `json:"source_count"`
}

// FusionDecision tags how a fused field value was chosen.
type FusionDecision string

const (
	DecisionAllAgree       FusionDecision = "all_agree"
	DecisionFuzzyAgreement FusionDecision = "fuzzy_agreement"
	DecisionWeightedVoting FusionDecision = "weighted_voting"
	DecisionConflict       FusionDecision = "conflict"
	DecisionBestEffort     FusionDecision = "best_effort"
)

// FieldFusionResult is the per-field outcome of source fusion.
type FieldFusionResult struct {
	FieldName            string         `json:"field_name"`
	Value                string         `json:"value,omitempty"`
	Confidence           float64        `json:"confidence"`
	Decision             FusionDecision `json:"decision"`
	Sources              []SourceKind   `json:"sources,omitempty"`
	WinnerSource         SourceKind     `json:"winner_source,omitempty"`
	RequiresManualReview bool           `json:"requires_manual_review,omitempty"`
}

// NextAction is the routing decision for a fused record.
type NextAction string

const (
	ActionAutoProcess          NextAction = "auto_process"
	ActionReviewRecommended    NextAction = "review_recommended"
	ActionManualReviewRequired NextAction = "manual_review_required"
)

// FusionResult is the fully reconciled record with provenance.
type FusionResult struct {
	Expediente        *Expediente                  `json:"expediente"`
	OverallConfidence float64                      `json:"overall_confidence"`
	NextAction        NextAction                   `json:"next_action"`
	FieldResults      map[string]FieldFusionResult `json:"field_results"`
	SourceReliability map[SourceKind]float64       `json:"source_reliability"`
	ConflictingFields []string                     `json:"conflicting_fields,omitempty"`
	MissingRequired   []string                     `json:"missing_required,omitempty"`
}

// RequirementType is one of the five known regulatory requirement types.
type RequirementType string

const (
	TipoAseguramiento RequirementType = "Aseguramiento"
	TipoDesbloqueo    RequirementType = "Desbloqueo"
	TipoInformacion   RequirementType = "Informacion"
	TipoDocumentacion RequirementType = "Documentacion"
	TipoTransferencia RequirementType = "Transferencia"
	TipoDesconocido   RequirementType = "Desconocido"
)

// Code returns the numeric requirement-type code, 0 for unknown.
func (t RequirementType) Code() int {
	switch t {
	case TipoAseguramiento:
		return 101
	case TipoDesbloqueo:
		return 102
	case TipoInformacion:
		return 103
	case TipoDocumentacion:
		return 104
	case TipoTransferencia:
		return 105
	default:
		return 0
	}
}

// AuthorityType groups issuing authorities by their legal nature.
type AuthorityType string

const (
	AutoridadJudicial       AuthorityType = "judicial"
	AutoridadHacendaria     AuthorityType = "hacendaria"
	AutoridadAdministrativa AuthorityType = "administrativa"
	AutoridadPenal          AuthorityType = "penal"
	AutoridadDesconocida    AuthorityType = "desconocida"
)

// RejectionGround is one of the six fixed Article-17 rejection grounds.
type RejectionGround string

const (
	GroundNoLegalBasis       RejectionGround = "I_sin_fundamento_legal"
	GroundMissingSignature   RejectionGround = "II_firma_faltante"
	GroundLackOfSpecificity  RejectionGround = "III_falta_especificidad"
	GroundJurisdiction       RejectionGround = "IV_exceso_competencia"
	GroundArticle4Failure    RejectionGround = "V_incumple_articulo_4"
	GroundTechnicallyInvalid RejectionGround = "VI_imposibilidad_tecnica"
)

// ArticleValidationResult is the Article-4 checklist outcome.
type ArticleValidationResult struct {
	Passed        bool     `json:"passed"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
	IsRejectable  bool     `json:"is_rejectable"`
	Notes         string   `json:"notes,omitempty"`
}

// ClassificationResult assigns a requirement type with legal validation.
// Empty RejectionReasons means the requirement is legally enforceable.
type ClassificationResult struct {
	RequirementType   RequirementType          `json:"requirement_type"`
	Code              int                      `json:"code"`
	Confidence        float64                  `json:"confidence"`
	AuthorityType     AuthorityType            `json:"authority_type"`
	RequiredFields    []string                 `json:"required_fields"`
	ArticleValidation *ArticleValidationResult `json:"article_validation"`
	Semantic          *SemanticAnalysis        `json:"semantic,omitempty"`
	RejectionReasons  []RejectionGround        `json:"rejection_reasons,omitempty"`
	NeedsManualClass  bool                     `json:"needs_manual_classification,omitempty"`
	SpotReview        bool                     `json:"spot_review,omitempty"`
}

// DateRange is an inclusive period mentioned in a directive.
type DateRange struct {
	Desde string `json:"desde,omitempty"`
	Hasta string `json:"hasta,omitempty"`
}

// Situation is the shared header of every semantic situation.
type Situation struct {
	IsRequired bool    `json:"is_required"`
	Confidence float64 `json:"confidence"`
	Matched    string  `json:"matched,omitempty"`
}

// FreezeSituation captures an account-freeze instruction.
type FreezeSituation struct {
	Situation
	Cuentas []string `json:"cuentas,omitempty"`
	Montos  []Monto  `json:"montos,omitempty"`
}

// UnfreezeSituation captures a release instruction.
type UnfreezeSituation struct {
	Situation
	Cuentas      []string `json:"cuentas,omitempty"`
	OficioOrigen string   `json:"oficio_origen,omitempty"`
}

// DocumentationSituation captures a documentation request.
type DocumentationSituation struct {
	Situation
	TiposDocumento []string   `json:"tipos_documento,omitempty"`
	Periodo        *DateRange `json:"periodo,omitempty"`
}

// TransferSituation captures a funds-transfer instruction.
type TransferSituation struct {
	Situation
	Cuentas      []string `json:"cuentas,omitempty"`
	CLABEDestino string   `json:"clabe_destino,omitempty"`
	Montos       []Monto  `json:"montos,omitempty"`
}

// GeneralInfoSituation captures a general information request.
type GeneralInfoSituation struct {
	Situation
	Temas []string `json:"temas,omitempty"`
}

// SemanticAnalysis holds the situations detected in directive text.
// Several may be simultaneously required.
type SemanticAnalysis struct {
	Freeze        *FreezeSituation        `json:"freeze,omitempty"`
	Unfreeze      *UnfreezeSituation      `json:"unfreeze,omitempty"`
	Documentation *DocumentationSituation `json:"documentation,omitempty"`
	Transfer      *TransferSituation      `json:"transfer,omitempty"`
	GeneralInfo   *GeneralInfoSituation   `json:"general_info,omitempty"`
}

// Run is one persisted processing attempt, consumed by audit collaborators.
type Run struct {
	ID             string                `json:"id"`
	CaseID         string                `json:"case_id"`
	Fusion         *FusionResult         `json:"fusion"`
	Classification *ClassificationResult `json:"classification"`
	CreatedAt      time.Time             `json:"created_at"`
}

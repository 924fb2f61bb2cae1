package classify

import (
	"fmt"
	"regexp"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// reArticleCitation recognizes a legal-basis citation: "artículo 142",
// "artículos 115 y 116", "Art. 4".
var reArticleCitation = regexp.MustCompile(`(?i)art(?:[íi]culos?|\.)\s*\d+`)

// SubjectMarker names the synthetic Article-4 requirement that at least one
// subject identifier must be present.
const SubjectMarker = "SujetoIdentificado"

// ValidateArticle4 runs the completeness checklist for a requirement type:
// the base fields every oficio must carry, the type-specific additions, and
// at least one subject identifier.
func (c *Classifier) ValidateArticle4(exp *model.Expediente, t model.RequirementType) *model.ArticleValidationResult {
	result := &model.ArticleValidationResult{Passed: true}

	for _, key := range c.dict.RequiredFieldsFor(t) {
		if v, ok := exp.Get(key); !ok || v == "" {
			result.MissingFields = append(result.MissingFields, key)
		}
	}

	if !c.hasSubject(exp) {
		result.MissingFields = append(result.MissingFields, SubjectMarker)
		result.Reasons = append(result.Reasons, "el requerimiento no identifica al sujeto por nombre, razón social ni identificador")
	}

	if len(result.MissingFields) > 0 {
		result.Passed = false
		result.IsRejectable = true
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("faltan %d campos obligatorios del artículo 4", len(result.MissingFields)))
	}
	return result
}

// EvaluateArticle17 checks the six legal grounds under which a requirement
// may be rejected. Grounds are reported in their statutory order.
func (c *Classifier) EvaluateArticle17(exp *model.Expediente, authority model.AuthorityType, t model.RequirementType, art4 *model.ArticleValidationResult) []model.RejectionGround {
	var grounds []model.RejectionGround

	// I: no legal basis, or a basis that cites no article.
	if exp.FundamentoLegal == "" || !reArticleCitation.MatchString(exp.FundamentoLegal) {
		grounds = append(grounds, model.GroundNoLegalBasis)
	}

	// II: unsigned oficio.
	firmante, _ := exp.Get("Firmante")
	cargo, _ := exp.Get("CargoFirmante")
	if firmante == "" && cargo == "" {
		grounds = append(grounds, model.GroundMissingSignature)
	}

	// III: nothing to act on. No subject, no account, no requested action.
	if (!c.hasSubject(exp) && !c.hasAccount(exp)) || exp.ActuacionSolicitada == "" {
		grounds = append(grounds, model.GroundLackOfSpecificity)
	}

	// IV: the authority type may not order this requirement type.
	if t != model.TipoDesconocido && !c.actionAllowed(authority, t) {
		grounds = append(grounds, model.GroundJurisdiction)
	}

	// V: Article-4 checklist failed.
	if art4 != nil && !art4.Passed {
		grounds = append(grounds, model.GroundArticle4Failure)
	}

	// VI: the instruction cannot be executed as stated.
	if c.technicallyImpossible(exp, t) {
		grounds = append(grounds, model.GroundTechnicallyInvalid)
	}

	return grounds
}

func (c *Classifier) hasSubject(exp *model.Expediente) bool {
	for _, key := range c.dict.SubjectFields {
		if v, ok := exp.Get(key); ok && v != "" {
			return true
		}
	}
	return false
}

func (c *Classifier) hasAccount(exp *model.Expediente) bool {
	for _, key := range []string{"CLABE", "NumeroCuenta", "CLABEDestino"} {
		if v, ok := exp.Get(key); ok && v != "" {
			return true
		}
	}
	return false
}

func (c *Classifier) actionAllowed(authority model.AuthorityType, t model.RequirementType) bool {
	for _, allowed := range c.dict.AllowedActions[authority] {
		if allowed == t {
			return true
		}
	}
	return false
}

// technicallyImpossible flags instructions the institution cannot execute:
// account operations against malformed account references, or a transfer
// without a valid destination.
func (c *Classifier) technicallyImpossible(exp *model.Expediente, t model.RequirementType) bool {
	switch t {
	case model.TipoAseguramiento, model.TipoDesbloqueo, model.TipoTransferencia:
		for _, key := range []string{"CLABE", "NumeroCuenta"} {
			if v, ok := exp.Get(key); ok && v != "" && !c.registry.PatternValid(key, v) {
				return true
			}
		}
		if t == model.TipoTransferencia {
			dest, ok := exp.Get("CLABEDestino")
			if !ok || dest == "" {
				return true
			}
			if !c.registry.PatternValid("CLABEDestino", dest) {
				return true
			}
		}
	}
	return false
}

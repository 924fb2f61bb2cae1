package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// TypeProfile is the classification signal set for one requirement type:
// trigger phrases, the fields whose presence corroborates the type, and the
// Article-4 additions on top of the base checklist.
type TypeProfile struct {
	Type           model.RequirementType `yaml:"type"`
	Keywords       []string              `yaml:"keywords"`
	MarkerFields   []string              `yaml:"marker_fields"`
	RequiredFields []string              `yaml:"required_fields"`
}

// Dictionary is the classification knowledge base. It is data, not code:
// new phrasings and tuned keyword sets ship as YAML, the engine never
// hard-codes them.
type Dictionary struct {
	Types []TypeProfile `yaml:"types"`
	// BaseRequired is the Article-4 checklist shared by every type (the
	// "Informacion" base). Higher types add their own fields on top.
	BaseRequired []string `yaml:"base_required"`
	// SubjectFields: Article-4 demands at least one of these to identify
	// the subject of the requirement.
	SubjectFields []string `yaml:"subject_fields"`
	// Authorities maps authority types to the phrases that identify them
	// in the AutoridadEmisora field.
	Authorities map[model.AuthorityType][]string `yaml:"authorities"`
	// AllowedActions lists which requirement types each authority type may
	// legally order. Requests outside the list are jurisdiction overreach.
	AllowedActions map[model.AuthorityType][]model.RequirementType `yaml:"allowed_actions"`
}

// DefaultDictionary returns the built-in knowledge base for the CNBV-style
// requerimiento population this engine was tuned on.
func DefaultDictionary() *Dictionary {
	return &Dictionary{
		Types: []TypeProfile{
			{
				Type:           model.TipoAseguramiento,
				Keywords:       []string{"aseguramiento", "asegurar", "bloquear", "bloqueo", "congelar", "inmovilizar", "embargo", "cuenta"},
				MarkerFields:   []string{model.KeyMontoSolicitado},
				RequiredFields: []string{model.KeyMontoSolicitado},
			},
			{
				Type:           model.TipoDesbloqueo,
				Keywords:       []string{"desbloqueo", "desbloquear", "liberar", "liberacion", "levantamiento", "dejar sin efecto"},
				MarkerFields:   []string{"OficioOrigen"},
				RequiredFields: []string{"OficioOrigen"},
			},
			{
				Type:         model.TipoInformacion,
				Keywords:     []string{"informacion", "informe", "proporcionar datos", "hacer del conocimiento", "estado que guarda"},
				MarkerFields: nil,
			},
			{
				Type:           model.TipoDocumentacion,
				Keywords:       []string{"documentacion", "estados de cuenta", "contrato", "expediente de identificacion", "copia certificada"},
				MarkerFields:   []string{"TipoDocumento"},
				RequiredFields: []string{"TipoDocumento"},
			},
			{
				Type:           model.TipoTransferencia,
				Keywords:       []string{"transferencia", "transferir", "traspaso", "poner a disposicion", "entero"},
				MarkerFields:   []string{model.KeyMontoSolicitado, "CLABEDestino"},
				RequiredFields: []string{model.KeyMontoSolicitado, "CLABEDestino"},
			},
		},
		BaseRequired: []string{
			model.KeyNumeroOficio,
			model.KeyAutoridadEmisora,
			model.KeyFundamentoLegal,
			model.KeyActuacionSolicitada,
		},
		SubjectFields: []string{"Nombre", "RazonSocial", "RFC", "CURP", "CLABE", "NumeroCuenta"},
		Authorities: map[model.AuthorityType][]string{
			model.AutoridadJudicial:       {"juzgado", "tribunal", "juez", "judicial", "sala"},
			model.AutoridadHacendaria:     {"sat", "hacienda", "fiscal", "tributaria", "administracion tributaria"},
			model.AutoridadAdministrativa: {"cnbv", "condusef", "uif", "comision nacional", "unidad de inteligencia"},
			model.AutoridadPenal:          {"fiscalia", "ministerio publico", "fgr", "pgr", "agente del ministerio"},
		},
		AllowedActions: map[model.AuthorityType][]model.RequirementType{
			model.AutoridadJudicial:       {model.TipoAseguramiento, model.TipoDesbloqueo, model.TipoInformacion, model.TipoDocumentacion, model.TipoTransferencia},
			model.AutoridadPenal:          {model.TipoAseguramiento, model.TipoDesbloqueo, model.TipoInformacion, model.TipoDocumentacion},
			model.AutoridadHacendaria:     {model.TipoAseguramiento, model.TipoInformacion, model.TipoDocumentacion},
			model.AutoridadAdministrativa: {model.TipoAseguramiento, model.TipoDesbloqueo, model.TipoInformacion, model.TipoDocumentacion},
			model.AutoridadDesconocida:    {model.TipoInformacion, model.TipoDocumentacion},
		},
	}
}

// LoadDictionary reads a dictionary from YAML. Sections missing from the
// file fall back to the built-in defaults, mirroring how field-level
// configuration degrades elsewhere in the engine.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read dictionary %s", path)
	}
	var wrapper struct {
		Classification Dictionary `yaml:"classification"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "classify: parse dictionary")
	}

	dict := wrapper.Classification
	defaults := DefaultDictionary()
	if len(dict.Types) == 0 {
		dict.Types = defaults.Types
	}
	if len(dict.BaseRequired) == 0 {
		dict.BaseRequired = defaults.BaseRequired
	}
	if len(dict.SubjectFields) == 0 {
		dict.SubjectFields = defaults.SubjectFields
	}
	if len(dict.Authorities) == 0 {
		dict.Authorities = defaults.Authorities
	}
	if len(dict.AllowedActions) == 0 {
		dict.AllowedActions = defaults.AllowedActions
	}
	return &dict, nil
}

// RequiredFieldsFor returns the full Article-4 checklist for a type: the
// base list plus the type's own additions.
func (d *Dictionary) RequiredFieldsFor(t model.RequirementType) []string {
	out := append([]string(nil), d.BaseRequired...)
	for _, p := range d.Types {
		if p.Type == t {
			out = append(out, p.RequiredFields...)
			break
		}
	}
	return out
}

// Profile returns the profile for a type, or nil.
func (d *Dictionary) Profile(t model.RequirementType) *TypeProfile {
	for i := range d.Types {
		if d.Types[i].Type == t {
			return &d.Types[i]
		}
	}
	return nil
}

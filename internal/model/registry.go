package model

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldSpec describes how one field behaves during merge, fusion and
// validation. Validation is a regex source; Catalog is a closed value list.
type FieldSpec struct {
	Key             string         `yaml:"key"`
	Required        bool           `yaml:"required"`
	Critical        bool           `yaml:"critical"`
	NameLike        bool           `yaml:"name_like"`
	Validation      string         `yaml:"validation,omitempty"`
	ValidationRegex *regexp.Regexp `yaml:"-"`
	Catalog         []string       `yaml:"catalog,omitempty"`
}

// FieldRegistry is an indexed collection of field specs.
type FieldRegistry struct {
	Specs    []FieldSpec
	byKey    map[string]*FieldSpec
	required []*FieldSpec
}

// NewFieldRegistry builds a registry with indexed lookups and pre-compiled
// validation regexes. Specs with invalid regexes keep a nil ValidationRegex
// and validate as pass-through.
func NewFieldRegistry(specs []FieldSpec) *FieldRegistry {
	r := &FieldRegistry{
		Specs: specs,
		byKey: make(map[string]*FieldSpec, len(specs)),
	}
	for i := range r.Specs {
		s := &r.Specs[i]
		if s.Validation != "" {
			if re, err := regexp.Compile(s.Validation); err == nil {
				s.ValidationRegex = re
			}
		}
		r.byKey[s.Key] = s
		if s.Required {
			r.required = append(r.required, s)
		}
	}
	return r
}

// ByKey returns the spec for a field key, or nil if unknown.
func (r *FieldRegistry) ByKey(key string) *FieldSpec {
	return r.byKey[key]
}

// Required returns all required field specs in declaration order.
func (r *FieldRegistry) Required() []*FieldSpec {
	return r.required
}

// IsCritical reports whether a field is marked critical. Unknown fields are
// not critical.
func (r *FieldRegistry) IsCritical(key string) bool {
	s := r.byKey[key]
	return s != nil && s.Critical
}

// IsNameLike reports whether fuzzy agreement applies to a field.
func (r *FieldRegistry) IsNameLike(key string) bool {
	s := r.byKey[key]
	return s != nil && s.NameLike
}

// PatternValid checks a value against the field's validation regex.
// Fields without a regex always pass.
func (r *FieldRegistry) PatternValid(key, value string) bool {
	s := r.byKey[key]
	if s == nil || s.ValidationRegex == nil {
		return true
	}
	return s.ValidationRegex.MatchString(strings.TrimSpace(value))
}

// CatalogValid checks a value against the field's catalog, case-insensitively.
// Fields without a catalog always pass.
func (r *FieldRegistry) CatalogValid(key, value string) bool {
	s := r.byKey[key]
	if s == nil || len(s.Catalog) == 0 {
		return true
	}
	v := strings.ToLower(strings.TrimSpace(value))
	for _, c := range s.Catalog {
		if strings.ToLower(c) == v {
			return true
		}
	}
	return false
}

// DefaultRegistry returns the built-in field registry for expediente
// processing. Callers tuning a document population override it from YAML
// via LoadRegistry.
func DefaultRegistry() *FieldRegistry {
	return NewFieldRegistry([]FieldSpec{
		{Key: KeyNumeroExpediente, Required: true, Critical: true, Validation: `^[A-Z0-9ÑÁÉÍÓÚ./-]{4,40}$`},
		{Key: KeyNumeroOficio, Required: true, Validation: `^[A-Z0-9ÑÁÉÍÓÚ./-]{4,40}$`},
		{Key: KeyCausa, Required: true, Catalog: []string{"Aseguramiento", "Judicial", "Administrativa", "Hacendaria", "Penal"}},
		{Key: KeyActuacionSolicitada, Required: true},
		{Key: KeyFundamentoLegal, Required: true},
		{Key: KeyAutoridadEmisora, Required: true},
		{Key: KeyFechaEmision},
		{Key: KeyFechaRecepcion},
		{Key: KeyMontoSolicitado, Critical: true},
		{Key: "Nombre", NameLike: true},
		{Key: "Paterno", NameLike: true},
		{Key: "Materno", NameLike: true},
		{Key: "RazonSocial", NameLike: true},
		{Key: "RFC", Validation: `^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`},
		{Key: "CURP", Validation: `^[A-Z]{4}\d{6}[HM][A-Z]{5}[A-Z0-9]\d$`},
		{Key: "CLABE", Critical: true, Validation: `^\d{18}$`},
		{Key: "NumeroCuenta", Critical: true, Validation: `^\d{10,20}$`},
		{Key: "CLABEDestino", Validation: `^\d{18}$`},
		{Key: "Firmante"},
		{Key: "CargoFirmante"},
		{Key: "OficioOrigen"},
		{Key: "TipoDocumento"},
	})
}

// LoadRegistry reads field specs from a YAML file. Specs listed in the file
// replace the built-in spec for the same key; unknown keys are appended.
func LoadRegistry(path string) (*FieldRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read registry %s", path)
	}
	var wrapper struct {
		Fields []FieldSpec `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "model: parse registry")
	}

	base := DefaultRegistry()
	merged := make([]FieldSpec, 0, len(base.Specs)+len(wrapper.Fields))
	override := make(map[string]FieldSpec, len(wrapper.Fields))
	for _, s := range wrapper.Fields {
		override[s.Key] = s
	}
	for _, s := range base.Specs {
		if o, ok := override[s.Key]; ok {
			merged = append(merged, o)
			delete(override, s.Key)
			continue
		}
		merged = append(merged, s)
	}
	for _, s := range wrapper.Fields {
		if _, ok := override[s.Key]; ok {
			merged = append(merged, s)
		}
	}
	return NewFieldRegistry(merged), nil
}

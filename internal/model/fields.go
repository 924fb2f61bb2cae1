package model

import (
	"sort"
	"strings"
)

// SourceKind identifies which document source produced a set of fields.
type SourceKind string

const (
	SourceXML     SourceKind = "xml"
	SourcePDFOCR  SourceKind = "pdf_ocr"
	SourceDOCXOCR SourceKind = "docx_ocr"
)

// Core field keys. These are the fields every parser and strategy reports
// under a fixed name; anything else goes into AdditionalFields.
const (
	KeyNumeroExpediente    = "NumeroExpediente"
	KeyNumeroOficio        = "NumeroOficio"
	KeyCausa               = "Causa"
	KeyActuacionSolicitada = "ActuacionSolicitada"
	KeyFundamentoLegal     = "FundamentoLegal"
	KeyAutoridadEmisora    = "AutoridadEmisora"
	KeyFechaEmision        = "FechaEmision"
	KeyFechaRecepcion      = "FechaRecepcion"
	KeyMontoSolicitado     = "MontoSolicitado"
)

// coreKeys is the fixed iteration order for core fields. Deterministic
// ordering matters because merge and fusion results are diffed downstream.
var coreKeys = []string{
	KeyNumeroExpediente,
	KeyNumeroOficio,
	KeyCausa,
	KeyActuacionSolicitada,
	KeyFundamentoLegal,
	KeyAutoridadEmisora,
	KeyFechaEmision,
	KeyFechaRecepcion,
	KeyMontoSolicitado,
}

// Monto is a monetary amount as extracted from a document.
type Monto struct {
	Raw    string  `json:"raw"`
	Valor  float64 `json:"valor"`
	Moneda string  `json:"moneda,omitempty"`
}

// ExtractionMetadata describes the quality of one source's extraction.
// OCR sources carry the OCR engine's confidence and an image quality score;
// XML carries neither (both zero means "not applicable", not "bad").
type ExtractionMetadata struct {
	OCRConfidence float64 `json:"ocr_confidence,omitempty"`
	ImageQuality  float64 `json:"image_quality,omitempty"`
	HasOCR        bool    `json:"has_ocr"`
}

// ExtractedFields is a sparse bag of fields pulled from one document by one
// strategy or source parser. A nil *ExtractedFields means "nothing extracted";
// merge operations never return nil but may return an empty instance.
type ExtractedFields struct {
	NumeroExpediente    string `json:"numero_expediente,omitempty"`
	NumeroOficio        string `json:"numero_oficio,omitempty"`
	Causa               string `json:"causa,omitempty"`
	ActuacionSolicitada string `json:"actuacion_solicitada,omitempty"`
	FundamentoLegal     string `json:"fundamento_legal,omitempty"`
	AutoridadEmisora    string `json:"autoridad_emisora,omitempty"`
	FechaEmision        string `json:"fecha_emision,omitempty"`
	FechaRecepcion      string `json:"fecha_recepcion,omitempty"`
	MontoSolicitado     string `json:"monto_solicitado,omitempty"`

	// AdditionalFields holds open-ended fields (Paterno, CLABE, RFC, ...).
	AdditionalFields map[string]string `json:"additional_fields,omitempty"`

	// Montos and Fechas are list-valued: merged by union, not precedence.
	Montos []Monto  `json:"montos,omitempty"`
	Fechas []string `json:"fechas,omitempty"`
}

// NewExtractedFields returns an empty field set ready for Set calls.
func NewExtractedFields() *ExtractedFields {
	return &ExtractedFields{AdditionalFields: make(map[string]string)}
}

// Get returns the value for a field key. Core keys resolve to struct fields,
// everything else to AdditionalFields. ok is false for empty values.
func (f *ExtractedFields) Get(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	var v string
	switch key {
	case KeyNumeroExpediente:
		v = f.NumeroExpediente
	case KeyNumeroOficio:
		v = f.NumeroOficio
	case KeyCausa:
		v = f.Causa
	case KeyActuacionSolicitada:
		v = f.ActuacionSolicitada
	case KeyFundamentoLegal:
		v = f.FundamentoLegal
	case KeyAutoridadEmisora:
		v = f.AutoridadEmisora
	case KeyFechaEmision:
		v = f.FechaEmision
	case KeyFechaRecepcion:
		v = f.FechaRecepcion
	case KeyMontoSolicitado:
		v = f.MontoSolicitado
	default:
		v = f.AdditionalFields[key]
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Set stores a value under a field key.
func (f *ExtractedFields) Set(key, value string) {
	switch key {
	case KeyNumeroExpediente:
		f.NumeroExpediente = value
	case KeyNumeroOficio:
		f.NumeroOficio = value
	case KeyCausa:
		f.Causa = value
	case KeyActuacionSolicitada:
		f.ActuacionSolicitada = value
	case KeyFundamentoLegal:
		f.FundamentoLegal = value
	case KeyAutoridadEmisora:
		f.AutoridadEmisora = value
	case KeyFechaEmision:
		f.FechaEmision = value
	case KeyFechaRecepcion:
		f.FechaRecepcion = value
	case KeyMontoSolicitado:
		f.MontoSolicitado = value
	default:
		if f.AdditionalFields == nil {
			f.AdditionalFields = make(map[string]string)
		}
		f.AdditionalFields[key] = value
	}
}

// FieldNames returns the keys of all populated scalar fields, core keys in
// fixed order followed by additional keys sorted alphabetically.
func (f *ExtractedFields) FieldNames() []string {
	if f == nil {
		return nil
	}
	var names []string
	for _, k := range coreKeys {
		if _, ok := f.Get(k); ok {
			names = append(names, k)
		}
	}
	extra := make([]string, 0, len(f.AdditionalFields))
	for k := range f.AdditionalFields {
		if strings.TrimSpace(f.AdditionalFields[k]) != "" {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Count reports how many scalar fields are populated.
func (f *ExtractedFields) Count() int {
	return len(f.FieldNames())
}

// IsEmpty reports whether nothing at all was extracted.
func (f *ExtractedFields) IsEmpty() bool {
	return f == nil || (f.Count() == 0 && len(f.Montos) == 0 && len(f.Fechas) == 0)
}

// Clone returns a deep copy.
func (f *ExtractedFields) Clone() *ExtractedFields {
	if f == nil {
		return nil
	}
	out := *f
	if f.AdditionalFields != nil {
		out.AdditionalFields = make(map[string]string, len(f.AdditionalFields))
		for k, v := range f.AdditionalFields {
			out.AdditionalFields[k] = v
		}
	}
	out.Montos = append([]Monto(nil), f.Montos...)
	out.Fechas = append([]string(nil), f.Fechas...)
	return &out
}

package extract

import (
	"regexp"
	"strings"

	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

// Value patterns shared by all strategies. These match the surface forms the
// three document populations actually produce, OCR noise included.
var (
	reMonto  = regexp.MustCompile(`\$\s*\d[\d,]*(?:\.\d{1,2})?`)
	reFecha  = regexp.MustCompile(`(?i)\b\d{1,2}\s+de\s+[a-záéíóú]+\s+de\s+\d{4}\b|\b\d{1,2}[/-]\d{1,2}[/-]\d{4}\b`)
	reCLABE  = regexp.MustCompile(`\b\d{18}\b`)
	reCuenta = regexp.MustCompile(`\b\d{10,20}\b`)
	reRFC    = regexp.MustCompile(`\b[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}\b`)
	reCURP   = regexp.MustCompile(`\b[A-Z]{4}\d{6}[HM][A-Z]{5}[A-Z0-9]\d\b`)
)

// labelAliases maps the label phrases seen in oficios to canonical field
// keys. Contextual and table strategies match against these, fuzzily.
var labelAliases = map[string][]string{
	model.KeyNumeroExpediente:    {"expediente", "no. de expediente", "numero de expediente", "expediente no"},
	model.KeyNumeroOficio:        {"oficio", "no. de oficio", "numero de oficio", "oficio no"},
	model.KeyCausa:               {"causa", "motivo", "tipo de requerimiento"},
	model.KeyActuacionSolicitada: {"actuacion solicitada", "se solicita", "accion solicitada", "solicitud"},
	model.KeyFundamentoLegal:     {"fundamento legal", "fundamento", "con fundamento en"},
	model.KeyAutoridadEmisora:    {"autoridad emisora", "autoridad", "emisor", "dependencia"},
	model.KeyFechaEmision:        {"fecha de emision", "fecha del oficio", "emitido el"},
	model.KeyFechaRecepcion:      {"fecha de recepcion", "recibido el"},
	model.KeyMontoSolicitado:     {"monto solicitado", "monto", "importe", "cantidad"},
	"Nombre":                     {"nombre", "nombre(s)", "nombres"},
	"Paterno":                    {"apellido paterno", "paterno", "primer apellido"},
	"Materno":                    {"apellido materno", "materno", "segundo apellido"},
	"RazonSocial":                {"razon social", "denominacion"},
	"RFC":                        {"rfc", "registro federal de contribuyentes"},
	"CURP":                       {"curp", "clave unica de registro de poblacion"},
	"CLABE":                      {"clabe", "clabe interbancaria", "cuenta clabe"},
	"NumeroCuenta":               {"numero de cuenta", "cuenta", "no. de cuenta", "cta"},
	"Firmante":                   {"firma", "firmante", "atentamente", "suscribe"},
	"TipoDocumento":              {"tipo de documento", "documentacion solicitada"},
}

// extractMontos pulls every monetary amount in the text, deduplicated by
// normalized value.
func extractMontos(text string) []model.Monto {
	seen := make(map[string]bool)
	var out []model.Monto
	for _, raw := range reMonto.FindAllString(text, -1) {
		valor, ok := textcmp.ParseAmount(raw)
		if !ok {
			continue
		}
		key, _ := textcmp.NormalizeAmount(raw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.Monto{Raw: strings.TrimSpace(raw), Valor: valor, Moneda: "MXN"})
	}
	return out
}

// extractFechas pulls every date mention, deduplicated.
func extractFechas(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range reFecha.FindAllString(text, -1) {
		key := textcmp.Normalize(raw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(raw))
	}
	return out
}

// extractIdentifiers fills structural identifiers (RFC, CURP, CLABE) that
// are recognizable anywhere in the text without a label.
func extractIdentifiers(text string, into *model.ExtractedFields) {
	if v := reCURP.FindString(text); v != "" {
		setIfEmpty(into, "CURP", v)
	}
	if v := reRFC.FindString(text); v != "" {
		// CURP matches the RFC shape's prefix; skip values already claimed.
		if curp, _ := into.Get("CURP"); !strings.HasPrefix(curp, v) {
			setIfEmpty(into, "RFC", v)
		}
	}
	if v := reCLABE.FindString(text); v != "" {
		setIfEmpty(into, "CLABE", v)
	}
}

func setIfEmpty(f *model.ExtractedFields, key, value string) {
	if _, ok := f.Get(key); !ok {
		f.Set(key, strings.TrimSpace(value))
	}
}

// cleanValue trims a captured value down to something storable: no label
// remnants, no trailing punctuation, single-spaced.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, ":;,.")
	return strings.Join(strings.Fields(v), " ")
}

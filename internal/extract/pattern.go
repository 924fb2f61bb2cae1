package extract

import (
	"context"
	"regexp"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// patternStrategy matches the standard headings of a well-formed oficio,
// one per line: "Expediente No.: ...", "Oficio: ...", and so on. It is the
// highest-precision strategy and gets first tie-break priority.
type patternStrategy struct{}

// NewPatternStrategy returns the heading-based strategy.
func NewPatternStrategy() Strategy { return patternStrategy{} }

var headingPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{model.KeyNumeroExpediente, regexp.MustCompile(`(?im)^[ \t]*expediente[ \t]*(?:no\.?|n[uú]m(?:ero)?\.?|#)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyNumeroOficio, regexp.MustCompile(`(?im)^[ \t]*oficio[ \t]*(?:no\.?|n[uú]m(?:ero)?\.?|#)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyCausa, regexp.MustCompile(`(?im)^[ \t]*causa[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyActuacionSolicitada, regexp.MustCompile(`(?im)^[ \t]*actuaci[oó]n[ \t]+solicitada[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyFundamentoLegal, regexp.MustCompile(`(?im)^[ \t]*fundamento[ \t]+legal[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyAutoridadEmisora, regexp.MustCompile(`(?im)^[ \t]*autoridad(?:[ \t]+emisora)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyFechaEmision, regexp.MustCompile(`(?im)^[ \t]*fecha(?:[ \t]+de[ \t]+emisi[oó]n)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyFechaRecepcion, regexp.MustCompile(`(?im)^[ \t]*fecha[ \t]+de[ \t]+recepci[oó]n[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{model.KeyMontoSolicitado, regexp.MustCompile(`(?im)^[ \t]*monto(?:[ \t]+solicitado)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"Nombre", regexp.MustCompile(`(?im)^[ \t]*nombre(?:\(s\)|s)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"Paterno", regexp.MustCompile(`(?im)^[ \t]*(?:apellido[ \t]+)?paterno[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"Materno", regexp.MustCompile(`(?im)^[ \t]*(?:apellido[ \t]+)?materno[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"RFC", regexp.MustCompile(`(?im)^[ \t]*r\.?f\.?c\.?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"CURP", regexp.MustCompile(`(?im)^[ \t]*c\.?u\.?r\.?p\.?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"CLABE", regexp.MustCompile(`(?im)^[ \t]*clabe(?:[ \t]+interbancaria)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"NumeroCuenta", regexp.MustCompile(`(?im)^[ \t]*(?:n[uú]mero[ \t]+de[ \t]+)?cuenta[ \t]*(?:no\.?)?[ \t]*[:.][ \t]*(\S[^\n]*)`)},
	{"Firmante", regexp.MustCompile(`(?im)^[ \t]*firmante[ \t]*[:.][ \t]*(\S[^\n]*)`)},
}

func (patternStrategy) Name() string  { return "pattern" }
func (patternStrategy) Priority() int { return 1 }

func (patternStrategy) CanHandle(text string) bool {
	for _, hp := range headingPatterns {
		if hp.re.MatchString(text) {
			return true
		}
	}
	return false
}

// Confidence scales with heading coverage: each matched heading is strong
// evidence this is a form-style document.
func (patternStrategy) Confidence(text string) int {
	hits := 0
	for _, hp := range headingPatterns {
		if hp.re.MatchString(text) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	conf := 40 + hits*8
	if conf > 95 {
		conf = 95
	}
	return conf
}

func (patternStrategy) Extract(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields := model.NewExtractedFields()
	for _, hp := range headingPatterns {
		m := hp.re.FindStringSubmatch(doc.Text)
		if m == nil {
			continue
		}
		if v := cleanValue(m[1]); v != "" {
			fields.Set(hp.key, v)
		}
	}
	if fields.Count() == 0 {
		return nil, nil
	}
	extractIdentifiers(doc.Text, fields)
	fields.Montos = extractMontos(doc.Text)
	fields.Fechas = extractFechas(doc.Text)
	return fields, nil
}

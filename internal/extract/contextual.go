package extract

import (
	"context"
	"strings"

	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

// contextualStrategy handles prose-style documents: it locates a label
// phrase anywhere in the running text and reads the value adjacent to it.
// Useful when OCR flattened the layout and headings no longer start lines.
type contextualStrategy struct{}

// NewContextualStrategy returns the label-context strategy.
func NewContextualStrategy() Strategy { return contextualStrategy{} }

func (contextualStrategy) Name() string  { return "contextual" }
func (contextualStrategy) Priority() int { return 2 }

func (contextualStrategy) CanHandle(text string) bool {
	norm := textcmp.Normalize(text)
	for _, aliases := range labelAliases {
		for _, a := range aliases {
			if strings.Contains(norm, a) {
				return true
			}
		}
	}
	return false
}

func (s contextualStrategy) Confidence(text string) int {
	norm := textcmp.Normalize(text)
	hits := 0
	for _, aliases := range labelAliases {
		for _, a := range aliases {
			if strings.Contains(norm, a) {
				hits++
				break
			}
		}
	}
	if hits == 0 {
		return 0
	}
	conf := 25 + hits*7
	if conf > 85 {
		conf = 85
	}
	return conf
}

func (s contextualStrategy) Extract(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields := model.NewExtractedFields()
	words := strings.Fields(doc.Text)
	normWords := make([]string, len(words))
	for i, w := range words {
		normWords[i] = textcmp.Normalize(w)
	}

	// Deterministic key order: core keys first, then sorted extras, same as
	// the model's field ordering.
	for _, key := range orderedLabelKeys() {
		if _, ok := fields.Get(key); ok {
			continue
		}
		for _, alias := range labelAliases[key] {
			aliasWords := strings.Fields(alias)
			idx := findLabel(normWords, aliasWords)
			if idx < 0 {
				continue
			}
			value := readAdjacentValue(words, idx+len(aliasWords))
			if value != "" {
				fields.Set(key, value)
				break
			}
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

// findLabel locates a label phrase in the normalized word stream. Labels may
// carry trailing colons glued to the last word.
func findLabel(normWords, aliasWords []string) int {
	if len(aliasWords) == 0 || len(aliasWords) > len(normWords) {
		return -1
	}
	for i := 0; i+len(aliasWords) <= len(normWords); i++ {
		match := true
		for j, aw := range aliasWords {
			w := strings.Trim(normWords[i+j], ":.;,")
			last := j == len(aliasWords)-1
			if w != aw && !(last && strings.TrimSuffix(w, ":") == aw) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// readAdjacentValue reads the value following a label: up to six words,
// stopping at the next label-looking token or sentence break.
func readAdjacentValue(words []string, start int) string {
	if start >= len(words) {
		return ""
	}
	connectors := map[string]bool{"no": true, "no.": true, "num": true, "num.": true, "numero": true, "número": true, "#": true, "de": true}
	var out []string
	for i := start; i < len(words) && len(out) < 6; i++ {
		w := words[i]
		trimmed := strings.Trim(w, ":;,")
		if trimmed == "" {
			continue
		}
		// Label connectors ("Oficio No.: ...") are part of the label, not
		// the value.
		if len(out) == 0 && connectors[strings.ToLower(strings.TrimSuffix(trimmed, ":"))] {
			continue
		}
		// A token ending in ':' starts the next label.
		if strings.HasSuffix(w, ":") && len(out) > 0 {
			break
		}
		out = append(out, trimmed)
		if strings.HasSuffix(w, ".") && len(out) >= 2 {
			break
		}
	}
	return cleanValue(strings.Join(out, " "))
}

// orderedLabelKeys returns the label dictionary keys in deterministic order.
func orderedLabelKeys() []string {
	keys := []string{
		model.KeyNumeroExpediente,
		model.KeyNumeroOficio,
		model.KeyCausa,
		model.KeyActuacionSolicitada,
		model.KeyFundamentoLegal,
		model.KeyAutoridadEmisora,
		model.KeyFechaEmision,
		model.KeyFechaRecepcion,
		model.KeyMontoSolicitado,
	}
	extras := []string{"CLABE", "CURP", "CargoFirmante", "Firmante", "Materno", "Nombre", "NumeroCuenta", "Paterno", "RFC", "RazonSocial", "TipoDocumento"}
	return append(keys, extras...)
}

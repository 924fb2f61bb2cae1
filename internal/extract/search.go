package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// searchStrategy resolves cross-references: phrases like "el monto señalado"
// or "la cuenta antes referida" that point at a value stated elsewhere in
// the document. It scans backward from the reference point first, then
// forward, for the nearest value of the right kind.
type searchStrategy struct{}

// NewSearchStrategy returns the cross-reference strategy.
func NewSearchStrategy() Strategy { return searchStrategy{} }

// refKind names the value type a reference points at.
type refKind int

const (
	refMonto refKind = iota
	refCuenta
	refFecha
)

var referencePatterns = []struct {
	key  string
	kind refKind
	re   *regexp.Regexp
}{
	{model.KeyMontoSolicitado, refMonto, regexp.MustCompile(`(?i)(?:el\s+)?(?:monto|importe|cantidad)\s+(?:antes\s+)?(?:señalad[oa]|mencionad[oa]|referid[oa]|citad[oa]|indicad[oa])`)},
	{"NumeroCuenta", refCuenta, regexp.MustCompile(`(?i)(?:la\s+)?cuenta\s+(?:antes\s+)?(?:señalada|mencionada|referida|citada|indicada)`)},
	{model.KeyFechaEmision, refFecha, regexp.MustCompile(`(?i)(?:la\s+)?fecha\s+(?:antes\s+)?(?:señalada|mencionada|referida|citada|indicada)`)},
}

func (searchStrategy) Name() string  { return "search" }
func (searchStrategy) Priority() int { return 5 }

func (searchStrategy) CanHandle(text string) bool {
	for _, rp := range referencePatterns {
		if rp.re.MatchString(text) {
			return true
		}
	}
	return false
}

func (searchStrategy) Confidence(text string) int {
	hits := 0
	for _, rp := range referencePatterns {
		if rp.re.MatchString(text) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	conf := 20 + hits*15
	if conf > 65 {
		conf = 65
	}
	return conf
}

func (searchStrategy) Extract(ctx context.Context, doc Document) (*model.ExtractedFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields := model.NewExtractedFields()
	for _, rp := range referencePatterns {
		loc := rp.re.FindStringIndex(doc.Text)
		if loc == nil {
			continue
		}
		if v := resolveReference(doc.Text, loc[0], rp.kind); v != "" {
			setIfEmpty(fields, rp.key, v)
		}
	}

	if fields.Count() == 0 {
		return nil, nil
	}
	return fields, nil
}

// resolveReference finds the value nearest to the reference point, preferring
// earlier mentions (backward scan) over later ones.
func resolveReference(text string, refPos int, kind refKind) string {
	var re *regexp.Regexp
	switch kind {
	case refMonto:
		re = reMonto
	case refCuenta:
		re = reCuenta
	default:
		re = reFecha
	}

	var backward, forward string
	backDist, fwdDist := -1, -1
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[1] <= refPos {
			backward = text[loc[0]:loc[1]]
			backDist = refPos - loc[1]
		} else if forward == "" && loc[0] > refPos {
			forward = text[loc[0]:loc[1]]
			fwdDist = loc[0] - refPos
		}
	}

	switch {
	case backward != "" && forward == "":
		return strings.TrimSpace(backward)
	case backward == "" && forward != "":
		return strings.TrimSpace(forward)
	case backward != "":
		// Both exist: the backward mention wins unless the forward one is
		// dramatically closer (the reference opened a clause, e.g. "la
		// cuenta señalada: 123...").
		if fwdDist >= 0 && fwdDist*4 < backDist {
			return strings.TrimSpace(forward)
		}
		return strings.TrimSpace(backward)
	default:
		return ""
	}
}

// Package semantic detects actionable situations in directive text: freezes,
// releases, documentation requests, transfers and general information
// requests. A single oficio can require several at once.
package semantic

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/regtechmx/expediente-engine/internal/model"
	"github.com/regtechmx/expediente-engine/internal/textcmp"
)

var (
	reCuenta = regexp.MustCompile(`\b\d{10,20}\b`)
	reCLABE  = regexp.MustCompile(`\b\d{18}\b`)
	reMonto  = regexp.MustCompile(`\$\s*\d[\d,]*(?:\.\d{1,2})?`)
	reOficio = regexp.MustCompile(`\b[A-ZÁÉÍÓÚÑ]{2,10}(?:[/-][A-Z0-9ÁÉÍÓÚÑ]{1,12}){0,4}[/-]\d{2,6}[/-]\d{4}\b`)
	reFecha  = regexp.MustCompile(`(?i)\b\d{1,2}\s+de\s+[a-záéíóúñ]+\s+de\s+\d{4}\b|\b\d{1,2}/\d{1,2}/\d{4}\b`)
)

// Config holds the semantic analysis tunables.
type Config struct {
	// PhraseThreshold is the minimum fuzzy similarity for a trigger phrase
	// hit. <= 0 uses the textcmp default.
	PhraseThreshold float64 `mapstructure:"phrase_threshold"`
	// WindowBytes bounds the text window around a hit that sub-extraction
	// scans for accounts, amounts and dates.
	WindowBytes int `mapstructure:"window_bytes"`
}

// DefaultAnalyzeConfig returns the tuned starting point.
func DefaultAnalyzeConfig() Config {
	return Config{PhraseThreshold: textcmp.DefaultPhraseThreshold, WindowBytes: 180}
}

// Analyzer runs dictionary-driven situation detection. Stateless once built.
type Analyzer struct {
	dict *Dictionary
	cfg  Config
}

// New builds an analyzer. A nil dictionary uses the built-in defaults.
func New(dict *Dictionary, cfg Config) *Analyzer {
	if dict == nil {
		dict = DefaultDictionary()
	}
	if cfg.PhraseThreshold <= 0 {
		cfg.PhraseThreshold = textcmp.DefaultPhraseThreshold
	}
	if cfg.WindowBytes <= 0 {
		cfg.WindowBytes = 180
	}
	return &Analyzer{dict: dict, cfg: cfg}
}

// phraseHit is one trigger-phrase match with its surrounding text window.
type phraseHit struct {
	Phrase  string
	Matched string
	Sim     float64
	Window  string
}

// Analyze inspects the expediente's directive text and reports which
// situations it requires. Absent situations are nil; an oficio with no
// recognizable directives yields an empty analysis, not an error.
func (a *Analyzer) Analyze(ctx context.Context, exp *model.Expediente) (*model.SemanticAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(exp.TextoLibre + " " + exp.ActuacionSolicitada)
	analysis := &model.SemanticAnalysis{}
	if text == "" {
		return analysis, nil
	}

	if hits := a.matchPhrases(text, a.dict.Freeze); len(hits) > 0 {
		analysis.Freeze = &model.FreezeSituation{
			Situation: situationOf(hits),
			Cuentas:   a.accountsIn(hits),
			Montos:    a.amountsIn(hits, exp),
		}
	}
	if hits := a.matchPhrases(text, a.dict.Unfreeze); len(hits) > 0 {
		analysis.Unfreeze = &model.UnfreezeSituation{
			Situation:    situationOf(hits),
			Cuentas:      a.accountsIn(hits),
			OficioOrigen: a.originIn(hits, exp),
		}
	}
	if hits := a.matchPhrases(text, a.dict.Documentation); len(hits) > 0 {
		analysis.Documentation = &model.DocumentationSituation{
			Situation:      situationOf(hits),
			TiposDocumento: phrasesOf(hits),
			Periodo:        a.periodIn(hits),
		}
	}
	if hits := a.matchPhrases(text, a.dict.Transfer); len(hits) > 0 {
		analysis.Transfer = &model.TransferSituation{
			Situation:    situationOf(hits),
			Cuentas:      a.accountsIn(hits),
			CLABEDestino: a.destinationIn(hits, exp),
			Montos:       a.amountsIn(hits, exp),
		}
	}
	if hits := a.matchPhrases(text, a.dict.GeneralInfo); len(hits) > 0 {
		analysis.GeneralInfo = &model.GeneralInfoSituation{
			Situation: situationOf(hits),
			Temas:     phrasesOf(hits),
		}
	}

	zap.L().Debug("semantic analysis",
		zap.Bool("freeze", analysis.Freeze != nil),
		zap.Bool("unfreeze", analysis.Unfreeze != nil),
		zap.Bool("documentation", analysis.Documentation != nil),
		zap.Bool("transfer", analysis.Transfer != nil),
		zap.Bool("general_info", analysis.GeneralInfo != nil))

	return analysis, nil
}

// matchPhrases runs fuzzy phrase search for every dictionary phrase and
// returns the hits in dictionary order, each with its sub-extraction window.
func (a *Analyzer) matchPhrases(text string, phrases []string) []phraseHit {
	var hits []phraseHit
	for _, phrase := range phrases {
		matched, sim, ok := textcmp.FindBestPhrase(text, phrase, a.cfg.PhraseThreshold)
		if !ok {
			continue
		}
		hits = append(hits, phraseHit{
			Phrase:  phrase,
			Matched: matched,
			Sim:     sim,
			Window:  a.window(text, matched),
		})
	}
	return hits
}

// window cuts the text around the matched phrase. When the match cannot be
// located verbatim the whole text serves as the window.
func (a *Analyzer) window(text, matched string) string {
	idx := strings.Index(text, matched)
	if idx < 0 {
		return text
	}
	start := idx - a.cfg.WindowBytes
	if start < 0 {
		start = 0
	}
	end := idx + len(matched) + a.cfg.WindowBytes
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

// situationOf condenses hits into the shared situation header: the best
// similarity wins.
func situationOf(hits []phraseHit) model.Situation {
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Sim > best.Sim {
			best = h
		}
	}
	return model.Situation{IsRequired: true, Confidence: best.Sim, Matched: best.Matched}
}

// phrasesOf lists the dictionary phrases that matched, deduplicated, in
// dictionary order.
func phrasesOf(hits []phraseHit) []string {
	var out []string
	seen := map[string]bool{}
	for _, h := range hits {
		if !seen[h.Phrase] {
			seen[h.Phrase] = true
			out = append(out, h.Phrase)
		}
	}
	return out
}

// accountsIn collects account-number runs from the hit windows.
func (a *Analyzer) accountsIn(hits []phraseHit) []string {
	var out []string
	seen := map[string]bool{}
	for _, h := range hits {
		for _, m := range reCuenta.FindAllString(h.Window, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// amountsIn collects monetary amounts from the hit windows, falling back to
// the expediente's requested amount when the windows carry none.
func (a *Analyzer) amountsIn(hits []phraseHit, exp *model.Expediente) []model.Monto {
	var out []model.Monto
	seen := map[string]bool{}
	add := func(raw, context string) {
		v, ok := textcmp.ParseAmount(raw)
		if !ok {
			return
		}
		norm, _ := textcmp.NormalizeAmount(raw)
		if seen[norm] {
			return
		}
		seen[norm] = true
		moneda := "MXN"
		if strings.Contains(context, "USD") {
			moneda = "USD"
		}
		out = append(out, model.Monto{Raw: raw, Valor: v, Moneda: moneda})
	}

	for _, h := range hits {
		for _, m := range reMonto.FindAllString(h.Window, -1) {
			add(m, h.Window)
		}
	}
	if len(out) == 0 && exp.MontoSolicitado != "" {
		add(exp.MontoSolicitado, exp.MontoSolicitado)
	}
	return out
}

// originIn finds the oficio being revoked: an oficio-number reference near
// the release phrase, else the expediente's own OficioOrigen field.
func (a *Analyzer) originIn(hits []phraseHit, exp *model.Expediente) string {
	for _, h := range hits {
		candidates := reOficio.FindAllString(h.Window, -1)
		for _, c := range candidates {
			if c != exp.NumeroOficio {
				return c
			}
		}
	}
	if v, ok := exp.Get("OficioOrigen"); ok {
		return v
	}
	return ""
}

// destinationIn finds the transfer destination CLABE: the field when
// present, else an 18-digit run near the transfer phrase distinct from the
// subject's own CLABE.
func (a *Analyzer) destinationIn(hits []phraseHit, exp *model.Expediente) string {
	if v, ok := exp.Get("CLABEDestino"); ok && v != "" {
		return v
	}
	own, _ := exp.Get("CLABE")
	for _, h := range hits {
		for _, c := range reCLABE.FindAllString(h.Window, -1) {
			if c != own {
				return c
			}
		}
	}
	return ""
}

// periodIn extracts the requested period from the hit windows: the first two
// dates found bound the range.
func (a *Analyzer) periodIn(hits []phraseHit) *model.DateRange {
	var dates []string
	seen := map[string]bool{}
	for _, h := range hits {
		for _, d := range reFecha.FindAllString(h.Window, -1) {
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
	}
	switch len(dates) {
	case 0:
		return nil
	case 1:
		return &model.DateRange{Desde: dates[0]}
	default:
		return &model.DateRange{Desde: dates[0], Hasta: dates[1]}
	}
}

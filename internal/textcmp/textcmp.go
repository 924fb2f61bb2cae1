// Package textcmp provides pure text comparison primitives: edit distance,
// fuzzy ratios, OCR quality scoring and phrase search. Everything here is
// stateless and safe for concurrent use.
package textcmp

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultPhraseThreshold is the minimum similarity for FindBestPhrase when
// the caller passes 0.
const DefaultPhraseThreshold = 0.85

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowers case, folds accents and collapses whitespace. It is the
// canonical form used for all equality and fuzzy comparisons.
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Levenshtein returns the edit distance between two strings.
func Levenshtein(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Similarity returns a normalized similarity in [0.0, 1.0] derived from edit
// distance over the normalized forms. Two empty strings are identical.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}
	d := levenshtein.Distance(na, nb, nil)
	if d >= longest {
		return 0.0
	}
	return 1.0 - float64(d)/float64(longest)
}

// Ratio returns a fuzzy similarity in [0, 100] tolerant of token reordering
// and partial overlap. It takes the best of plain similarity, token-sort
// similarity and substring containment.
func Ratio(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		if na == nb {
			return 100
		}
		return 0
	}

	best := Similarity(na, nb)

	// Token sort: reordering tolerance ("Perez Juan" vs "Juan Perez").
	if ts := Similarity(sortTokens(na), sortTokens(nb)); ts > best {
		best = ts
	}

	// Containment: partial match tolerance, scaled by length ratio so that
	// a tiny fragment does not score as a near-match.
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		c := 0.6 + 0.4*float64(len(shorter))/float64(len(longer))
		if c > best {
			best = c
		}
	}

	return int(best*100 + 0.5)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j] < tokens[j-1]; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
	return strings.Join(tokens, " ")
}

// QualityScore estimates how clean a piece of OCR text is, in [0, 100].
// It blends alphanumeric ratio, whitespace balance and word validity.
// Empty input scores 0.
func QualityScore(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	var alnum, spaces, total int
	for _, r := range trimmed {
		total++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alnum++
		case unicode.IsSpace(r):
			spaces++
		}
	}

	alnumScore := float64(alnum) / float64(total)

	// Healthy prose runs roughly 10-25% whitespace. Score peaks inside that
	// band and falls off linearly outside it.
	spaceRatio := float64(spaces) / float64(total)
	var spaceScore float64
	switch {
	case spaceRatio >= 0.10 && spaceRatio <= 0.25:
		spaceScore = 1.0
	case spaceRatio < 0.10:
		spaceScore = spaceRatio / 0.10
	default:
		spaceScore = 1.0 - (spaceRatio-0.25)/0.75
	}
	if spaceScore < 0 {
		spaceScore = 0
	}

	words := strings.Fields(trimmed)
	valid := 0
	for _, w := range words {
		if validWord(w) {
			valid++
		}
	}
	wordScore := 0.0
	if len(words) > 0 {
		wordScore = float64(valid) / float64(len(words))
	}

	score := 0.45*alnumScore + 0.20*spaceScore + 0.35*wordScore
	return int(score*100 + 0.5)
}

// validWord is a cheap plausibility check: reasonable length and either a
// vowel-bearing letter run or a digit run. OCR noise tends to fail both.
func validWord(w string) bool {
	w = strings.Trim(w, ".,;:()[]¡!¿?\"'")
	n := len([]rune(w))
	if n == 0 || n > 25 {
		return false
	}
	letters, digits, vowels := 0, 0, 0
	for _, r := range strings.ToLower(w) {
		switch {
		case unicode.IsLetter(r):
			letters++
			if strings.ContainsRune("aeiouáéíóúü", r) {
				vowels++
			}
		case unicode.IsDigit(r):
			digits++
		}
	}
	if digits > 0 && letters == 0 {
		return true
	}
	if letters == 0 {
		return n <= 3 // bare punctuation-ish tokens like "$" or "-"
	}
	if n == 1 {
		return vowels > 0 || w == "y" || w == "o"
	}
	return vowels > 0
}

// FindBestPhrase scans text with a sliding word window looking for the best
// match for phrase. threshold <= 0 uses DefaultPhraseThreshold. Returns the
// matched substring and its similarity, or ok=false when no window clears
// the threshold.
func FindBestPhrase(text, phrase string, threshold float64) (string, float64, bool) {
	if threshold <= 0 {
		threshold = DefaultPhraseThreshold
	}
	if strings.TrimSpace(text) == "" || strings.TrimSpace(phrase) == "" {
		return "", 0, false
	}

	words := strings.Fields(text)
	span := len(strings.Fields(phrase))
	if span == 0 || span > len(words) {
		return "", 0, false
	}

	bestSim := 0.0
	bestMatch := ""
	// Windows one word narrower and wider than the phrase catch OCR splits
	// and joins.
	for _, w := range []int{span - 1, span, span + 1} {
		if w < 1 || w > len(words) {
			continue
		}
		for i := 0; i+w <= len(words); i++ {
			window := strings.Join(words[i:i+w], " ")
			sim := Similarity(window, phrase)
			if sim > bestSim {
				bestSim = sim
				bestMatch = window
			}
		}
	}

	if bestSim < threshold {
		return "", 0, false
	}
	return bestMatch, bestSim, true
}

// NormalizeAmount canonicalizes a monetary string so that "$100,000.00" and
// "$100000" compare equal. ok is false when the input does not parse as an
// amount.
func NormalizeAmount(s string) (string, bool) {
	v, ok := ParseAmount(s)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', 2, 64), true
}

// ParseAmount extracts the numeric value from a monetary string.
func ParseAmount(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "M.N."))
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "MXN"))
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "USD"))
	if cleaned == "" {
		return 0, false
	}
	// Long digit runs are identifiers (CLABE, account numbers), not amounts;
	// float64 would silently lose their trailing digits.
	if !strings.Contains(cleaned, ".") && len(cleaned) > 15 {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// EqualValues reports whether two raw field values are equivalent after
// normalization, treating parseable amounts numerically.
func EqualValues(a, b string) bool {
	if Normalize(a) == Normalize(b) {
		return true
	}
	if na, ok := NormalizeAmount(a); ok {
		if nb, ok2 := NormalizeAmount(b); ok2 {
			return na == nb
		}
	}
	return false
}

package textcmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_FoldsAccentsAndCase(t *testing.T) {
	assert.Equal(t, "razon social", Normalize("  Razón   SOCIAL "))
	assert.Equal(t, "nunez", Normalize("NÚÑEZ"))
	assert.Equal(t, "", Normalize("   "))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, Levenshtein("oficio", "oficio"))
	assert.Equal(t, 1, Levenshtein("oficio", "oficia"))
	assert.Equal(t, 6, Levenshtein("", "oficio"))
}

func TestSimilarity_Bounds(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Aseguramiento", "aseguramiento"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 0.01)

	sim := Similarity("Juan Perez Lopez", "Juan Peres Lopez")
	assert.Greater(t, sim, 0.9)
	assert.Less(t, sim, 1.0)
}

func TestRatio_TokenReordering(t *testing.T) {
	assert.Equal(t, 100, Ratio("Perez Juan", "Juan Perez"))
	assert.GreaterOrEqual(t, Ratio("Expediente No. 123", "el Expediente No. 123 del caso"), 60)
	assert.Equal(t, 0, Ratio("", "algo"))
	assert.Equal(t, 100, Ratio("", ""))
}

func TestQualityScore(t *testing.T) {
	assert.Equal(t, 0, QualityScore(""))
	assert.Equal(t, 0, QualityScore("   "))

	clean := QualityScore("Se solicita el aseguramiento de la cuenta bancaria del contribuyente")
	noisy := QualityScore("S3 s0l!c;ta 3l @##$%%^ d3 l@ cu3nt@ b@nc@r!@ ~~~ ||| ###")
	assert.Greater(t, clean, 70)
	assert.Less(t, noisy, clean)
}

func TestFindBestPhrase(t *testing.T) {
	text := "Por medio del presente se solicita el aseguramiento de cuentas a nombre del contribuyente"

	match, sim, ok := FindBestPhrase(text, "aseguramiento de cuentas", 0)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, sim, 0.85)
	assert.Equal(t, "aseguramiento de cuentas", match)

	// OCR-mangled phrase still clears the default threshold.
	_, sim, ok = FindBestPhrase(text, "aseguramento de cuentas", 0)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, sim, 0.85)

	_, _, ok = FindBestPhrase(text, "transferencia internacional", 0)
	assert.False(t, ok)

	_, _, ok = FindBestPhrase("", "algo", 0)
	assert.False(t, ok)
}

func TestNormalizeAmount(t *testing.T) {
	a, ok := NormalizeAmount("$100,000.00")
	assert.True(t, ok)
	b, ok2 := NormalizeAmount("$100000")
	assert.True(t, ok2)
	assert.Equal(t, a, b)

	_, ok = NormalizeAmount("Aseguramiento")
	assert.False(t, ok)

	// Identifiers are not amounts.
	_, ok = NormalizeAmount("012345678901234567")
	assert.False(t, ok)
}

func TestEqualValues(t *testing.T) {
	assert.True(t, EqualValues("$100,000.00", "$100000"))
	assert.True(t, EqualValues("Aseguramiento", "ASEGURAMIENTO"))
	assert.False(t, EqualValues("Aseguramiento", "Judicial"))
	assert.False(t, EqualValues("123456789012345678", "123456789012345679"))
}

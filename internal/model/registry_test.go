package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	require.NotNil(t, r.ByKey(KeyNumeroExpediente))
	assert.Nil(t, r.ByKey("NoSuchField"))

	required := r.Required()
	require.NotEmpty(t, required)
	assert.Equal(t, KeyNumeroExpediente, required[0].Key)

	assert.True(t, r.IsCritical("CLABE"))
	assert.False(t, r.IsCritical("Firmante"))
	assert.True(t, r.IsNameLike("Nombre"))
	assert.False(t, r.IsNameLike("RFC"))
}

func TestRegistry_PatternValid(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.PatternValid("CLABE", "012345678901234567"))
	assert.False(t, r.PatternValid("CLABE", "0123456789012345678"))
	assert.False(t, r.PatternValid("CLABE", "01234567890123456A"))
	assert.True(t, r.PatternValid("CLABE", " 012345678901234567 "))

	assert.True(t, r.PatternValid("RFC", "GOML850101AB1"))
	assert.False(t, r.PatternValid("RFC", "GOML85"))

	// Fields without a regex, and unknown fields, always pass.
	assert.True(t, r.PatternValid("Firmante", "cualquier cosa"))
	assert.True(t, r.PatternValid("NoSuchField", "123"))
}

func TestRegistry_CatalogValid(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.CatalogValid(KeyCausa, "Aseguramiento"))
	assert.True(t, r.CatalogValid(KeyCausa, "aseguramiento"))
	assert.False(t, r.CatalogValid(KeyCausa, "Mercantil"))
	assert.True(t, r.CatalogValid("Nombre", "sin catálogo"))
}

func TestLoadRegistry_OverridesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`fields:
  - key: CLABE
    critical: true
    validation: '^\d{18}$'
  - key: Sucursal
    validation: '^\d{4}$'
`), 0o644))

	r, err := LoadRegistry(path)
	require.NoError(t, err)

	// Overridden spec replaces the built-in one in place.
	require.NotNil(t, r.ByKey("CLABE"))
	assert.True(t, r.IsCritical("CLABE"))

	// New keys are appended after the built-ins.
	require.NotNil(t, r.ByKey("Sucursal"))
	assert.True(t, r.PatternValid("Sucursal", "0042"))
	assert.False(t, r.PatternValid("Sucursal", "42"))

	// Built-ins not mentioned in the file survive.
	assert.NotNil(t, r.ByKey(KeyNumeroOficio))
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("fields: {not: a list}"), 0o644))
	_, err = LoadRegistry(bad)
	assert.Error(t, err)
}

func TestExpedienteFieldView(t *testing.T) {
	e := &Expediente{
		NumeroExpediente: "A/123/2024",
		Causa:            "Aseguramiento",
		AdditionalFields: map[string]string{"Nombre": "Juan Pérez"},
	}

	v, ok := e.Get("Nombre")
	require.True(t, ok)
	assert.Equal(t, "Juan Pérez", v)

	_, ok = e.Get("CLABE")
	assert.False(t, ok)

	names := e.FieldNames()
	assert.Contains(t, names, KeyNumeroExpediente)
	assert.Contains(t, names, "Nombre")
	assert.NotContains(t, names, KeyNumeroOficio)

	var nilExp *Expediente
	_, ok = nilExp.Get("Nombre")
	assert.False(t, ok)
	assert.Nil(t, nilExp.FieldNames())
}

func TestRequirementTypeCode(t *testing.T) {
	assert.Equal(t, 101, TipoAseguramiento.Code())
	assert.Equal(t, 102, TipoDesbloqueo.Code())
	assert.Equal(t, 103, TipoInformacion.Code())
	assert.Equal(t, 104, TipoDocumentacion.Code())
	assert.Equal(t, 105, TipoTransferencia.Code())
	assert.Equal(t, 0, TipoDesconocido.Code())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regtechmx/expediente-engine/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "expediente.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentCases)
	assert.Equal(t, "merge_all", cfg.Extract.Mode)
	assert.Equal(t, "most_complete", cfg.Extract.MergePolicy)
	assert.InDelta(t, 0.85, cfg.Extract.FuzzyThreshold, 0.001)
	assert.InDelta(t, 0.90, cfg.Fusion.SourceReliability[model.SourceXML], 0.001)
	assert.InDelta(t, 0.75, cfg.Fusion.SourceReliability[model.SourcePDFOCR], 0.001)
	assert.InDelta(t, 0.70, cfg.Fusion.SourceReliability[model.SourceDOCXOCR], 0.001)
	assert.InDelta(t, 0.15, cfg.Fusion.ConflictMargin, 0.001)
	assert.InDelta(t, 0.85, cfg.Fusion.AutoProcessThreshold, 0.001)
	assert.InDelta(t, 0.70, cfg.Fusion.ReviewThreshold, 0.001)
	assert.InDelta(t, 0.90, cfg.Classify.HighConfidence, 0.001)
	assert.Equal(t, 2, cfg.Classify.KeywordSaturation)
	assert.InDelta(t, 0.85, cfg.Semantic.PhraseThreshold, 0.001)
	assert.Equal(t, 180, cfg.Semantic.WindowBytes)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/expedientes
log:
  level: debug
  format: console
server:
  port: 9090
fusion:
  conflict_margin: 0.20
batch:
  max_concurrent_cases: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.20, cfg.Fusion.ConflictMargin, 0.001)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentCases)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.85, cfg.Fusion.AutoProcessThreshold, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EXPEDIENTE_STORE_DRIVER", "postgres")
	t.Setenv("EXPEDIENTE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("EXPEDIENTE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation
// tests.
func validDefaults(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults(t)
	assert.NoError(t, cfg.Validate("process"))
	assert.NoError(t, cfg.Validate("batch"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_BadDriver(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("process")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("process")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Not checked outside serve mode.
	assert.NoError(t, cfg.Validate("process"))
}

func TestValidate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Batch.MaxConcurrentCases = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_cases must be between 1 and 50")

	cfg.Batch.MaxConcurrentCases = 51
	err = cfg.Validate("batch")
	assert.Error(t, err)

	cfg.Batch.MaxConcurrentCases = 50
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidate_ThresholdRanges(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Fusion.ConflictMargin = 1.5
	err := cfg.Validate("process")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fusion.conflict_margin must be between 0 and 1")

	cfg.Fusion.ConflictMargin = 0.15
	cfg.Fusion.AutoProcessThreshold = 0.5
	cfg.Fusion.ReviewThreshold = 0.7
	err = cfg.Validate("process")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "auto_process_threshold must be >=")
}

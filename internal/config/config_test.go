package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Store.URI)
	assert.Equal(t, "customers", cfg.Store.Database)
	assert.Equal(t, "customers", cfg.Store.Collection)
	assert.Equal(t, "https://api.fullcontact.com/v3/person.enrich", cfg.FullContact.Endpoint)
	assert.Equal(t, []string{"individual", "demographics", "location", "household"}, cfg.FullContact.Packages)
	assert.Equal(t, 30, cfg.FullContact.TimeoutSecs)
	assert.Equal(t, "customers.csv", cfg.Batch.InputPath)
	assert.Equal(t, 100, cfg.Batch.ProgressEvery)
	assert.Equal(t, 1000, cfg.Batch.DelayMillis)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  uri: local.db
log:
  level: debug
  format: console
batch:
  progress_every: 25
  delay_ms: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "local.db", cfg.Store.URI)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 25, cfg.Batch.ProgressEvery)
	assert.Equal(t, 0, cfg.Batch.DelayMillis)
	// Defaults still apply for unset values
	assert.Equal(t, "customers", cfg.Store.Collection)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ENRICH_STORE_DRIVER", "postgres")
	t.Setenv("ENRICH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ENRICH_FULLCONTACT_TOKEN=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("ENRICH_FULLCONTACT_TOKEN") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.FullContact.Token)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "mongo"
	cfg.Store.URI = "mongodb://localhost:27017"
	cfg.Store.Database = "customers"
	cfg.Store.Collection = "customers"
	cfg.FullContact.Endpoint = "https://api.fullcontact.com/v3/person.enrich"
	cfg.Batch.ProgressEvery = 100
	cfg.Batch.DelayMillis = 1000
	return cfg
}

func TestValidateUpdate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("update"))
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidateEnrich_MissingToken(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fullcontact.token is required")

	cfg.FullContact.Token = "fc-token"
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidate_MissingStoreFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.URI = ""
	cfg.Store.Collection = ""

	err := cfg.Validate("update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.uri is required")
	assert.Contains(t, err.Error(), "store.collection is required")
}

func TestValidate_UnsupportedDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "dynamo"

	err := cfg.Validate("report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "dynamo" is not supported`)
}

func TestValidate_SQLNeedsOnlyURI(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.Database = ""
	cfg.Store.Collection = ""
	cfg.Store.URI = "enrich.db"

	assert.NoError(t, cfg.Validate("update"))
}

func TestValidate_BatchBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Batch.ProgressEvery = 0
	cfg.Batch.DelayMillis = -1

	err := cfg.Validate("update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.progress_every must be > 0")
	assert.Contains(t, err.Error(), "batch.delay_ms must be >= 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ',', BatchConfig{}.DelimiterRune())
	assert.Equal(t, ';', BatchConfig{Delimiter: ";"}.DelimiterRune())
	assert.Equal(t, '\t', BatchConfig{Delimiter: "tab"}.DelimiterRune())
	assert.Equal(t, '\t', BatchConfig{Delimiter: `\t`}.DelimiterRune())
}

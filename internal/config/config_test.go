package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdpetl/internal/domain"
	"gdpetl/internal/etl/sources"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "gdpetl.json5"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	job := cfg.Job()
	assert.Equal(t, "Countries_by_GDP", job.TableName)
	assert.Equal(t, []string{"Country", "GDP_USD_millions"}, job.ExpectedColumns)
	assert.Empty(t, job.FilterQuery)
}

func TestLoad_FileAndLocalOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "gdpetl.json5")
	require.NoError(t, os.WriteFile(base, []byte(`{
		// json5 allows comments and trailing commas
		tableName: "Economies",
		selector: { strategy: "header", headers: ["country", "imf"] },
		database: { driver: "postgres", host: "db", database: "econ", passwordEnv: "GDPETL_TEST_PW" },
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gdpetl.local.json5"), []byte(`{
		tableName: "Economies_dev",
		rounding: "half_away",
	}`), 0o644))
	t.Setenv("GDPETL_TEST_PW", "hunter2")

	cfg, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, "Economies_dev", cfg.TableName)
	assert.Equal(t, "half_away", cfg.Rounding)
	assert.Equal(t, sources.StrategyHeader, cfg.Selector.Strategy)
	assert.Equal(t, domain.DatabaseDriverPostgres, cfg.Database.Driver)
	pw, err := cfg.DatabasePassword()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	// Untouched keys keep their defaults.
	assert.Equal(t, Defaults().OutputPath, cfg.OutputPath)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json5")

	require.NoError(t, os.WriteFile(path, []byte(`{ tableName: `), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{ expectedColumns: ["Country"], rounding: "up", http: { timeout: "soon" } }`), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expectedColumns")
	assert.Contains(t, err.Error(), "rounding")
	assert.Contains(t, err.Error(), "http.timeout")
}

func TestApply(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Apply(Config{OutputPath: "/tmp/out.csv", Database: domain.DatabaseConnection{Host: "/tmp/x.db"}}))
	assert.Equal(t, "/tmp/out.csv", cfg.OutputPath)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Host)
	assert.Equal(t, domain.DatabaseDriverSQLite, cfg.Database.Driver)
	assert.Equal(t, Defaults().TableName, cfg.TableName)

	err := cfg.Apply(Config{Database: domain.DatabaseConnection{Driver: "oracle"}})
	assert.Error(t, err)
}

func TestValidate_Database(t *testing.T) {
	cfg := Defaults()
	cfg.Database = domain.DatabaseConnection{Driver: domain.DatabaseDriverMySQL, Host: "db"}
	assert.Error(t, cfg.Validate())

	cfg.Database.Database = "econ"
	assert.NoError(t, cfg.Validate())
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, filepath.Join("conf", "gdpetl.local.json5"), localPath(filepath.Join("conf", "gdpetl.json5")))
	assert.Equal(t, "gdpetl.local.json5", localPath("gdpetl.json5"))
}

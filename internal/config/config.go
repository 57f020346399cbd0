package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"gdpetl/internal/domain"
	"gdpetl/internal/etl"
	"gdpetl/internal/etl/sources"
	"gdpetl/internal/secret"
)

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = "gdpetl.json5"

const defaultSourceURL = "https://web.archive.org/web/20230902185326/https://en.wikipedia.org/wiki/List_of_countries_by_GDP_%28nominal%29"

// Config is the full configuration of the ETL job and its surroundings.
type Config struct {
	Name            string                    `json:"name"`
	SourceURL       string                    `json:"sourceUrl"`
	ExpectedColumns []string                  `json:"expectedColumns"`
	OutputColumns   []string                  `json:"outputColumns"`
	OutputPath      string                    `json:"outputPath"`
	Database        domain.DatabaseConnection `json:"database"`
	TableName       string                    `json:"tableName"`
	FilterQuery     string                    `json:"filterQuery"`
	LogPath         string                    `json:"logPath"`
	StatePath       string                    `json:"statePath"`
	Selector        sources.SelectorConfig    `json:"selector"`
	Placeholder     string                    `json:"placeholder"`
	Rounding        string                    `json:"rounding"`
	HTTP            HTTPConfig                `json:"http"`
	Schedule        string                    `json:"schedule"` // cron expression for `schedule`
}

// HTTPConfig configures the document fetcher.
type HTTPConfig struct {
	Timeout   string `json:"timeout"` // Go duration, e.g. "30s"
	UserAgent string `json:"userAgent"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Name:            "countries_by_gdp",
		SourceURL:       defaultSourceURL,
		ExpectedColumns: []string{"Country", "GDP_USD_millions"},
		OutputColumns:   []string{"Country", "GDP_USD_billions"},
		OutputPath:      "./Countries_by_GDP.csv",
		Database: domain.DatabaseConnection{
			Driver: domain.DatabaseDriverSQLite,
			Host:   "World_Economies.db",
		},
		TableName: "Countries_by_GDP",
		LogPath:   "./etl_project_log.log",
		StatePath: "./etl_state.db",
		Selector: sources.SelectorConfig{
			Strategy: sources.StrategyPosition,
			Index:    2,
		},
		Placeholder: sources.DefaultPlaceholder,
		Rounding:    string(etl.RoundHalfEven),
		HTTP:        HTTPConfig{Timeout: "30s", UserAgent: "gdpetl/1.0"},
		Schedule:    "@daily",
	}
}

// Load reads name on top of the defaults, then <base>.local.<ext> on top of
// that. Keys absent from a file keep their previous value. A missing file is
// not an error; Load then returns the defaults.
func Load(name string) (Config, error) {
	cfg := Defaults()
	if name == "" {
		name = DefaultFile
	}

	for _, path := range []string{name, localPath(name)} {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json5.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		slog.Debug("loaded config", "path", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// localPath turns "dir/name.ext" into "dir/name.local.ext".
func localPath(name string) string {
	dir, base := filepath.Split(name)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

// Apply merges the non-empty fields of overrides into c, typically values
// taken from command-line flags.
func (c *Config) Apply(overrides Config) error {
	if err := mergo.Merge(c, overrides, mergo.WithOverride); err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}
	return c.Validate()
}

// Validate checks the fields every run depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceURL == "" {
		errs = append(errs, errors.New("sourceUrl is required"))
	}
	if len(c.ExpectedColumns) != 2 {
		errs = append(errs, fmt.Errorf("expectedColumns must name 2 columns, got %d", len(c.ExpectedColumns)))
	}
	if len(c.OutputColumns) != 2 {
		errs = append(errs, fmt.Errorf("outputColumns must name 2 columns, got %d", len(c.OutputColumns)))
	}
	if c.OutputPath == "" {
		errs = append(errs, errors.New("outputPath is required"))
	}
	if c.TableName == "" {
		errs = append(errs, errors.New("tableName is required"))
	}
	if c.LogPath == "" {
		errs = append(errs, errors.New("logPath is required"))
	}
	if _, err := etl.ParseRoundingMode(c.Rounding); err != nil {
		errs = append(errs, err)
	}
	if _, err := sources.NewSelector(c.Selector); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.HTTPTimeout(); err != nil {
		errs = append(errs, err)
	}
	switch c.Database.Driver {
	case domain.DatabaseDriverSQLite, "":
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host must be the sqlite file path"))
		}
	case domain.DatabaseDriverMySQL, domain.DatabaseDriverPostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			errs = append(errs, errors.New("database.host and database.database are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// HTTPTimeout parses HTTP.Timeout. Empty means zero (fetcher default).
func (c *Config) HTTPTimeout() (time.Duration, error) {
	if c.HTTP.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return 0, fmt.Errorf("http.timeout: %w", err)
	}
	return d, nil
}

// DatabasePassword resolves the database password: the environment variable
// named by passwordEnv wins, then the keychain entry named by
// passwordKeychain.
func (c *Config) DatabasePassword() (string, error) {
	pw, err := secret.Lookup(secret.EnvStore{}, c.Database.PasswordEnv)
	if err != nil || pw != "" {
		return pw, err
	}
	pw, err = secret.Lookup(secret.NewKeychainStore(), c.Database.PasswordKeychain)
	if err != nil {
		return "", fmt.Errorf("database password: %w", err)
	}
	return pw, nil
}

// Job converts the configuration into a pipeline job.
func (c *Config) Job() etl.Job {
	return etl.Job{
		Name:            c.Name,
		SourceURL:       c.SourceURL,
		ExpectedColumns: append([]string(nil), c.ExpectedColumns...),
		OutputColumns:   append([]string(nil), c.OutputColumns...),
		OutputPath:      c.OutputPath,
		TableName:       c.TableName,
		FilterQuery:     c.FilterQuery,
	}
}

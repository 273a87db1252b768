// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (runtime override, DATABASE_URL included)
//  2. Config file (~/.kr8vector/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - Storage: PostgreSQL connection (see storage.go)
//   - Embedder: model, dimensionality, rate limiting
//   - Store: collection, tenant identity, metric, batching, workers
//   - Index: ANN index kind and parameters
//   - Otel: trace exporter endpoint
//
// Sensitive fields (the database password) are masked in MarshalJSON and
// String. Validation is fail-fast with sentinel errors (validation.go).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ConfigDirName is the per-user configuration directory under $HOME.
const ConfigDirName = ".kr8vector"

// IndexSettings configures the ANN index and its per-query tuning knobs.
type IndexSettings struct {
	Kind           string `mapstructure:"kind" json:"kind"` // "", "ivfflat", "hnsw"
	Name           string `mapstructure:"name" json:"name"`
	Lists          int    `mapstructure:"lists" json:"lists"`
	DynamicLists   bool   `mapstructure:"dynamic_lists" json:"dynamic_lists"`
	Probes         int    `mapstructure:"probes" json:"probes"`
	M              int    `mapstructure:"m" json:"m"`
	EfConstruction int    `mapstructure:"ef_construction" json:"ef_construction"`
	EfSearch       int    `mapstructure:"ef_search" json:"ef_search"`
}

// OtelSettings configures the OTLP trace exporter.
type OtelSettings struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
type Config struct {
	// Storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Store identity. OrgID/UserID of 0 mean "not tenant-scoped".
	Schema     string `mapstructure:"schema" json:"schema"`
	Collection string `mapstructure:"collection" json:"collection"`
	OrgID      int    `mapstructure:"org_id" json:"org_id"`
	UserID     int    `mapstructure:"user_id" json:"user_id"`
	Project    string `mapstructure:"project" json:"project"`
	Metric     string `mapstructure:"metric" json:"metric"`
	BatchSize  int    `mapstructure:"batch_size" json:"batch_size"`
	Workers    int    `mapstructure:"workers" json:"workers"`

	// Embedder
	EmbedderModel      string  `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimensions int     `mapstructure:"embedder_dimensions" json:"embedder_dimensions"`
	EmbedderRPS        float64 `mapstructure:"embedder_rps" json:"embedder_rps"`
	EmbedderBurst      int     `mapstructure:"embedder_burst" json:"embedder_burst"`

	// RefreshInterval drives the config watcher; zero disables it.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" json:"refresh_interval"`

	Index IndexSettings `mapstructure:"index" json:"index"`
	Otel  OtelSettings  `mapstructure:"otel" json:"otel"`
}

// Load loads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ConfigDirName)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "kr8")
	v.SetDefault("postgres_password", "kr8_dev_password")
	v.SetDefault("postgres_db_name", "kr8")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("schema", "ai")
	v.SetDefault("collection", "documents")
	v.SetDefault("metric", "cosine")
	v.SetDefault("batch_size", 0) // 0 = per-operation defaults
	v.SetDefault("workers", 0)

	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("embedder_dimensions", 768)
	v.SetDefault("embedder_rps", 0)
	v.SetDefault("embedder_burst", 1)

	v.SetDefault("refresh_interval", time.Duration(0))

	v.SetDefault("index.kind", "")
	v.SetDefault("index.probes", 10)
	v.SetDefault("index.ef_search", 40)

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.environment", "dev")
	v.SetDefault("otel.service_name", "kr8-vector")
}

// bindEnvVariables binds runtime override variables explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via viper;
// validation only checks its presence when an embedder is required.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("postgres_password", "KR8_POSTGRES_PASSWORD")
	mustBind("collection", "KR8_COLLECTION")
	mustBind("org_id", "KR8_ORG_ID")
	mustBind("user_id", "KR8_USER_ID")
	mustBind("project", "KR8_PROJECT")
	mustBind("embedder_model", "KR8_EMBEDDER_MODEL")
	mustBind("otel.endpoint", "KR8_OTEL_ENDPOINT")
}

// OrgIDPtr returns the org id as a nullable tenant discriminator.
func (c *Config) OrgIDPtr() *int {
	if c.OrgID <= 0 {
		return nil
	}
	id := c.OrgID
	return &id
}

// UserIDPtr returns the user id as a nullable tenant discriminator.
func (c *Config) UserIDPtr() *int {
	if c.UserID <= 0 {
		return nil
	}
	id := c.UserID
	return &id
}

// maskedValue replaces secrets in serialized config. Full-width blocks
// avoid accidental substring matches against real password characters.
const maskedValue = "████████"

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

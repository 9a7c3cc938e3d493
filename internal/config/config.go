// Package config loads the relcol configuration: logging, HTTP, storage
// engines and the model and relation declarations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
)

// Config represents the relcol configuration
type Config struct {
	Log       LogConfig        `mapstructure:"log"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	Engines   []EngineConfig   `mapstructure:"engines"`
	Models    []ModelConfig    `mapstructure:"models"`
	Relations []RelationConfig `mapstructure:"relations"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// HTTPConfig represents API server configuration
type HTTPConfig struct {
	Address string `mapstructure:"address"`
	// Pprof mounts the profiling endpoints under /debug/pprof
	Pprof bool `mapstructure:"pprof"`
}

// EngineConfig declares a storage engine and how to reach it
type EngineConfig struct {
	Name  string      `mapstructure:"name"`
	Kind  string      `mapstructure:"kind"`
	DSN   string      `mapstructure:"dsn"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds connection settings for redis engines
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ModelConfig declares a model
type ModelConfig struct {
	Name   string        `mapstructure:"name"`
	Engine string        `mapstructure:"engine"`
	Table  string        `mapstructure:"table"`
	Fields []FieldConfig `mapstructure:"fields"`
}

// FieldConfig declares a model attribute. Key is "", "partition" or
// "clustering".
type FieldConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
	Key  string `mapstructure:"key"`
}

// RelationConfig declares a relation column on a model
type RelationConfig struct {
	Model        string `mapstructure:"model"`
	Name         string `mapstructure:"name"`
	Kind         string `mapstructure:"kind"`
	Target       string `mapstructure:"target"`
	TargetEngine string `mapstructure:"target_engine"`
	Required     bool   `mapstructure:"required"`
	Indexed      bool   `mapstructure:"indexed"`
}

// Engine kinds
const (
	KindMemory   = "memory"
	KindPostgres = "postgres"
	KindPQ       = "pq"
	KindSQLite   = "sqlite"
	KindRedis    = "redis"
)

// DefaultEngine is used by models that name no engine
const DefaultEngine = "default"

// Load reads relcol.yaml (or the file at path when given), applies RELCOL_
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "json")
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.pprof", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relcol")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix("RELCOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// FindConfigFile walks up from the working directory looking for relcol.yaml
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"relcol.yaml", "relcol.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no relcol.yaml found")
		}
		dir = parent
	}
}

// engineNames returns the declared engine names, falling back to the
// default memory engine when none are declared
func (c *Config) engineNames() map[string]bool {
	names := make(map[string]bool, len(c.Engines))
	for _, e := range c.Engines {
		names[e.Name] = true
	}
	if len(names) == 0 {
		names[DefaultEngine] = true
	}
	return names
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	seen := make(map[string]bool)
	for i := range cfg.Engines {
		e := &cfg.Engines[i]
		if e.Name == "" {
			return fmt.Errorf("engines[%d]: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("engines[%d]: duplicate engine %q", i, e.Name)
		}
		seen[e.Name] = true

		if e.Kind == "" {
			e.Kind = KindMemory
		}
		switch e.Kind {
		case KindMemory, KindRedis:
		case KindPostgres, KindPQ, KindSQLite:
			if e.DSN == "" {
				return fmt.Errorf("engine %s: dsn is required for kind %s", e.Name, e.Kind)
			}
		default:
			return fmt.Errorf("engine %s: unknown kind %q", e.Name, e.Kind)
		}
	}

	engines := cfg.engineNames()
	models := make(map[string]bool)
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if m.Engine == "" {
			m.Engine = DefaultEngine
		}
		if !engines[m.Engine] {
			return fmt.Errorf("model %s: engine %q is not declared", m.Name, m.Engine)
		}
		if models[m.Engine+"."+m.Name] {
			return fmt.Errorf("model %s: declared twice in engine %s", m.Name, m.Engine)
		}
		models[m.Engine+"."+m.Name] = true

		for _, f := range m.Fields {
			if f.Name == "" {
				return fmt.Errorf("model %s: field name is required", m.Name)
			}
			if _, err := schema.ParsePrimitiveType(f.Type); err != nil {
				return fmt.Errorf("model %s.%s: %w", m.Name, f.Name, err)
			}
			if _, err := schema.ParseKeyRole(f.Key); err != nil {
				return fmt.Errorf("model %s.%s: %w", m.Name, f.Name, err)
			}
		}
	}

	for i := range cfg.Relations {
		r := &cfg.Relations[i]
		if r.Model == "" || r.Name == "" || r.Target == "" {
			return fmt.Errorf("relations[%d]: model, name and target are required", i)
		}
		if r.Kind == "" {
			r.Kind = relations.VariantScalar.String()
		}
		if _, err := relations.ParseVariant(r.Kind); err != nil {
			return fmt.Errorf("relation %s.%s: %w", r.Model, r.Name, err)
		}
		if r.TargetEngine != "" && !engines[r.TargetEngine] {
			return fmt.Errorf("relation %s.%s: target engine %q is not declared", r.Model, r.Name, r.TargetEngine)
		}
	}

	return nil
}

package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bmeg/fhirizer/internal/platform/identity"
	"github.com/bmeg/fhirizer/internal/platform/terminology"
)

type Config struct {
	InputPath         string `mapstructure:"INPUT_PATH"`
	OutputDir         string `mapstructure:"OUTPUT_DIR"`
	Source            string `mapstructure:"SOURCE"`
	Verbose           bool   `mapstructure:"VERBOSE"`
	TablesDir         string `mapstructure:"TABLES_DIR"`
	SchemaPath        string `mapstructure:"SCHEMA_PATH"`
	ConvertKeys       bool   `mapstructure:"CONVERT_KEYS"`
	DiagnosticsLog    string `mapstructure:"DIAGNOSTICS_LOG"`
	IDNamespace       string `mapstructure:"ID_NAMESPACE"`
	ProjectID         string `mapstructure:"PROJECT_ID"`
	PlaceholderPolicy string `mapstructure:"PLACEHOLDER_POLICY"`
	StrictCollisions  bool   `mapstructure:"STRICT_COLLISIONS"`
	Workers           int    `mapstructure:"WORKERS"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DBSchema          string `mapstructure:"DB_SCHEMA"`
	DBMaxConns        int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32  `mapstructure:"DB_MIN_CONNS"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"input":              "INPUT_PATH",
	"output":             "OUTPUT_DIR",
	"source":             "SOURCE",
	"verbose":            "VERBOSE",
	"tables":             "TABLES_DIR",
	"schema":             "SCHEMA_PATH",
	"convert-keys":       "CONVERT_KEYS",
	"diagnostics-log":    "DIAGNOSTICS_LOG",
	"id-namespace":       "ID_NAMESPACE",
	"project":            "PROJECT_ID",
	"placeholder-policy": "PLACEHOLDER_POLICY",
	"strict":             "STRICT_COLLISIONS",
	"workers":            "WORKERS",
	"database-url":       "DATABASE_URL",
	"db-schema":          "DB_SCHEMA",
}

// Load reads configuration from defaults, a .env file in the working
// directory, the environment and finally flags, each overriding the one
// before. Only flags the user set take precedence; flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("SOURCE", "case")
	v.SetDefault("DIAGNOSTICS_LOG", "transformer.log")
	v.SetDefault("ID_NAMESPACE", identity.DefaultDomain)
	v.SetDefault("PLACEHOLDER_POLICY", string(terminology.PolicyAllow))
	v.SetDefault("WORKERS", 1)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 1)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"INPUT_PATH", "OUTPUT_DIR", "SOURCE", "VERBOSE", "TABLES_DIR", "SCHEMA_PATH",
		"CONVERT_KEYS", "DIAGNOSTICS_LOG", "ID_NAMESPACE", "PROJECT_ID",
		"PLACEHOLDER_POLICY", "STRICT_COLLISIONS", "WORKERS",
		"DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS",
	} {
		_ = v.BindEnv(key)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Policy returns the parsed placeholder policy.
func (c *Config) Policy() (terminology.Policy, error) {
	return terminology.ParsePolicy(c.PlaceholderPolicy)
}

// Validate checks the settings every command shares.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.IDNamespace == "" {
		return fmt.Errorf("ID_NAMESPACE must not be empty")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// ValidateTransform checks the settings the transform command needs.
func (c *Config) ValidateTransform() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.InputPath == "" {
		return fmt.Errorf("INPUT_PATH is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	if c.ConvertKeys && c.SchemaPath == "" {
		return fmt.Errorf("SCHEMA_PATH is required when CONVERT_KEYS is set")
	}
	return nil
}

// ValidateLoad checks the settings the load command needs.
func (c *Config) ValidateLoad() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	return nil
}

// Package config loads filedupe settings from defaults, an optional YAML
// file and FILEDUPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Usage adjustment policies.
const (
	UsagePolicyZero      = "zero"
	UsagePolicyDecrement = "decrement"
)

// Policies for replacing pairs whose content was never verified.
const (
	PossiblePolicyConsolidate = "consolidate"
	PossiblePolicyVerify      = "verify"
	PossiblePolicySkip        = "skip"
)

// Config represents the filedupe configuration.
type Config struct {
	Database   string `mapstructure:"database" yaml:"database"`
	FilesRoot  string `mapstructure:"files_root" yaml:"files_root"`
	SchemaFile string `mapstructure:"schema_file" yaml:"schema_file"`
	StateFile  string `mapstructure:"state_file" yaml:"state_file"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`

	ChunkSize   int `mapstructure:"chunk_size" yaml:"chunk_size"`
	HashWorkers int `mapstructure:"hash_workers" yaml:"hash_workers"`
	BusyRetries int `mapstructure:"busy_retries" yaml:"busy_retries"`

	UsagePolicy      string `mapstructure:"usage_policy" yaml:"usage_policy"`
	PossiblePolicy   string `mapstructure:"possible_policy" yaml:"possible_policy"`
	DeleteDuplicates bool   `mapstructure:"delete_duplicates" yaml:"delete_duplicates"`
	RemoveContent    bool   `mapstructure:"remove_content" yaml:"remove_content"`
}

// Default returns the configuration used when nothing overrides it. Paths
// live under ~/.filedupe.
func Default() *Config {
	base := ".filedupe"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".filedupe")
	}
	return &Config{
		Database:         filepath.Join(base, "filedupe.db"),
		FilesRoot:        filepath.Join(base, "files"),
		SchemaFile:       filepath.Join(base, "schema.yaml"),
		StateFile:        filepath.Join(base, "state.yaml"),
		LogFile:          filepath.Join(base, "filedupe.log"),
		ChunkSize:        50,
		HashWorkers:      4,
		BusyRetries:      5,
		UsagePolicy:      UsagePolicyZero,
		PossiblePolicy:   PossiblePolicyConsolidate,
		DeleteDuplicates: true,
		RemoveContent:    false,
	}
}

// Load reads configuration. cfgFile may be empty, in which case filedupe.yaml
// is looked up in the working directory and ~/.filedupe; a missing file is
// not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("database", defaults.Database)
	v.SetDefault("files_root", defaults.FilesRoot)
	v.SetDefault("schema_file", defaults.SchemaFile)
	v.SetDefault("state_file", defaults.StateFile)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("chunk_size", defaults.ChunkSize)
	v.SetDefault("hash_workers", defaults.HashWorkers)
	v.SetDefault("busy_retries", defaults.BusyRetries)
	v.SetDefault("usage_policy", defaults.UsagePolicy)
	v.SetDefault("possible_policy", defaults.PossiblePolicy)
	v.SetDefault("delete_duplicates", defaults.DeleteDuplicates)
	v.SetDefault("remove_content", defaults.RemoveContent)

	v.SetEnvPrefix("FILEDUPE")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("filedupe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.filedupe")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and policy names.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("database path must be set")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.HashWorkers < 1 {
		return fmt.Errorf("hash_workers must be positive, got %d", c.HashWorkers)
	}
	if c.BusyRetries < 0 {
		return fmt.Errorf("busy_retries must not be negative, got %d", c.BusyRetries)
	}
	switch c.UsagePolicy {
	case UsagePolicyZero, UsagePolicyDecrement:
	default:
		return fmt.Errorf("unknown usage_policy %q (want %s or %s)", c.UsagePolicy, UsagePolicyZero, UsagePolicyDecrement)
	}
	switch c.PossiblePolicy {
	case PossiblePolicyConsolidate, PossiblePolicyVerify, PossiblePolicySkip:
	default:
		return fmt.Errorf("unknown possible_policy %q", c.PossiblePolicy)
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Storage     StorageConfig  `yaml:"storage"`
	Transfer    TransferConfig `yaml:"transfer"`
	LogLevel    string         `yaml:"log_level"`
	MetricsAddr string         `yaml:"metrics_addr"`
}

// StorageConfig locates and authorizes the source object-storage service
type StorageConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	SessionToken string `yaml:"session_token"`
	Secure       bool   `yaml:"secure"`
	Profile      string `yaml:"profile"`
}

// TransferConfig represents run-specific configuration
type TransferConfig struct {
	Destination        string `yaml:"destination"`
	BucketsFile        string `yaml:"buckets_file"`
	Manifest           string `yaml:"manifest"`
	Journal            string `yaml:"journal"`
	MaxWorkers         int    `yaml:"max_workers"`
	MaxRetries         int    `yaml:"max_retries"`
	BaseDelayMs        int    `yaml:"base_delay_ms"`
	MaxDelayMs         int    `yaml:"max_delay_ms"`
	GenerateManifest   bool   `yaml:"generate_manifest"`
	DryRun             bool   `yaml:"dry_run"`
	RetryFailed        bool   `yaml:"retry_failed"`
	RetryResetAttempts bool   `yaml:"retry_reset_attempts"`
	ShowProgress       bool   `yaml:"show_progress"`
	ClearLeases        bool   `yaml:"clear_leases"`
}

// BaseDelay returns the initial retry backoff as a duration.
func (t TransferConfig) BaseDelay() time.Duration {
	return time.Duration(t.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling as a duration.
func (t TransferConfig) MaxDelay() time.Duration {
	return time.Duration(t.MaxDelayMs) * time.Millisecond
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Profile: "default",
			Secure:  true,
		},
		Transfer: TransferConfig{
			Destination:        "./s3_downloads",
			BucketsFile:        "buckets.txt",
			Manifest:           "download_manifest.json",
			Journal:            "transfer_journal.db",
			MaxWorkers:         4,
			MaxRetries:         3,
			BaseDelayMs:        5000,
			MaxDelayMs:         30000,
			RetryResetAttempts: true,
			ShowProgress:       true,
		},
	}

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	if flags.Changed("endpoint") {
		cfg.Storage.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("access-key") {
		cfg.Storage.AccessKey, _ = flags.GetString("access-key")
	}
	if flags.Changed("secret-key") {
		cfg.Storage.SecretKey, _ = flags.GetString("secret-key")
	}
	if flags.Changed("session-token") {
		cfg.Storage.SessionToken, _ = flags.GetString("session-token")
	}
	if flags.Changed("secure") {
		cfg.Storage.Secure, _ = flags.GetBool("secure")
	}
	if flags.Changed("profile") {
		cfg.Storage.Profile, _ = flags.GetString("profile")
	}

	if flags.Changed("destination") {
		cfg.Transfer.Destination, _ = flags.GetString("destination")
	}
	if flags.Changed("buckets-file") {
		cfg.Transfer.BucketsFile, _ = flags.GetString("buckets-file")
	}
	if flags.Changed("manifest") {
		cfg.Transfer.Manifest, _ = flags.GetString("manifest")
	}
	if flags.Changed("journal") {
		cfg.Transfer.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("max-workers") {
		cfg.Transfer.MaxWorkers, _ = flags.GetInt("max-workers")
	}
	if flags.Changed("max-retries") {
		cfg.Transfer.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("base-delay-ms") {
		cfg.Transfer.BaseDelayMs, _ = flags.GetInt("base-delay-ms")
	}
	if flags.Changed("max-delay-ms") {
		cfg.Transfer.MaxDelayMs, _ = flags.GetInt("max-delay-ms")
	}
	if flags.Changed("generate-manifest") {
		cfg.Transfer.GenerateManifest, _ = flags.GetBool("generate-manifest")
	}
	if flags.Changed("dry-run") {
		cfg.Transfer.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("retry-failed") {
		cfg.Transfer.RetryFailed, _ = flags.GetBool("retry-failed")
	}
	if flags.Changed("retry-reset-attempts") {
		cfg.Transfer.RetryResetAttempts, _ = flags.GetBool("retry-reset-attempts")
	}
	if flags.Changed("show-progress") {
		cfg.Transfer.ShowProgress, _ = flags.GetBool("show-progress")
	}
	if flags.Changed("clear-leases") {
		cfg.Transfer.ClearLeases, _ = flags.GetBool("clear-leases")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}

	return nil
}

func (c *Config) validate() error {
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required")
	}
	if c.Storage.AccessKey == "" {
		return fmt.Errorf("storage access key is required")
	}
	if c.Storage.SecretKey == "" {
		return fmt.Errorf("storage secret key is required")
	}

	if c.Transfer.Destination == "" {
		return fmt.Errorf("destination directory is required")
	}
	if c.Transfer.Manifest == "" {
		return fmt.Errorf("manifest path is required")
	}
	if c.Transfer.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive")
	}
	if c.Transfer.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Transfer.BaseDelayMs <= 0 {
		return fmt.Errorf("base delay must be positive")
	}
	if c.Transfer.MaxDelayMs < c.Transfer.BaseDelayMs {
		return fmt.Errorf("max delay must be at least the base delay")
	}

	return nil
}

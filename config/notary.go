package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v2"
)

// ValidationConfig overrides the default file policy; zero fields keep the default
type ValidationConfig struct {
	MaxSizeBytes          int64    `yaml:"max_size_bytes"`
	AllowedTypes          []string `yaml:"allowed_types"`
	AllowedExtensions     []string `yaml:"allowed_extensions"`
	MaxFiles              int      `yaml:"max_files"`
	RequireValidExtension *bool    `yaml:"require_valid_extension"`
}

// FingerprintConfig defines the hashing worker pool
type FingerprintConfig struct {
	Workers   int `yaml:"workers"`    // Number of concurrent hashing goroutines
	QueueSize int `yaml:"queue_size"` // Buffered jobs before Submit blocks
}

// SetDefaults sets reasonable default values for the fingerprint pool
func (c *FingerprintConfig) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
		fmt.Printf("Warning: fingerprint.workers not set or invalid, defaulting to %d\n", c.Workers)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
		fmt.Printf("Warning: fingerprint.queue_size not set or invalid, defaulting to %d\n", c.QueueSize)
	}
}

// GasConfig defines gas estimation behaviour
type GasConfig struct {
	DisableFallback bool `yaml:"disable_fallback"` // Fail the attempt instead of using the fallback table
	BufferPercent   int  `yaml:"buffer_percent"`   // Headroom added to network gas estimates
}

// SetDefaults sets reasonable default values for gas estimation
func (c *GasConfig) SetDefaults() {
	if c.BufferPercent <= 0 {
		c.BufferPercent = 20
		fmt.Printf("Warning: gas.buffer_percent not set or invalid, defaulting to %d\n", c.BufferPercent)
	}
}

// TransactionConfig defines receipt watching
type TransactionConfig struct {
	ReceiptTimeout string `yaml:"receipt_timeout"` // Local wait limit before a watch fails with a timeout
	WatchPolicy    string `yaml:"watch_policy"`    // "single" or "concurrent"
}

// SetDefaults sets reasonable default values for transaction tracking
func (c *TransactionConfig) SetDefaults() {
	if c.ReceiptTimeout == "" {
		c.ReceiptTimeout = "5m"
		fmt.Printf("Warning: transactions.receipt_timeout not set, defaulting to %s\n", c.ReceiptTimeout)
	}
	if c.WatchPolicy == "" {
		c.WatchPolicy = "single"
		fmt.Printf("Warning: transactions.watch_policy not set, defaulting to %s\n", c.WatchPolicy)
	}
}

// ReceiptTimeoutDuration parses ReceiptTimeout, falling back to 5 minutes
func (c *TransactionConfig) ReceiptTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ReceiptTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// BackupConfig defines the optional content-addressed backup store
type BackupConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Gateway   string `yaml:"gateway"` // Public retrieval base, content id is appended
}

// SetDefaults sets reasonable default values for the backup store
func (c *BackupConfig) SetDefaults() {
	if !c.Enabled {
		return
	}
	if c.Bucket == "" {
		c.Bucket = "notary-backups"
		fmt.Printf("Warning: backup.bucket not set, defaulting to %s\n", c.Bucket)
	}
}

// NotaryConfig defines all configuration for the notary daemon
type NotaryConfig struct {
	Gateway      GatewayConfig     `yaml:"gateway"`
	Validation   ValidationConfig  `yaml:"validation"`
	Fingerprint  FingerprintConfig `yaml:"fingerprint"`
	Gas          GasConfig         `yaml:"gas"`
	Transactions TransactionConfig `yaml:"transactions"`
	Backup       BackupConfig      `yaml:"backup"`
	Events       EventsConfig      `yaml:"events"`

	// Notarization requests arriving over a queue
	KafkaConsumer KafkaConsumerConfig `yaml:"kafka_consumer"`
	Worker        WorkerConfig        `yaml:"worker"`

	// Transaction journal
	Database DatabaseConfig `yaml:"database"`

	// Blockchain Client Configuration
	BlockchainClientConfigPath string `yaml:"blockchain_client_config_path"`
}

// SetDefaults applies defaults to every section
func (c *NotaryConfig) SetDefaults() {
	c.Gateway.SetDefaults()
	c.Fingerprint.SetDefaults()
	c.Gas.SetDefaults()
	c.Transactions.SetDefaults()
	c.Backup.SetDefaults()
	c.Events.SetDefaults()
	c.Database.SetDefaults()
	if c.KafkaConsumer.Enabled() {
		c.KafkaConsumer.SetDefaults()
	}
	c.Worker.SetDefaults()
	if c.BlockchainClientConfigPath == "" {
		c.BlockchainClientConfigPath = "./config/client_config.yml"
		fmt.Printf("Warning: blockchain_client_config_path not set, defaulting to %s\n", c.BlockchainClientConfigPath)
	}
}

// Validate checks cross-field constraints
func (c *NotaryConfig) Validate() error {
	if c.Transactions.WatchPolicy != "single" && c.Transactions.WatchPolicy != "concurrent" {
		return fmt.Errorf("transactions.watch_policy must be 'single' or 'concurrent', got %q", c.Transactions.WatchPolicy)
	}
	if c.Backup.Enabled && c.Backup.Endpoint == "" {
		return fmt.Errorf("backup.endpoint is required when backup is enabled")
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events configuration error: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database configuration error: %w", err)
	}
	return nil
}

// LoadNotaryConfig loads configuration from the specified YAML file path
func LoadNotaryConfig(path string) (*NotaryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg NotaryConfig
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	secrets.Apply(&cfg)

	// Set default values for all configurations
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

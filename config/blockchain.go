package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// BlockchainConfig stores common blockchain configuration across all blockchain types
type BlockchainConfig struct {
	// --- Blockchain Type Selection ---
	BlockchainType string `yaml:"blockchain_type"` // "evm", "chainmaker"

	// --- Common Behavior Configuration ---
	RetryLimit         int `yaml:"retry_limit"`
	RetryInterval      int `yaml:"retry_interval"`       // Milliseconds between SDK retries
	TimeoutSeconds     int `yaml:"timeout_seconds"`      // Per-call timeout for reads and submissions
	PollIntervalMillis int `yaml:"poll_interval_millis"` // Receipt polling interval

	// Registry contract overrides keyed by chain ID
	RegistryAddresses map[string]string `yaml:"registry_addresses"`

	// --- Chain-specific Configuration ---
	// This will be loaded separately based on blockchain type
	ChainSpecific any `yaml:"-"`
}

// SetDefaults sets reasonable default values for blockchain configuration
func (c *BlockchainConfig) SetDefaults() {
	if c.BlockchainType == "" {
		c.BlockchainType = "evm"
		fmt.Printf("Warning: blockchain_type not set, defaulting to %s\n", c.BlockchainType)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
		fmt.Printf("Warning: timeout_seconds not set or invalid, defaulting to %d\n", c.TimeoutSeconds)
	}
	if c.PollIntervalMillis <= 0 {
		c.PollIntervalMillis = 2000
		fmt.Printf("Warning: poll_interval_millis not set or invalid, defaulting to %d\n", c.PollIntervalMillis)
	}
}

// LoadBlockchainConfig loads blockchain configuration from the specified YAML file path
func LoadBlockchainConfig(path string) (*BlockchainConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of config file: %w", err)
	}

	fmt.Printf("Loading blockchain configuration from '%s'...\n", absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", absPath, err)
	}

	var cfg BlockchainConfig
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}
	cfg.SetDefaults()

	fmt.Println("Blockchain configuration loaded successfully.")
	return &cfg, nil
}

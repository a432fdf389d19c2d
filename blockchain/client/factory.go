package blockchain

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"docnotary/blockchain/client/chainmaker"
	"docnotary/blockchain/client/evm"
	"docnotary/config"
)

// BlockchainType represents the type of blockchain client
type BlockchainType string

const (
	EVM        BlockchainType = "evm"
	ChainMaker BlockchainType = "chainmaker"
)

var (
	_ Registry  = (*evm.Client)(nil)
	_ FeeOracle = (*evm.Client)(nil)
	_ Registry  = (*chainmaker.Client)(nil)
)

// LoadChainSpecificConfig loads chain-specific configuration based on blockchain type
func LoadChainSpecificConfig(blockchainType string, configDir string) (any, error) {
	switch BlockchainType(blockchainType) {
	case EVM, "":
		return evm.LoadEVMConfig(filepath.Join(configDir, "clients", "evm.yml"))
	case ChainMaker:
		return chainmaker.LoadChainMakerConfig(filepath.Join(configDir, "clients", "chainmaker.yml"))
	default:
		return nil, fmt.Errorf("unsupported blockchain type: %s", blockchainType)
	}
}

// NewRegistry creates a registry client based on the configuration
func NewRegistry(ctx context.Context, cfg *config.BlockchainConfig, logger *log.Logger) (Registry, error) {
	switch BlockchainType(cfg.BlockchainType) {
	case EVM, "":
		return evm.NewEVMClient(ctx, cfg, logger)
	case ChainMaker:
		return chainmaker.NewChainMakerClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported blockchain type: %s", cfg.BlockchainType)
	}
}

// NewRegistryFromFile creates a registry client from configuration files
func NewRegistryFromFile(ctx context.Context, configPath string, logger *log.Logger) (Registry, error) {
	// Load common configuration
	cfg, err := config.LoadBlockchainConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load common config from file '%s': %w", configPath, err)
	}

	// Load chain-specific configuration
	configDir := filepath.Dir(configPath)
	chainSpecificCfg, err := LoadChainSpecificConfig(cfg.BlockchainType, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain-specific config: %w", err)
	}

	cfg.ChainSpecific = chainSpecificCfg
	return NewRegistry(ctx, cfg, logger)
}

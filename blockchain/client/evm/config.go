package evm

import (
	"fmt"
	"os"
	"path/filepath"

	"docnotary/config"

	"gopkg.in/yaml.v2"
)

// Signer types
const (
	SignerNone = "none"
	SignerKey  = "key"
	SignerClef = "clef"
)

// SignerConfig selects how transactions are signed
type SignerConfig struct {
	Type         string `yaml:"type"`          // "key", "clef" or "none"
	PrivateKey   string `yaml:"-"`             // Hex key, only from NOTARY_EVM_PRIVATE_KEY
	ClefEndpoint string `yaml:"clef_endpoint"` // IPC path or URL of the external signer
	Account      string `yaml:"account"`       // Account to use from the external signer, first when empty
}

// EVMConfig stores EVM-specific configuration
type EVMConfig struct {
	RPCURL          string       `yaml:"rpc_url"`
	ExpectedChainID string       `yaml:"expected_chain_id"` // Refuse to start when the node reports another chain
	Signer          SignerConfig `yaml:"signer"`
}

// SetDefaults picks the signer type from what is configured
func (c *EVMConfig) SetDefaults() {
	if c.Signer.Type != "" {
		return
	}
	switch {
	case c.Signer.PrivateKey != "":
		c.Signer.Type = SignerKey
	case c.Signer.ClefEndpoint != "":
		c.Signer.Type = SignerClef
	default:
		c.Signer.Type = SignerNone
	}
	fmt.Printf("Warning: signer.type not set, defaulting to %s\n", c.Signer.Type)
}

// Validate validates the EVM configuration
func (c *EVMConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	switch c.Signer.Type {
	case SignerNone:
	case SignerKey:
		if c.Signer.PrivateKey == "" {
			return fmt.Errorf("signer type 'key' requires NOTARY_EVM_PRIVATE_KEY")
		}
	case SignerClef:
		if c.Signer.ClefEndpoint == "" {
			return fmt.Errorf("signer type 'clef' requires clef_endpoint")
		}
	default:
		return fmt.Errorf("unsupported signer type: %s", c.Signer.Type)
	}
	return nil
}

// LoadEVMConfig loads EVM configuration from the specified YAML file path.
// The RPC URL and private key may be overridden from the environment.
func LoadEVMConfig(path string) (*EVMConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of EVM config file: %w", err)
	}

	fmt.Printf("Loading EVM configuration from '%s'...\n", absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read EVM config file '%s': %w", absPath, err)
	}

	var cfg EVMConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse EVM YAML config file: %w", err)
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if secrets.EVMRPCURL != "" {
		cfg.RPCURL = secrets.EVMRPCURL
	}
	cfg.Signer.PrivateKey = secrets.EVMPrivateKey

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fmt.Println("EVM configuration loaded successfully.")
	return &cfg, nil
}

package chainmaker

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// NodeConfig stores detailed configuration for a single ChainMaker node
type NodeConfig struct {
	Address     string   `yaml:"address"`
	ConnCount   int      `yaml:"conn_count"`
	UseTLS      bool     `yaml:"use_tls"`
	TLSHostName string   `yaml:"tls_host_name"`
	CaPaths     []string `yaml:"ca_paths"`
}

// ChainMakerConfig stores ChainMaker-specific configuration
type ChainMakerConfig struct {
	// --- SDK Connection Required ---
	ChainID string `yaml:"chain_id"`
	OrgID   string `yaml:"org_id"`

	// TLS Connection Credentials
	UserKeyPath  string `yaml:"user_key_path"`
	UserCertPath string `yaml:"user_cert_path"`

	// Transaction Signing Credentials
	UserSignKeyPath  string `yaml:"user_sign_key_path"`
	UserSignCertPath string `yaml:"user_sign_cert_path"`

	Nodes []NodeConfig `yaml:"nodes"`

	// --- Registry Contract ---
	ContractName       string `yaml:"contract_name"`
	NotarizeMethodName string `yaml:"notarize_method_name"`
	ExistsMethodName   string `yaml:"exists_method_name"`
	DocsMethodName     string `yaml:"docs_method_name"`
	ParamKeyHash       string `yaml:"param_key_hash"`
	ParamKeyMeta       string `yaml:"param_key_meta"`
}

// SetDefaults fills in the registry method and parameter names
func (c *ChainMakerConfig) SetDefaults() {
	if c.NotarizeMethodName == "" {
		c.NotarizeMethodName = "notarize"
	}
	if c.ExistsMethodName == "" {
		c.ExistsMethodName = "exists"
	}
	if c.DocsMethodName == "" {
		c.DocsMethodName = "docs"
	}
	if c.ParamKeyHash == "" {
		c.ParamKeyHash = "hash"
	}
	if c.ParamKeyMeta == "" {
		c.ParamKeyMeta = "meta"
	}
}

// Validate checks the fields the SDK cannot default
func (c *ChainMakerConfig) Validate() error {
	if c.ChainID == "" || c.OrgID == "" {
		return fmt.Errorf("chain_id and org_id are required")
	}
	if c.ContractName == "" {
		return fmt.Errorf("contract_name is required")
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("no node configurations provided in config")
	}
	return nil
}

// LoadChainMakerConfig loads ChainMaker configuration from the specified YAML file path
func LoadChainMakerConfig(path string) (*ChainMakerConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of ChainMaker config file: %w", err)
	}

	fmt.Printf("Loading ChainMaker configuration from '%s'...\n", absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ChainMaker config file '%s': %w", absPath, err)
	}

	var cfg ChainMakerConfig
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ChainMaker YAML config file: %w", err)
	}
	cfg.SetDefaults()

	fmt.Println("ChainMaker configuration loaded successfully.")
	return &cfg, nil
}

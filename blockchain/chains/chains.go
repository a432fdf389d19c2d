// Package chains holds the static per-chain table: display names, block
// explorers, default registry deployments and gas profiles.
package chains

import (
	"fmt"
	"math/big"
	"strings"
)

// Known chain identifiers
const (
	BaseMainnet = "8453"
	BaseGoerli  = "84531"
	BaseSepolia = "84532"
	Hardhat     = "31337"
)

// Gwei is 10^9 wei
var Gwei = big.NewInt(1_000_000_000)

// GasProfile is the default gas envelope for a chain
type GasProfile struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Chain describes a supported network
type Chain struct {
	ID              string
	Name            string
	ExplorerBase    string
	RegistryAddress string
	Gas             GasProfile
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Gwei)
}

// DefaultGas applies to chains without a specific profile
var DefaultGas = GasProfile{GasLimit: 100000, MaxFeePerGas: gwei(10), MaxPriorityFeePerGas: gwei(2)}

// FallbackGas is used when network estimation is unavailable
var FallbackGas = GasProfile{GasLimit: 150000, MaxFeePerGas: gwei(20), MaxPriorityFeePerGas: gwei(5)}

var known = map[string]Chain{
	BaseMainnet: {
		ID:           BaseMainnet,
		Name:         "Base Mainnet",
		ExplorerBase: "https://basescan.org",
		Gas:          GasProfile{GasLimit: 100000, MaxFeePerGas: gwei(20), MaxPriorityFeePerGas: gwei(5)},
	},
	BaseGoerli: {
		ID:           BaseGoerli,
		Name:         "Base Goerli",
		ExplorerBase: "https://goerli.basescan.org",
		Gas:          DefaultGas,
	},
	BaseSepolia: {
		ID:              BaseSepolia,
		Name:            "Base Sepolia",
		ExplorerBase:    "https://sepolia.basescan.org",
		RegistryAddress: "0xB8C12Ff0f2628Af59dEF9D4BAf89BB250D8A87F3",
		Gas:             GasProfile{GasLimit: 120000, MaxFeePerGas: gwei(15), MaxPriorityFeePerGas: gwei(3)},
	},
	Hardhat: {
		ID:              Hardhat,
		Name:            "Local Hardhat",
		ExplorerBase:    "http://localhost:8545",
		RegistryAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Gas:             DefaultGas,
	},
}

// Lookup returns the table entry for id
func Lookup(id string) (Chain, bool) {
	c, ok := known[id]
	return c, ok
}

// IsSupported reports whether id is in the table
func IsSupported(id string) bool {
	_, ok := known[id]
	return ok
}

// Name returns the display name, or a generic label for unknown chains
func Name(id string) string {
	if c, ok := known[id]; ok {
		return c.Name
	}
	return fmt.Sprintf("Chain %s", id)
}

// GasFor returns the chain's gas profile, or DefaultGas
func GasFor(id string) GasProfile {
	if c, ok := known[id]; ok {
		return c.Gas
	}
	return DefaultGas
}

// RegistryAddress resolves the registry contract for a chain.
// A non-empty override wins over the built-in deployment table.
func RegistryAddress(id string, overrides map[string]string) (string, error) {
	if addr := strings.TrimSpace(overrides[id]); addr != "" {
		return addr, nil
	}
	if c, ok := known[id]; ok && c.RegistryAddress != "" {
		return c.RegistryAddress, nil
	}
	return "", fmt.Errorf("no contract address found for chain ID: %s", id)
}

// ExplorerTxURL derives {explorer}/tx/{txHash}; empty for unknown chains
func ExplorerTxURL(id, txHash string) string {
	c, ok := known[id]
	if !ok || txHash == "" {
		return ""
	}
	return c.ExplorerBase + "/tx/" + txHash
}

// ExplorerAddressURL derives {explorer}/address/{address}
func ExplorerAddressURL(id, address string) string {
	c, ok := known[id]
	if !ok {
		return ""
	}
	return c.ExplorerBase + "/address/" + address
}

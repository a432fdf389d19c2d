// Package gas produces the fee envelope for a registry write.
package gas

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"docnotary/blockchain/chains"
	blockchain "docnotary/blockchain/client"
	"docnotary/blockchain/types"
	"docnotary/config"

	"github.com/ethereum/go-ethereum/common"
)

// Estimate sources
const (
	SourceNetwork  = "network"
	SourceProfile  = "profile"
	SourceFallback = "fallback"
)

// FallbackWarning is surfaced when network estimation was unavailable
const FallbackWarning = "Using estimated gas costs (network estimation unavailable)"

var (
	// ErrNoChain is returned when there is no chain to estimate against
	ErrNoChain = errors.New("no chain connection for gas estimation")
	// ErrEstimationFailed is returned when the network failed and fallback is disabled
	ErrEstimationFailed = errors.New("gas estimation failed")
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Estimate is a fee envelope with its derived cost
type Estimate struct {
	GasLimit             uint64   `json:"gas_limit"`
	MaxFeePerGas         *big.Int `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas *big.Int `json:"max_priority_fee_per_gas"`
	EstimatedCostWei     *big.Int `json:"estimated_cost_wei"`
	EstimatedCostNative  string   `json:"estimated_cost_native"`
	Source               string   `json:"source"`
	Warning              string   `json:"warning,omitempty"`
}

// Envelope returns the fields a registry write is sent with
func (e *Estimate) Envelope() types.FeeEnvelope {
	return types.FeeEnvelope{
		GasLimit:             e.GasLimit,
		MaxFeePerGas:         new(big.Int).Set(e.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(e.MaxPriorityFeePerGas),
	}
}

// Estimator picks per-chain gas values, asking the node when the registry can quote fees
type Estimator struct {
	cfg    config.GasConfig
	logger *log.Logger
}

// NewEstimator creates an Estimator
func NewEstimator(cfg config.GasConfig, logger *log.Logger) *Estimator {
	if cfg.BufferPercent <= 0 {
		cfg.BufferPercent = 20
	}
	return &Estimator{cfg: cfg, logger: logger}
}

// Estimate returns a fee envelope for notarize(hash, meta) on chain.
// Network failures fall back to a conservative table with a Warning; an error
// is only returned without a chain or when fallback is disabled. Nothing is cached.
func (e *Estimator) Estimate(ctx context.Context, hash common.Hash, meta string, chain blockchain.Registry) (*Estimate, error) {
	if chain == nil {
		return nil, ErrNoChain
	}
	profile := chains.GasFor(chain.ChainID())

	oracle, ok := chain.(blockchain.FeeOracle)
	if !ok {
		return newEstimate(profile.GasLimit, profile.MaxFeePerGas, profile.MaxPriorityFeePerGas, SourceProfile, ""), nil
	}

	quote, err := oracle.SuggestFees(ctx, hash, meta)
	if err == nil {
		return e.fromQuote(quote, profile), nil
	}

	if e.cfg.DisableFallback {
		return nil, fmt.Errorf("%w: %v", ErrEstimationFailed, err)
	}
	e.logger.Printf("Gas estimation failed on chain %s, using fallback: %v", chain.ChainID(), err)
	fb := chains.FallbackGas
	return newEstimate(fb.GasLimit, fb.MaxFeePerGas, fb.MaxPriorityFeePerGas, SourceFallback, FallbackWarning), nil
}

func (e *Estimator) fromQuote(q *types.FeeQuote, profile chains.GasProfile) *Estimate {
	limit := profile.GasLimit
	if q.GasLimit > 0 {
		limit = q.GasLimit * uint64(100+e.cfg.BufferPercent) / 100
	}

	tip := profile.MaxPriorityFeePerGas
	if q.TipCap != nil {
		tip = q.TipCap
	}

	maxFee := profile.MaxFeePerGas
	if q.BaseFee != nil {
		maxFee = new(big.Int).Add(new(big.Int).Mul(q.BaseFee, big.NewInt(2)), tip)
	}
	if maxFee.Cmp(tip) < 0 {
		maxFee = tip
	}
	return newEstimate(limit, maxFee, tip, SourceNetwork, "")
}

func newEstimate(limit uint64, maxFee, tip *big.Int, source, warning string) *Estimate {
	cost := new(big.Int).Mul(new(big.Int).SetUint64(limit), maxFee)
	return &Estimate{
		GasLimit:             limit,
		MaxFeePerGas:         new(big.Int).Set(maxFee),
		MaxPriorityFeePerGas: new(big.Int).Set(tip),
		EstimatedCostWei:     cost,
		EstimatedCostNative:  FormatEther(cost),
		Source:               source,
		Warning:              warning,
	}
}

// FormatEther renders wei in ether units without trailing zeros, e.g. "0.0015"
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(wei)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	whole, frac := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	digits := frac.String()
	fracStr := strings.TrimRight(strings.Repeat("0", 18-len(digits))+digits, "0")
	return sign + whole.String() + "." + fracStr
}

package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HashHexLength is the length of a normalized digest string: "0x" + 64 hex digits
const HashHexLength = 66

// Errors returned by registry backends. Backends wrap the raw transport error
// with one of these so callers can categorize failures without string matching.
var (
	ErrUserRejected      = errors.New("user rejected the request")
	ErrInsufficientFunds = errors.New("insufficient funds for gas")
	ErrNetwork           = errors.New("network error")
	ErrReverted          = errors.New("transaction reverted")
	ErrInvalidHash       = errors.New("invalid document hash")
)

// ParseHash normalizes a digest string into a 32-byte hash.
// A missing 0x prefix is added and hex digits are lower-cased; any other
// length or a non-hex digit is rejected rather than padded or truncated.
func ParseHash(s string) (common.Hash, error) {
	normalized, err := NormalizeHash(s)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := hex.DecodeString(normalized[2:])
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return common.BytesToHash(raw), nil
}

// NormalizeHash returns the canonical "0x" + 64 lower-case hex form of s.
func NormalizeHash(s string) (string, error) {
	formatted := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(formatted, "0x") {
		formatted = "0x" + formatted
	}
	if len(formatted) != HashHexLength {
		return "", fmt.Errorf("%w: length %d, expected %d", ErrInvalidHash, len(formatted), HashHexLength)
	}
	for _, c := range formatted[2:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", fmt.Errorf("%w: non-hex character %q", ErrInvalidHash, c)
		}
	}
	return formatted, nil
}

// FeeEnvelope carries the gas limit and two-part fee a write must be sent with
type FeeEnvelope struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// FeeQuote is what a node suggests for a pending write
type FeeQuote struct {
	GasLimit uint64   // Estimated gas for the call, before any buffer
	BaseFee  *big.Int // Base fee of the latest block, nil on pre-London chains
	TipCap   *big.Int // Suggested priority fee
}

// TxHandle identifies a write accepted by a node but not yet mined
type TxHandle struct {
	TxHash string
}

// Receipt is the outcome of a mined write
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
	Reason      string // Revert reason or node message when Success is false
}

// DocumentRecord is the registry entry returned by docs(hash)
type DocumentRecord struct {
	Hash      common.Hash
	Submitter string
	Timestamp uint64 // Unix seconds, uint40 on-chain
	Meta      string
}

// Registered reports whether the record refers to a stored document.
// The contract returns a zero struct for unknown hashes.
func (d *DocumentRecord) Registered() bool {
	return d != nil && d.Timestamp != 0
}

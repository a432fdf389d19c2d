package blockchain

import (
	"context"

	"docnotary/blockchain/types"

	"github.com/ethereum/go-ethereum/common"
)

// Registry defines the generic interface for the document registry contract.
// This interface is blockchain-agnostic and can be implemented by different blockchain clients
type Registry interface {
	// Notarize issues the state-mutating notarize(hash, meta) write.
	// It returns once a node has accepted the write into its pending pool.
	Notarize(ctx context.Context, hash common.Hash, meta string, fee types.FeeEnvelope) (types.TxHandle, error)

	// Exists reports whether the hash is already registered on-chain
	Exists(ctx context.Context, hash common.Hash) (bool, error)

	// Document reads docs(hash); a zero record means not registered
	Document(ctx context.Context, hash common.Hash) (*types.DocumentRecord, error)

	// WaitReceipt blocks until the write is mined, fails, or ctx is done
	WaitReceipt(ctx context.Context, handle types.TxHandle) (*types.Receipt, error)

	// ChainID returns the identifier of the connected chain
	ChainID() string

	// Account returns the submitting account, empty when no signer is available
	Account() string

	// ContractAddress returns the bound registry contract, empty when none is deployed on this chain
	ContractAddress() string

	// Close closes the blockchain client and releases resources
	Close() error
}

// FeeOracle is implemented by registries that can quote fees from the network
type FeeOracle interface {
	SuggestFees(ctx context.Context, hash common.Hash, meta string) (*types.FeeQuote, error)
}

package notarization

import (
	"context"
	"errors"
	"fmt"

	"docnotary/blockchain/types"
	"docnotary/gas"
)

// Precondition failures. None of these create a transaction record.
var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrNoContract         = errors.New("registry contract not available on this chain")
	ErrInvalidHash        = types.ErrInvalidHash
	ErrAlreadyNotarized   = errors.New("document hash already exists on blockchain")
	ErrInFlight           = errors.New("document hash is already being notarized")
	ErrNotFound           = errors.New("transaction not found")
	ErrNotConfirming      = errors.New("transaction is not awaiting confirmation")
	ErrAlreadyWatching    = errors.New("transaction is already being watched")
	ErrDocumentNotFound   = errors.New("document not registered")
)

// Category classifies why a transaction failed
type Category string

const (
	CategoryUserCancelled     Category = "user_cancelled"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryNetwork           Category = "network"
	CategoryReverted          Category = "reverted"
	CategoryTimeout           Category = "timeout"
	CategoryGas               Category = "gas"
	CategoryCancelled         Category = "cancelled"
	CategoryOther             Category = "other"
)

var messages = map[Category]string{
	CategoryUserCancelled:     "Transaction cancelled by user",
	CategoryInsufficientFunds: "Insufficient funds for gas fee",
	CategoryNetwork:           "Network error. Please check your connection.",
	CategoryReverted:          "Transaction failed on-chain",
	CategoryTimeout:           "Timed out waiting for confirmation",
	CategoryGas:               "Gas estimation failed",
	CategoryCancelled:         "Submission cancelled",
	CategoryOther:             "Transaction failed",
}

// Message returns the short user-facing text for c
func (c Category) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CategoryOther]
}

// TxError is a categorized transaction failure.
// Message is safe to show to a user; Cause keeps the raw detail.
type TxError struct {
	Category Category
	Message  string
	Cause    error
}

func (e *TxError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *TxError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether resubmitting may succeed without the user changing anything
// but fees or timing. A wallet decline is deliberate and is not retryable.
func (e *TxError) Retryable() bool {
	switch e.Category {
	case CategoryNetwork, CategoryTimeout, CategoryGas, CategoryReverted:
		return true
	default:
		return false
	}
}

// NewTxError builds a TxError with the category's default message
func NewTxError(category Category, cause error) *TxError {
	return &TxError{Category: category, Message: category.Message(), Cause: cause}
}

// Categorize maps an error from the gas or registry layer to a TxError
func Categorize(err error) *TxError {
	if err == nil {
		return nil
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr
	}
	switch {
	case errors.Is(err, types.ErrUserRejected):
		return NewTxError(CategoryUserCancelled, err)
	case errors.Is(err, types.ErrInsufficientFunds):
		return NewTxError(CategoryInsufficientFunds, err)
	case errors.Is(err, types.ErrNetwork):
		return NewTxError(CategoryNetwork, err)
	case errors.Is(err, types.ErrReverted):
		return NewTxError(CategoryReverted, err)
	case errors.Is(err, gas.ErrEstimationFailed):
		return NewTxError(CategoryGas, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTxError(CategoryTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewTxError(CategoryCancelled, err)
	default:
		return NewTxError(CategoryOther, err)
	}
}

// Package notarization tracks document registry writes from submission to receipt.
package notarization

import (
	"errors"
	"fmt"

	"docnotary/blockchain/types"
)

// Status is the lifecycle state of a notarization transaction
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirming Status = "confirming"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition can leave s
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Transaction is one notarization attempt.
// Records are replaced whole on every change and never mutated in place.
type Transaction struct {
	ID            string   `json:"id"`
	Hash          string   `json:"hash"`
	FileName      string   `json:"file_name"`
	Meta          string   `json:"meta,omitempty"`
	Status        Status   `json:"status"`
	ChainID       string   `json:"chain_id,omitempty"`
	TxHash        string   `json:"tx_hash,omitempty"`
	BlockNumber   uint64   `json:"block_number,omitempty"`
	GasUsed       uint64   `json:"gas_used,omitempty"`
	ExplorerURL   string   `json:"explorer_url,omitempty"`
	ErrorCategory Category `json:"error_category,omitempty"`
	Error         string   `json:"error,omitempty"`
	ErrorDetail   string   `json:"error_detail,omitempty"`
	Timestamp     int64    `json:"timestamp"` // Creation time, unix millis
	UpdatedAt     int64    `json:"updated_at"`
}

// EventKind names a lifecycle transition
type EventKind int

const (
	// EventSubmitted: a node accepted the write (pending -> confirming)
	EventSubmitted EventKind = iota
	// EventConfirmed: the receipt resolved successfully (confirming -> confirmed)
	EventConfirmed
	// EventFailed: the write or its receipt failed (pending|confirming -> failed)
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventSubmitted:
		return "submitted"
	case EventConfirmed:
		return "confirmed"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event drives a Transition
type Event struct {
	Kind        EventKind
	TxHash      string         // EventSubmitted
	ExplorerURL string         // EventSubmitted
	Receipt     *types.Receipt // EventConfirmed
	Err         *TxError       // EventFailed
}

// ErrIllegalTransition is returned when an event does not apply to the current status
var ErrIllegalTransition = errors.New("illegal transaction transition")

// Transition returns the record that results from applying ev to tx.
// The only legal moves are pending->confirming, pending->failed,
// confirming->confirmed and confirming->failed.
func Transition(tx Transaction, ev Event) (Transaction, error) {
	next := tx
	switch ev.Kind {
	case EventSubmitted:
		if tx.Status != StatusPending {
			return tx, illegal(tx.Status, StatusConfirming)
		}
		if ev.TxHash == "" {
			return tx, fmt.Errorf("%w: submitted without a chain transaction hash", ErrIllegalTransition)
		}
		next.Status = StatusConfirming
		next.TxHash = ev.TxHash
		next.ExplorerURL = ev.ExplorerURL

	case EventConfirmed:
		if tx.Status != StatusConfirming {
			return tx, illegal(tx.Status, StatusConfirmed)
		}
		if ev.Receipt == nil {
			return tx, fmt.Errorf("%w: confirmed without a receipt", ErrIllegalTransition)
		}
		next.Status = StatusConfirmed
		next.BlockNumber = ev.Receipt.BlockNumber
		next.GasUsed = ev.Receipt.GasUsed

	case EventFailed:
		if tx.Status.Terminal() {
			return tx, illegal(tx.Status, StatusFailed)
		}
		txErr := ev.Err
		if txErr == nil {
			txErr = &TxError{Category: CategoryOther, Message: messages[CategoryOther]}
		}
		next.Status = StatusFailed
		next.ErrorCategory = txErr.Category
		next.Error = txErr.Message
		if txErr.Cause != nil {
			next.ErrorDetail = txErr.Cause.Error()
		}

	default:
		return tx, fmt.Errorf("%w: unknown event %s", ErrIllegalTransition, ev.Kind)
	}
	return next, nil
}

func illegal(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// NotarizeRequest asks the daemon to notarize a document hash.
// Used across the gateway, the request consumer and the processing worker.
type NotarizeRequest struct {
	RequestID   string `json:"RequestID"`
	Hash        string `json:"Hash"`
	FileName    string `json:"FileName"`
	Meta        string `json:"Meta,omitempty"`
	SubmittedAt string `json:"SubmittedAt"` // RFC3339Nano
}

// NewNotarizeRequest creates a request with a fresh request id
func NewNotarizeRequest(hash, fileName, meta string) *NotarizeRequest {
	return &NotarizeRequest{
		RequestID:   uuid.NewString(),
		Hash:        hash,
		FileName:    fileName,
		Meta:        meta,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// TransactionEvent is published on every notarization lifecycle transition
type TransactionEvent struct {
	EventID       string `json:"EventID"`
	TransactionID string `json:"TransactionID"`
	Hash          string `json:"Hash"`
	FileName      string `json:"FileName"`
	ChainID       string `json:"ChainID,omitempty"`
	Status        string `json:"Status"`
	ChainTxHash   string `json:"ChainTxHash,omitempty"`
	BlockNumber   uint64 `json:"BlockNumber,omitempty"`
	GasUsed       uint64 `json:"GasUsed,omitempty"`
	ExplorerURL   string `json:"ExplorerURL,omitempty"`
	ErrorCategory string `json:"ErrorCategory,omitempty"`
	Error         string `json:"Error,omitempty"`
	OccurredAt    string `json:"OccurredAt"` // RFC3339Nano
}

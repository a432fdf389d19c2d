package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docnotary/blockchain/types"
	"docnotary/gas"
	"docnotary/ingestion"
	"docnotary/notarization"
	"docnotary/validation"

	"github.com/google/uuid"
)

// ErrFileNotReady is returned when a notarization names a file that has no fingerprint yet
var ErrFileNotReady = errors.New("file has not been fingerprinted")

// ErrHashMismatch is returned when both a hash and a file are given and they disagree
var ErrHashMismatch = errors.New("provided hash does not match file fingerprint")

// NotarizeInput defines what a notarization request carries.
// Either Hash or FileID must be set; FileID takes the hash and name of a processed file.
type NotarizeInput struct {
	Hash     string
	FileID   string // Optional
	FileName string // Optional
	Meta     string // Optional, defaults to the file name
}

// NotarizeResult defines the return information after a request is accepted
type NotarizeResult struct {
	RequestID     string
	TransactionID string
	Hash          string
	ReceivedAt    time.Time
}

// Service encapsulates the gateway's business logic over the file pipeline and the transaction manager
type Service struct {
	pipeline  *ingestion.Pipeline
	manager   *notarization.Manager
	estimator notarization.GasEstimator
	logger    *log.Logger
}

// NewService creates a new Service instance
func NewService(p *ingestion.Pipeline, m *notarization.Manager, e notarization.GasEstimator, l *log.Logger) *Service {
	return &Service{pipeline: p, manager: m, estimator: e, logger: l}
}

// Files returns the file pipeline
func (s *Service) Files() *ingestion.Pipeline {
	return s.pipeline
}

// Transactions returns the transaction manager
func (s *Service) Transactions() *notarization.Manager {
	return s.manager
}

// AddFiles validates files and queues the valid ones for fingerprinting
func (s *Service) AddFiles(ctx context.Context, files []ingestion.File) (validation.BatchResult, []ingestion.ProcessedFile, error) {
	return s.pipeline.Add(ctx, files)
}

// EstimateGas prices a notarization of hash with meta on the connected chain
func (s *Service) EstimateGas(ctx context.Context, hash, meta string) (*gas.Estimate, error) {
	chain := s.manager.Chain()
	if chain == nil {
		return nil, notarization.ErrWalletNotConnected
	}
	digest, err := types.ParseHash(hash)
	if err != nil {
		return nil, err
	}
	return s.estimator.Estimate(ctx, digest, meta, chain)
}

// Notarize resolves input and queues a notarization, returning once the pending record exists
func (s *Service) Notarize(ctx context.Context, input *NotarizeInput) (*NotarizeResult, error) {
	receivedAt := time.Now()
	hash, fileName := input.Hash, input.FileName

	if input.FileID != "" {
		file, ok := s.pipeline.Get(input.FileID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ingestion.ErrFileNotFound, input.FileID)
		}
		if file.Status != ingestion.FileCompleted {
			return nil, fmt.Errorf("%w: %s is %s", ErrFileNotReady, file.Name, file.Status)
		}
		if hash != "" {
			normalized, err := types.NormalizeHash(hash)
			if err != nil {
				return nil, err
			}
			if normalized != file.Hash {
				return nil, fmt.Errorf("%w: provided '%s', %s has '%s'", ErrHashMismatch, normalized, file.Name, file.Hash)
			}
		}
		hash = file.Hash
		if fileName == "" {
			fileName = file.Name
		}
	}

	meta := input.Meta
	if meta == "" {
		meta = fileName
	}

	requestID := uuid.NewString()
	id, err := s.manager.Enqueue(ctx, hash, fileName, meta)
	if err != nil {
		s.logger.Printf("Service: Request %s rejected: %v", requestID, err)
		return nil, err
	}
	tx, _ := s.manager.Get(id)
	s.logger.Printf("Service: Request %s queued as notarization %s", requestID, id)
	return &NotarizeResult{
		RequestID:     requestID,
		TransactionID: id,
		Hash:          tx.Hash,
		ReceivedAt:    receivedAt,
	}, nil
}

// Close stops the file pipeline
func (s *Service) Close() {
	s.pipeline.Close()
}

package consumer

import (
	"context"
	"errors"
	"log"
	"time"

	"docnotary/fingerprint"
	"docnotary/internal/models"
)

// MockConsumer serves fixed predefined requests for local runs and tests.
type MockConsumer struct {
	logger   *log.Logger
	requests chan *models.NotarizeRequest
}

// PredefinedRequests stores the requests to be simulated.
var PredefinedRequests []*models.NotarizeRequest

// init generates fixed test data when the package is loaded.
func init() {
	now := time.Now().UTC()
	PredefinedRequests = []*models.NotarizeRequest{
		{
			RequestID:   "a1b1c1d1-e1f1-1111-2222-1234567890ab",
			Hash:        fingerprint.DigestBytes([]byte("Fixed mock document 1")),
			FileName:    "mock-contract-1.pdf",
			SubmittedAt: now.Add(-time.Minute).Format(time.RFC3339Nano),
		},
		{
			RequestID:   "a2b2c2d2-e2f2-3333-4444-abcdef123456",
			Hash:        fingerprint.DigestBytes([]byte("Fixed mock document 2 with more detail")),
			FileName:    "mock-contract-2.pdf",
			Meta:        "mock-contract-2.pdf",
			SubmittedAt: now.Add(-30 * time.Second).Format(time.RFC3339Nano),
		},
		// Same hash as the first request (simulates duplicate submission)
		{
			RequestID:   "a3b3c3d3-e3f3-5555-6666-fedcba654321",
			Hash:        fingerprint.DigestBytes([]byte("Fixed mock document 1")),
			FileName:    "mock-contract-1-copy.pdf",
			SubmittedAt: now.Format(time.RFC3339Nano),
		},
	}
}

// NewMockConsumer creates a MockConsumer loaded with requests, or PredefinedRequests when none are given.
func NewMockConsumer(logger *log.Logger, requests ...*models.NotarizeRequest) *MockConsumer {
	if len(requests) == 0 {
		requests = PredefinedRequests
	}
	mc := &MockConsumer{
		logger:   logger,
		requests: make(chan *models.NotarizeRequest, len(requests)+5),
	}
	logger.Println("[MockConsumer] Initializing with predefined requests...")
	for _, req := range requests {
		mc.requests <- req
		logger.Printf("[MockConsumer] Added request: request_id=%s hash=%s", req.RequestID, req.Hash)
	}
	return mc
}

// Consume reads the next request from the channel.
func (m *MockConsumer) Consume(ctx context.Context) (req *models.NotarizeRequest, ack func(success bool), err error) {
	select {
	case <-ctx.Done():
		m.logger.Println("[MockConsumer] Context cancelled, stopping consumption")
		return nil, nil, ctx.Err()
	case req, ok := <-m.requests:
		if !ok {
			m.logger.Println("[MockConsumer] Request channel closed")
			return nil, nil, errors.New("request channel closed")
		}
		m.logger.Printf("[MockConsumer] Consumed request: request_id=%s", req.RequestID)

		ackCallback := func(success bool) {
			if success {
				m.logger.Printf("[MockConsumer] ACK received for request: request_id=%s", req.RequestID)
				return
			}
			m.logger.Printf("[MockConsumer] NACK received for request: request_id=%s. Re-queueing (mock)", req.RequestID)
			select {
			case m.requests <- req:
			default:
				m.logger.Printf("[MockConsumer] Warning: Failed to re-queue request (channel full?): request_id=%s", req.RequestID)
			}
		}
		return req, ackCallback, nil
	}
}

// Close closes the request channel.
func (m *MockConsumer) Close() error {
	m.logger.Println("[MockConsumer] Closing...")
	close(m.requests)
	return nil
}

var _ Consumer = (*MockConsumer)(nil)

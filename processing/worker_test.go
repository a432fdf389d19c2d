package worker

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"docnotary/blockchain/types"
	"docnotary/config"
	"docnotary/internal/messaging/consumer"
	"docnotary/internal/models"
	"docnotary/notarization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type submitterMock struct {
	mock.Mock
}

func (m *submitterMock) NotarizeDocument(ctx context.Context, hash, fileName, meta string) (string, error) {
	args := m.Called(hash, fileName, meta)
	return args.String(0), args.Error(1)
}

// ackingConsumer wraps a consumer and records every ack
type ackingConsumer struct {
	consumer.Consumer
	mu   sync.Mutex
	acks map[string][]bool
}

func (c *ackingConsumer) Consume(ctx context.Context) (*models.NotarizeRequest, func(bool), error) {
	req, ack, err := c.Consumer.Consume(ctx)
	if err != nil || req == nil {
		return req, ack, err
	}
	return req, func(success bool) {
		c.mu.Lock()
		c.acks[req.RequestID] = append(c.acks[req.RequestID], success)
		c.mu.Unlock()
		ack(success)
	}, nil
}

func (c *ackingConsumer) snapshot() map[string][]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]bool, len(c.acks))
	for k, v := range c.acks {
		out[k] = append([]bool(nil), v...)
	}
	return out
}

func TestWorker_Run(t *testing.T) {
	// Arrange
	logger := log.New(io.Discard, "", 0)
	ok := &models.NotarizeRequest{RequestID: "ok", Hash: "0x01", FileName: "a.pdf"}
	dup := &models.NotarizeRequest{RequestID: "dup", Hash: "0x02", FileName: "b.pdf", Meta: "custom"}
	flaky := &models.NotarizeRequest{RequestID: "flaky", Hash: "0x03", FileName: "c.pdf"}
	c := &ackingConsumer{Consumer: consumer.NewMockConsumer(logger, ok, dup, flaky), acks: make(map[string][]bool)}

	s := new(submitterMock)
	s.On("NotarizeDocument", "0x01", "a.pdf", "a.pdf").Return("tx-1", nil)
	s.On("NotarizeDocument", "0x02", "b.pdf", "custom").Return("", notarization.ErrAlreadyNotarized)
	s.On("NotarizeDocument", "0x03", "c.pdf", "c.pdf").Return("tx-3", notarization.NewTxError(notarization.CategoryNetwork, types.ErrNetwork)).Once()
	s.On("NotarizeDocument", "0x03", "c.pdf", "c.pdf").Return("tx-4", nil)

	w := New(config.WorkerConfig{Concurrency: 1, ConsumerRetryDelay: "1ms", SubmitTimeout: "1s"}, logger, c, s)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Act
	go func() {
		w.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return len(c.snapshot()["flaky"]) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// Assert
	acks := c.snapshot()
	assert.Equal(t, []bool{true}, acks["ok"])
	assert.Equal(t, []bool{true}, acks["dup"])
	assert.Equal(t, []bool{false, true}, acks["flaky"])
	s.AssertExpectations(t)
}

func TestPermanent(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{notarization.ErrAlreadyNotarized, true},
		{fmt.Errorf("%w: 1-0xaaaaaa", notarization.ErrInFlight), true},
		{types.ErrInvalidHash, true},
		{notarization.NewTxError(notarization.CategoryUserCancelled, types.ErrUserRejected), true},
		{notarization.NewTxError(notarization.CategoryInsufficientFunds, nil), true},
		{notarization.NewTxError(notarization.CategoryTimeout, context.DeadlineExceeded), false},
		{notarization.ErrWalletNotConnected, false},
		{fmt.Errorf("failed to check document existence: %w", types.ErrNetwork), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Permanent(tc.err), "%v", tc.err)
	}
}

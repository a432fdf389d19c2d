package producer

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"docnotary/internal/models"
	"docnotary/notarization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]*models.TransactionEvent
}

func (r *batchRecorder) record(args mock.Arguments) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, args.Get(1).([]*models.TransactionEvent))
}

func (r *batchRecorder) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.batches))
	for i, b := range r.batches {
		out[i] = len(b)
	}
	return out
}

func TestBatchObserver_FlushesFullBatch(t *testing.T) {
	// Arrange
	p := new(ProducerMock)
	rec := &batchRecorder{}
	p.On("PublishBatch", mock.Anything, mock.Anything).Run(rec.record).Return(nil)
	bo := NewBatchObserver(p, 2, time.Hour, 4, log.New(io.Discard, "", 0))
	defer bo.Close()

	// Act
	bo.TransactionStarted(notarization.Transaction{ID: "1", Status: notarization.StatusPending})
	bo.TransactionStarted(notarization.Transaction{ID: "2", Status: notarization.StatusPending})

	// Assert
	require.Eventually(t, func() bool { return len(rec.sizes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2}, rec.sizes())
}

func TestBatchObserver_FlushesOnInterval(t *testing.T) {
	p := new(ProducerMock)
	rec := &batchRecorder{}
	p.On("PublishBatch", mock.Anything, mock.Anything).Run(rec.record).Return(nil)
	bo := NewBatchObserver(p, 10, 10*time.Millisecond, 4, log.New(io.Discard, "", 0))
	defer bo.Close()

	bo.TransactionConfirmed(notarization.Transaction{ID: "1", Status: notarization.StatusConfirmed}, nil)

	require.Eventually(t, func() bool { return len(rec.sizes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, rec.sizes())
}

func TestBatchObserver_CloseFlushesRemainder(t *testing.T) {
	p := new(ProducerMock)
	rec := &batchRecorder{}
	p.On("PublishBatch", mock.Anything, mock.Anything).Run(rec.record).Return(nil)
	bo := NewBatchObserver(p, 10, time.Hour, 4, log.New(io.Discard, "", 0))

	bo.TransactionFailed(notarization.Transaction{ID: "1", Status: notarization.StatusFailed}, nil)
	bo.TransactionFailed(notarization.Transaction{ID: "2", Status: notarization.StatusFailed}, nil)
	bo.Close()

	assert.Equal(t, []int{2}, rec.sizes())
}

package producer

import (
	"context"
	"log"
	"sync"
	"time"

	"docnotary/blockchain/types"
	"docnotary/internal/models"
	"docnotary/notarization"
)

// BatchObserver buffers lifecycle events and publishes them with PublishBatch
// once batchSize events are buffered or every flushInterval, whichever comes first
type BatchObserver struct {
	batchSize     int
	flushInterval time.Duration
	timeout       time.Duration
	logger        *log.Logger
	producer      Producer

	// Buffers
	buffer      []*models.TransactionEvent
	bufferMutex sync.Mutex
	flushChan   chan []*models.TransactionEvent

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ notarization.Observer = (*BatchObserver)(nil)

// NewBatchObserver creates a batching observer and starts its flush goroutines
func NewBatchObserver(p Producer, batchSize int, flushInterval time.Duration, flushBuffer int, logger *log.Logger) *BatchObserver {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushBuffer <= 0 {
		flushBuffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	bo := &BatchObserver{
		batchSize:     batchSize,
		flushInterval: flushInterval,
		timeout:       10 * time.Second,
		logger:        logger,
		producer:      p,
		buffer:        make([]*models.TransactionEvent, 0, batchSize),
		flushChan:     make(chan []*models.TransactionEvent, flushBuffer),
		ctx:           ctx,
		cancel:        cancel,
	}

	bo.wg.Add(2)
	go bo.flushTimer()
	go bo.publisher()

	return bo
}

func (bo *BatchObserver) TransactionStarted(tx notarization.Transaction) {
	bo.add(NewTransactionEvent(tx))
}

func (bo *BatchObserver) TransactionConfirmed(tx notarization.Transaction, receipt *types.Receipt) {
	bo.add(NewTransactionEvent(tx))
}

func (bo *BatchObserver) TransactionFailed(tx notarization.Transaction, err *notarization.TxError) {
	bo.add(NewTransactionEvent(tx))
}

// add appends event to the buffer and hands a full buffer to the publisher
func (bo *BatchObserver) add(event *models.TransactionEvent) {
	bo.bufferMutex.Lock()
	bo.buffer = append(bo.buffer, event)
	if len(bo.buffer) < bo.batchSize {
		bo.bufferMutex.Unlock()
		return
	}
	batch := bo.buffer
	bo.buffer = make([]*models.TransactionEvent, 0, bo.batchSize)
	bo.bufferMutex.Unlock()

	select {
	case bo.flushChan <- batch:
	default:
		// Publisher is behind; keep the events for the next tick
		bo.requeue(batch)
		bo.logger.Printf("Event flush channel full, %d events deferred to next flush", len(batch))
	}
}

func (bo *BatchObserver) flushTimer() {
	defer bo.wg.Done()

	ticker := time.NewTicker(bo.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bo.flushIfNeeded()
		case <-bo.ctx.Done():
			return
		}
	}
}

func (bo *BatchObserver) publisher() {
	defer bo.wg.Done()

	for {
		select {
		case batch := <-bo.flushChan:
			bo.publish(batch)
		case <-bo.ctx.Done():
			// Drain queued batches and the buffer before shutdown
		drain:
			for {
				select {
				case batch := <-bo.flushChan:
					bo.publish(batch)
				default:
					break drain
				}
			}
			bo.bufferMutex.Lock()
			remaining := bo.buffer
			bo.buffer = nil
			bo.bufferMutex.Unlock()
			bo.publish(remaining)
			return
		}
	}
}

func (bo *BatchObserver) flushIfNeeded() {
	bo.bufferMutex.Lock()
	if len(bo.buffer) == 0 {
		bo.bufferMutex.Unlock()
		return
	}
	batch := bo.buffer
	bo.buffer = make([]*models.TransactionEvent, 0, bo.batchSize)
	bo.bufferMutex.Unlock()

	select {
	case bo.flushChan <- batch:
	default:
		bo.requeue(batch)
	}
}

// requeue puts batch back in front of anything buffered since
func (bo *BatchObserver) requeue(batch []*models.TransactionEvent) {
	bo.bufferMutex.Lock()
	bo.buffer = append(batch, bo.buffer...)
	bo.bufferMutex.Unlock()
}

func (bo *BatchObserver) publish(batch []*models.TransactionEvent) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), bo.timeout)
	defer cancel()
	if err := bo.producer.PublishBatch(ctx, batch); err != nil {
		bo.logger.Printf("Batch publish of %d events failed: %v", len(batch), err)
		return
	}
	bo.logger.Printf("Batch published: %d events in %v", len(batch), time.Since(start))
}

// Close flushes buffered events and stops the background goroutines
func (bo *BatchObserver) Close() {
	bo.cancel()
	bo.wg.Wait()
}

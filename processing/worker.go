package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"docnotary/config"
	"docnotary/internal/messaging/consumer"
	"docnotary/internal/models"
	"docnotary/notarization"
)

// Submitter issues a notarization and returns once the write is accepted or has failed
type Submitter interface {
	NotarizeDocument(ctx context.Context, hash, fileName, meta string) (string, error)
}

// Worker turns consumed NotarizeRequests into notarization submissions
type Worker struct {
	workerConfig       config.WorkerConfig
	consumerRetryDelay time.Duration // Parsed from workerConfig.ConsumerRetryDelay
	submitTimeout      time.Duration // Parsed from workerConfig.SubmitTimeout

	logger    *log.Logger
	consumer  consumer.Consumer
	submitter Submitter
}

// New creates a new Worker instance
func New(cfg config.WorkerConfig, logger *log.Logger, c consumer.Consumer, s Submitter) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	consumerRetryDelay, err := time.ParseDuration(cfg.ConsumerRetryDelay)
	if err != nil {
		logger.Printf("Warning: Invalid consumer_retry_delay '%s', using default 5s", cfg.ConsumerRetryDelay)
		consumerRetryDelay = 5 * time.Second
	}

	submitTimeout, err := time.ParseDuration(cfg.SubmitTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid submit_timeout '%s', using default 2m", cfg.SubmitTimeout)
		submitTimeout = 2 * time.Minute
	}

	return &Worker{
		workerConfig:       cfg,
		consumerRetryDelay: consumerRetryDelay,
		submitTimeout:      submitTimeout,
		logger:             logger,
		consumer:           c,
		submitter:          s,
	}
}

// Run starts the worker pool and blocks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) {
	w.logger.Printf("Starting worker pool with concurrency: %d, SubmitTimeout: %s",
		w.workerConfig.Concurrency, w.submitTimeout)
	var wg sync.WaitGroup
	for i := 0; i < w.workerConfig.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.logger.Printf("Worker %d started", workerID)
			w.processRequests(ctx, workerID)
			w.logger.Printf("Worker %d stopped", workerID)
		}(i + 1)
	}
	wg.Wait()
	w.logger.Println("Worker pool stopped.")
}

// processRequests is the main loop for a worker goroutine
func (w *Worker) processRequests(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			w.logger.Printf("Worker %d: Context cancelled, stopping.", workerID)
			return
		}

		req, ack, err := w.consumer.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			// Only log real consumer errors
			w.logger.Printf("Worker %d: Consumer error: %v", workerID, err)
			if !w.sleep(ctx, w.consumerRetryDelay) {
				return
			}
			continue
		}
		if req == nil {
			continue
		}

		if w.handle(ctx, workerID, req) {
			ack(true)
			continue
		}
		ack(false)
		if !w.sleep(ctx, w.consumerRetryDelay) {
			return
		}
	}
}

// handle submits one request and reports whether it is done with.
// Permanent rejections are done with; transient failures are redelivered.
func (w *Worker) handle(ctx context.Context, workerID int, req *models.NotarizeRequest) bool {
	if req.Hash == "" {
		w.logger.Printf("Worker %d: Dropping request %s without a hash", workerID, req.RequestID)
		return true
	}
	meta := req.Meta
	if meta == "" {
		meta = req.FileName
	}

	submitCtx, cancel := context.WithTimeout(ctx, w.submitTimeout)
	defer cancel()
	start := time.Now()
	id, err := w.submitter.NotarizeDocument(submitCtx, req.Hash, req.FileName, meta)
	if err == nil {
		w.logger.Printf("Worker %d: Request %s submitted as transaction %s (%v)", workerID, req.RequestID, id, time.Since(start))
		return true
	}

	if Permanent(err) {
		w.logger.Printf("Worker %d: Request %s rejected: %v", workerID, req.RequestID, err)
		return true
	}
	w.logger.Printf("Worker %d: Request %s failed, will be redelivered: %v", workerID, req.RequestID, err)
	return false
}

// Permanent reports whether resubmitting the same request cannot succeed
func Permanent(err error) bool {
	switch {
	case errors.Is(err, notarization.ErrAlreadyNotarized),
		errors.Is(err, notarization.ErrInFlight),
		errors.Is(err, notarization.ErrInvalidHash),
		errors.Is(err, notarization.ErrNoContract):
		return true
	}
	var txErr *notarization.TxError
	if errors.As(err, &txErr) {
		return !txErr.Retryable()
	}
	return false
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"docnotary/config"
)

// ErrPoolClosed is returned by Submit after Close
var ErrPoolClosed = errors.New("fingerprint pool closed")

// Job is one file to fingerprint
type Job struct {
	ID   string // Correlation id echoed in the Result
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Result is the outcome of one Job
type Result struct {
	ID             string
	Name           string
	Size           int64
	Hash           string // Empty unless Success
	ProcessingTime time.Duration
	Success        bool
	Error          string
}

// Pool hashes jobs on a fixed number of goroutines.
// Results arrive in completion order, not submission order.
type Pool struct {
	cfg     config.FingerprintConfig
	jobs    chan Job
	results chan Result
	done    chan struct{}
	onStart func(id string)
	logger  *log.Logger

	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewPool creates a pool. onStart, if set, is called when a worker picks up a job.
func NewPool(cfg config.FingerprintConfig, onStart func(id string), logger *log.Logger) *Pool {
	if cfg.Workers <= 0 || cfg.QueueSize <= 0 {
		cfg.SetDefaults()
	}
	return &Pool{
		cfg:     cfg,
		jobs:    make(chan Job, cfg.QueueSize),
		results: make(chan Result, cfg.QueueSize),
		done:    make(chan struct{}),
		onStart: onStart,
		logger:  logger,
	}
}

// Start launches the workers. It is safe to call more than once.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Printf("Starting fingerprint pool with %d workers, queue size %d", p.cfg.Workers, p.cfg.QueueSize)
		for i := 0; i < p.cfg.Workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.run(workerID)
			}(i + 1)
		}
	})
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results delivers one Result per processed job; closed after Close
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops the workers and closes Results. Queued jobs not yet picked up are dropped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		close(p.results)
		p.logger.Println("Fingerprint pool stopped.")
	})
}

func (p *Pool) run(workerID int) {
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			if p.onStart != nil {
				p.onStart(job.ID)
			}
			result := Hash(job)
			if !result.Success {
				p.logger.Printf("Worker %d: fingerprint of %s failed: %s", workerID, job.Name, result.Error)
			}
			select {
			case p.results <- result:
			case <-p.done:
				return
			}
		}
	}
}

// Hash fingerprints one job synchronously. Failures are reported in the Result, with timing.
func Hash(job Job) Result {
	start := time.Now()
	result := Result{ID: job.ID, Name: job.Name, Size: job.Size}

	hash, err := hashJob(job)
	result.ProcessingTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Hash = hash
	result.Success = true
	return result
}

func hashJob(job Job) (hash string, err error) {
	if job.Open == nil {
		return "", fmt.Errorf("no content source for %s", job.Name)
	}
	rc, err := job.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", job.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", job.Name, cerr)
		}
	}()
	return Digest(rc)
}

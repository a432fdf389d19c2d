// Package ingestion takes selected files through validation and fingerprinting.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"docnotary/backup"
	"docnotary/config"
	"docnotary/fingerprint"
	"docnotary/validation"
)

// FileStatus is the processing state of a file
type FileStatus string

const (
	FileQueued    FileStatus = "queued"
	FileHashing   FileStatus = "hashing"
	FileCompleted FileStatus = "completed"
	FileFailed    FileStatus = "failed"
)

// ErrFileNotFound is returned for unknown file ids
var ErrFileNotFound = errors.New("file not found")

// ProcessedFile is a validated file and its fingerprinting outcome
type ProcessedFile struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Size           int64             `json:"size"`
	Type           string            `json:"type"`
	LastModified   int64             `json:"last_modified"`
	Status         FileStatus        `json:"status"`
	Hash           string            `json:"hash,omitempty"`
	Error          string            `json:"error,omitempty"`
	ProcessingTime time.Duration     `json:"processing_time,omitempty"`
	Validation     validation.Result `json:"validation"`
	Backup         *backup.Result    `json:"backup,omitempty"`
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithHashObserver is called with every fingerprint result
func WithHashObserver(fn func(fingerprint.Result)) Option {
	return func(p *Pipeline) { p.onHashed = fn }
}

// WithBackup uploads every successfully hashed file to u
func WithBackup(u backup.Uploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// Pipeline validates files, fingerprints them on a worker pool and keeps the
// resulting ProcessedFile records until they are removed
type Pipeline struct {
	policy   validation.Policy
	pool     *fingerprint.Pool
	uploader backup.Uploader
	onHashed func(fingerprint.Result)
	logger   *log.Logger

	mu      sync.Mutex
	files   []ProcessedFile
	sources map[string]File
	changed chan struct{}

	collector sync.WaitGroup
	backups   sync.WaitGroup
}

// NewPipeline creates and starts a pipeline
func NewPipeline(policy validation.Policy, cfg config.FingerprintConfig, logger *log.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		policy:  policy,
		logger:  logger,
		sources: make(map[string]File),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.pool = fingerprint.NewPool(cfg, p.markHashing, logger)
	p.pool.Start()

	p.collector.Add(1)
	go func() {
		defer p.collector.Done()
		for result := range p.pool.Results() {
			p.complete(result)
		}
	}()
	return p
}

// Policy returns the validation policy files are checked against
func (p *Pipeline) Policy() validation.Policy {
	return p.policy
}

// Add validates files as one batch and queues the valid ones for fingerprinting.
// A batch with global errors is rejected as a whole; individually invalid files
// are reported in the BatchResult and skipped. A file already present and not
// failed is returned as is instead of being queued again.
func (p *Pipeline) Add(ctx context.Context, files []File) (validation.BatchResult, []ProcessedFile, error) {
	infos := make([]validation.FileInfo, len(files))
	for i, f := range files {
		infos[i] = Info(f)
	}
	batch := validation.ValidateBatch(infos, p.policy)
	if len(batch.GlobalErrors) > 0 {
		p.logger.Printf("Rejected batch of %d files: %v", len(files), batch.GlobalErrors)
		return batch, nil, nil
	}

	var accepted []ProcessedFile
	var firstErr error
	for i, f := range files {
		if !batch.Results[i].Valid {
			continue
		}
		record, queued := p.enqueue(f, batch.Results[i])
		if !queued {
			accepted = append(accepted, record)
			continue
		}
		job := fingerprint.Job{ID: record.ID, Name: record.Name, Size: record.Size, Open: f.Open}
		if err := p.pool.Submit(ctx, job); err != nil {
			record = p.finish(record.ID, FileQueued, func(pf *ProcessedFile) {
				pf.Status = FileFailed
				pf.Error = fmt.Sprintf("failed to queue for fingerprinting: %v", err)
			})
			if firstErr == nil {
				firstErr = err
			}
		}
		accepted = append(accepted, record)
	}
	return batch, accepted, firstErr
}

// enqueue records f as queued unless a live record with the same id exists
func (p *Pipeline) enqueue(f File, result validation.Result) (ProcessedFile, bool) {
	info := result.FileInfo
	id := validation.FileID(info)

	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.indexLocked(id)
	if idx >= 0 && p.files[idx].Status != FileFailed {
		return p.files[idx], false
	}
	record := ProcessedFile{
		ID:           id,
		Name:         info.Name,
		Size:         info.Size,
		Type:         info.Type,
		LastModified: info.LastModified,
		Status:       FileQueued,
		Validation:   result,
	}
	if idx >= 0 {
		p.files[idx] = record
	} else {
		p.files = append(p.files, record)
	}
	p.sources[id] = f
	p.broadcastLocked()
	return record, true
}

func (p *Pipeline) markHashing(id string) {
	p.finish(id, FileQueued, func(pf *ProcessedFile) { pf.Status = FileHashing })
}

func (p *Pipeline) complete(result fingerprint.Result) {
	if p.onHashed != nil {
		p.onHashed(result)
	}
	record := p.finish(result.ID, FileHashing, func(pf *ProcessedFile) {
		pf.ProcessingTime = result.ProcessingTime
		if result.Success {
			pf.Status = FileCompleted
			pf.Hash = result.Hash
		} else {
			pf.Status = FileFailed
			pf.Error = result.Error
		}
	})
	if record.Status != FileCompleted || record.ID != result.ID {
		p.dropSource(result.ID)
		return
	}
	p.logger.Printf("Fingerprinted %s: %s (%s)", record.Name, record.Hash, result.ProcessingTime)
	p.startBackup(record.ID)
}

// dropSource releases the byte source of a file that no longer needs reading.
// A failed file is requeued with the source passed to Add again.
func (p *Pipeline) dropSource(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx := p.indexLocked(id); idx >= 0 && (p.files[idx].Status == FileQueued || p.files[idx].Status == FileHashing) {
		return
	}
	delete(p.sources, id)
}

// finish replaces the record for id with a modified copy when it is in status from.
// It returns the record as it stands afterwards, or a zero record if id is unknown.
func (p *Pipeline) finish(id string, from FileStatus, modify func(*ProcessedFile)) ProcessedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.indexLocked(id)
	if idx < 0 {
		return ProcessedFile{}
	}
	if p.files[idx].Status != from {
		return p.files[idx]
	}
	next := p.files[idx]
	modify(&next)
	p.files[idx] = next
	p.broadcastLocked()
	return next
}

func (p *Pipeline) startBackup(id string) {
	p.mu.Lock()
	idx := p.indexLocked(id)
	if idx < 0 || p.files[idx].Status != FileCompleted {
		p.mu.Unlock()
		return
	}
	src, ok := p.sources[id]
	delete(p.sources, id)
	p.mu.Unlock()
	if !ok || p.uploader == nil {
		return
	}
	if _, disabled := p.uploader.(backup.Disabled); disabled {
		return
	}

	p.backups.Add(1)
	go func() {
		defer p.backups.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result := p.uploader.Upload(ctx, src, backup.Options{})
		if !result.Success {
			p.logger.Printf("Backup of %s failed: %s", src.Name(), result.Error)
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if idx := p.indexLocked(id); idx >= 0 {
			next := p.files[idx]
			next.Backup = &result
			p.files[idx] = next
			p.broadcastLocked()
		}
	}()
}

// Get returns the record for id
func (p *Pipeline) Get(id string) (ProcessedFile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.indexLocked(id)
	if idx < 0 {
		return ProcessedFile{}, false
	}
	return p.files[idx], true
}

// List returns every record in the order it was first added
func (p *Pipeline) List() []ProcessedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProcessedFile(nil), p.files...)
}

// Remove deletes the record for id. A result still in flight for it is discarded.
func (p *Pipeline) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.indexLocked(id)
	if idx < 0 {
		return false
	}
	p.files = append(p.files[:idx:idx], p.files[idx+1:]...)
	delete(p.sources, id)
	p.broadcastLocked()
	return true
}

// Await blocks until id is completed or failed
func (p *Pipeline) Await(ctx context.Context, id string) (ProcessedFile, error) {
	for {
		p.mu.Lock()
		idx := p.indexLocked(id)
		if idx < 0 {
			p.mu.Unlock()
			return ProcessedFile{}, fmt.Errorf("%w: %s", ErrFileNotFound, id)
		}
		record := p.files[idx]
		changed := p.changed
		p.mu.Unlock()

		if record.Status == FileCompleted || record.Status == FileFailed {
			return record, nil
		}
		select {
		case <-ctx.Done():
			return record, ctx.Err()
		case <-changed:
		}
	}
}

// Close stops the worker pool and waits for running backups
func (p *Pipeline) Close() {
	p.pool.Close()
	p.collector.Wait()
	p.backups.Wait()
}

func (p *Pipeline) indexLocked(id string) int {
	for i := range p.files {
		if p.files[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *Pipeline) broadcastLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// Package backup stores an optional content-addressed copy of original files.
// Backups are best effort and never gate fingerprinting or notarization.
package backup

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"docnotary/config"
)

// File is a re-openable byte source with its metadata
type File interface {
	Name() string
	Size() int64
	Type() string
	LastModified() int64 // Unix milliseconds
	Open() (io.ReadCloser, error)
}

// Options describe the stored object
type Options struct {
	Description string
	Tags        []string
	UploadedBy  string
}

// Result is the outcome of one upload
type Result struct {
	Success    bool          `json:"success"`
	ContentID  string        `json:"content_id,omitempty"`
	URL        string        `json:"url,omitempty"`
	Error      string        `json:"error,omitempty"`
	UploadTime time.Duration `json:"upload_time"`
}

// Uploader stores a file and returns its content id.
// Uploading identical bytes twice yields the same content id.
type Uploader interface {
	Upload(ctx context.Context, f File, opts Options) Result
}

// Disabled is the Uploader used when no backup store is configured
type Disabled struct {
	Reason string
}

// Upload always fails with the reason the store is disabled
func (d Disabled) Upload(ctx context.Context, f File, opts Options) Result {
	return Result{Success: false, Error: d.Reason}
}

// New returns the configured Uploader, or Disabled when backup is off or has no credential
func New(ctx context.Context, cfg config.BackupConfig, logger *log.Logger) (Uploader, error) {
	if !cfg.Enabled {
		return Disabled{Reason: "backup is disabled"}, nil
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		logger.Println("Warning: backup enabled but no credential configured, backups disabled")
		return Disabled{Reason: "backup credential not configured"}, nil
	}
	return NewMinioUploader(ctx, cfg, logger)
}

// UploadMany uploads files in parallel; results are in input order
func UploadMany(ctx context.Context, u Uploader, files []File, opts Options) []Result {
	results := make([]Result, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			results[i] = u.Upload(ctx, f, opts)
		}(i, f)
	}
	wg.Wait()
	return results
}

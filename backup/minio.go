package backup

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"docnotary/config"
	"docnotary/fingerprint"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectStore is the subset of minio.Client used by MinioUploader
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// MinioUploader stores backups in an S3-compatible bucket keyed by the SHA-256 of the content
type MinioUploader struct {
	store  objectStore
	cfg    config.BackupConfig
	logger *log.Logger
}

// NewMinioUploader connects to the endpoint and creates the bucket when missing
func NewMinioUploader(ctx context.Context, cfg config.BackupConfig, logger *log.Logger) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Printf("Created backup bucket %s", cfg.Bucket)
	}

	return newMinioUploader(client, cfg, logger), nil
}

func newMinioUploader(store objectStore, cfg config.BackupConfig, logger *log.Logger) *MinioUploader {
	if cfg.Gateway == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.Gateway = fmt.Sprintf("%s://%s/%s/", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &MinioUploader{store: store, cfg: cfg, logger: logger}
}

// Upload stores f under its content hash. Content already present is not re-sent.
func (u *MinioUploader) Upload(ctx context.Context, f File, opts Options) Result {
	start := time.Now()
	contentID, err := u.upload(ctx, f, opts)
	elapsed := time.Since(start)
	if err != nil {
		u.logger.Printf("Backup of %s failed: %v", f.Name(), err)
		return Result{Success: false, Error: err.Error(), UploadTime: elapsed}
	}
	return Result{
		Success:    true,
		ContentID:  contentID,
		URL:        u.URL(contentID),
		UploadTime: elapsed,
	}
}

// URL returns the retrieval URL of a content id
func (u *MinioUploader) URL(contentID string) string {
	return u.cfg.Gateway + contentID
}

func (u *MinioUploader) upload(ctx context.Context, f File, opts Options) (string, error) {
	contentID, err := contentIDOf(f)
	if err != nil {
		return "", err
	}

	if _, err := u.store.StatObject(ctx, u.cfg.Bucket, contentID, minio.StatObjectOptions{}); err == nil {
		return contentID, nil
	} else if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("failed to stat object: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	contentType := f.Type()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = u.store.PutObject(ctx, u.cfg.Bucket, contentID, rc, f.Size(), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: Metadata(f, opts, time.Now()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return contentID, nil
}

// contentIDOf is the hex SHA-256 of the file, without the 0x prefix
func contentIDOf(f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name(), err)
	}
	defer rc.Close()
	hash, err := fingerprint.Digest(rc)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(hash, "0x"), nil
}

// Metadata builds the user metadata stored with a backup object
func Metadata(f File, opts Options, now time.Time) map[string]string {
	description := opts.Description
	if description == "" {
		description = "Legal document: " + f.Name()
	}
	fileType := f.Type()
	if fileType == "" {
		fileType = "unknown"
	}
	meta := map[string]string{
		"name":          f.Name(),
		"description":   description,
		"file-size":     fmt.Sprintf("%.2f MB", float64(f.Size())/1024/1024),
		"file-type":     fileType,
		"upload-date":   now.UTC().Format(time.RFC3339),
		"last-modified": strconv.FormatInt(f.LastModified(), 10),
	}
	if opts.UploadedBy != "" {
		meta["uploaded-by"] = opts.UploadedBy
	}
	if len(opts.Tags) > 0 {
		meta["tags"] = strings.Join(opts.Tags, ",")
	}
	return meta
}

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"docnotary/config"
	"docnotary/ingestion"
	"docnotary/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unreadableFile struct {
	*ingestion.MemoryFile
}

func (f unreadableFile) Open() (io.ReadCloser, error) {
	return nil, errors.New("permission denied")
}

func newPipeline(t *testing.T) *ingestion.Pipeline {
	t.Helper()
	p := ingestion.NewPipeline(validation.DefaultPolicy(), config.FingerprintConfig{Workers: 2, QueueSize: 8}, log.New(io.Discard, "", 0))
	t.Cleanup(p.Close)
	return p
}

func TestHashFiles_CountsRejectedAndUnreadableFiles(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	good := ingestion.NewMemoryFile("good.pdf", "application/pdf", []byte("%PDF-1.7"), 1)
	bad := ingestion.NewMemoryFile("bad.exe", "application/octet-stream", []byte("MZ"), 1)
	locked := unreadableFile{ingestion.NewMemoryFile("locked.txt", "text/plain", []byte("x"), 1)}
	var out bytes.Buffer

	// Act
	hashed, failed, err := hashFiles(ctx, &out, newPipeline(t), []ingestion.File{good, bad, locked})

	// Assert
	require.NoError(t, err)
	require.Len(t, hashed, 1)
	assert.Equal(t, "good.pdf", hashed[0].Name)
	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "bad.exe:")
	assert.Contains(t, out.String(), "locked.txt: fingerprint failed: permission denied")
	assert.EqualError(t, notProcessed(failed, 3), "2 of 3 documents were not notarized")
}

func TestHashFiles_GlobalErrorRejectsEveryFile(t *testing.T) {
	a := ingestion.NewMemoryFile("a.pdf", "application/pdf", []byte("1"), 1)
	dup := ingestion.NewMemoryFile("a.pdf", "application/pdf", []byte("2"), 2)
	var out bytes.Buffer

	hashed, failed, err := hashFiles(context.Background(), &out, newPipeline(t), []ingestion.File{a, dup})

	require.NoError(t, err)
	assert.Empty(t, hashed)
	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "rejected: Duplicate file names detected: a.pdf")
}

func TestNotProcessed(t *testing.T) {
	assert.NoError(t, notProcessed(0, 4))
	assert.Error(t, notProcessed(1, 4))
}

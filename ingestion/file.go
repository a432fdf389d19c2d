package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"docnotary/validation"
)

// File is a re-openable byte source with the metadata validation needs
type File interface {
	Name() string
	Size() int64
	Type() string        // Declared MIME type, empty when undetermined
	LastModified() int64 // Unix milliseconds
	Open() (io.ReadCloser, error)
}

// LocalFile is a file on disk
type LocalFile struct {
	path     string
	name     string
	mimeType string
	size     int64
	modTime  int64
}

// NewLocalFile stats path and infers its MIME type from the extension
func NewLocalFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	return &LocalFile{
		path:     path,
		name:     name,
		mimeType: TypeByName(name),
		size:     info.Size(),
		modTime:  info.ModTime().UnixMilli(),
	}, nil
}

func (f *LocalFile) Name() string                 { return f.name }
func (f *LocalFile) Size() int64                  { return f.size }
func (f *LocalFile) Type() string                 { return f.mimeType }
func (f *LocalFile) LastModified() int64          { return f.modTime }
func (f *LocalFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// Path returns the file's location on disk
func (f *LocalFile) Path() string { return f.path }

// MemoryFile is an in-memory upload
type MemoryFile struct {
	name     string
	mimeType string
	data     []byte
	modTime  int64
}

// NewMemoryFile wraps data; an empty mimeType is inferred from the name
func NewMemoryFile(name, mimeType string, data []byte, lastModified int64) *MemoryFile {
	if mimeType == "" {
		mimeType = TypeByName(name)
	}
	return &MemoryFile{name: name, mimeType: mimeType, data: data, modTime: lastModified}
}

func (f *MemoryFile) Name() string        { return f.name }
func (f *MemoryFile) Size() int64         { return int64(len(f.data)) }
func (f *MemoryFile) Type() string        { return f.mimeType }
func (f *MemoryFile) LastModified() int64 { return f.modTime }
func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// TypeByName returns the MIME type registered for the name's extension, without parameters
func TypeByName(name string) string {
	t := mime.TypeByExtension(validation.Extension(name))
	if t == "" {
		return ""
	}
	media, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return media
}

// Info returns the metadata validation is evaluated against
func Info(f File) validation.FileInfo {
	return validation.FileInfo{
		Name:         f.Name(),
		Size:         f.Size(),
		Type:         f.Type(),
		LastModified: f.LastModified(),
	}
}

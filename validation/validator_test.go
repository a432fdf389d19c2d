package validation

import (
	"testing"
	"time"

	"docnotary/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdf(name string, size int64) FileInfo {
	return FileInfo{Name: name, Size: size, Type: "application/pdf", LastModified: 1700000000000}
}

func TestValidate_SizeBoundary(t *testing.T) {
	p := DefaultPolicy()

	atLimit := Validate(pdf("a.pdf", p.MaxSizeBytes), p)
	assert.True(t, atLimit.Valid)
	assert.Empty(t, atLimit.Errors)

	overLimit := Validate(pdf("a.pdf", p.MaxSizeBytes+1), p)
	assert.False(t, overLimit.Valid)
	require.Len(t, overLimit.Errors, 1)
	assert.Contains(t, overLimit.Errors[0], "exceeds maximum allowed size")
}

func TestValidate_OversizedMessage(t *testing.T) {
	result := Validate(pdf("big.pdf", 30_000_000), DefaultPolicy())

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"File size (28.61 MB) exceeds maximum allowed size (25 MB)"}, result.Errors)
	assert.Contains(t, result.Warnings, "Large file may take longer to process")
}

func TestValidate_EmptyFile(t *testing.T) {
	p := DefaultPolicy()
	p.MaxSizeBytes = 1 << 40

	result := Validate(pdf("empty.pdf", 0), p)

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"File is empty"}, result.Errors)
}

func TestValidate_NegativeSize(t *testing.T) {
	result := Validate(pdf("broken.pdf", -1), DefaultPolicy())

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"File size -1 is invalid"}, result.Errors)
}

func TestValidate_Type(t *testing.T) {
	p := DefaultPolicy()

	t.Run("declared and not allowed is an error", func(t *testing.T) {
		result := Validate(FileInfo{Name: "a.pdf", Size: 10, Type: "application/zip"}, p)
		assert.False(t, result.Valid)
		assert.Equal(t, []string{`File type "application/zip" is not allowed`}, result.Errors)
	})

	t.Run("undetermined is a warning", func(t *testing.T) {
		result := Validate(FileInfo{Name: "a.pdf", Size: 10}, p)
		assert.True(t, result.Valid)
		assert.Equal(t, []string{"File type could not be determined"}, result.Warnings)
	})
}

func TestValidate_Extension(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, Validate(pdf("REPORT.PDF", 10), p).Valid)

	noExt := Validate(pdf("README", 10), p)
	assert.Equal(t, []string{"File has no extension"}, noExt.Errors)

	badExt := Validate(pdf("archive.Zip", 10), p)
	assert.Equal(t, []string{`File extension ".Zip" is not allowed`}, badExt.Errors)

	p.RequireValidExtension = false
	assert.True(t, Validate(pdf("README", 10), p).Valid)
}

func TestValidate_SuspiciousNameIsWarning(t *testing.T) {
	p := DefaultPolicy()
	p.RequireValidExtension = false

	for _, name := range []string{"setup.exe", "../etc/passwd", `a\b.pdf`, "what?.pdf", "CON", "lpt1"} {
		t.Run(name, func(t *testing.T) {
			result := Validate(pdf(name, 10), p)
			assert.True(t, result.Valid)
			assert.Contains(t, result.Warnings, "File name contains suspicious characters")
		})
	}

	assert.Empty(t, Validate(pdf("contract-v2.pdf", 10), p).Warnings)
}

func TestValidateBatch(t *testing.T) {
	p := DefaultPolicy()

	t.Run("duplicates are one global error", func(t *testing.T) {
		result := ValidateBatch([]FileInfo{pdf("a.pdf", 10), pdf("b.pdf", 10), pdf("a.pdf", 10)}, p)

		assert.False(t, result.OverallValid)
		assert.Equal(t, []string{"Duplicate file names detected: a.pdf"}, result.GlobalErrors)
		for _, r := range result.Results {
			assert.True(t, r.Valid)
		}
	})

	t.Run("duplicate list is deduplicated", func(t *testing.T) {
		result := ValidateBatch([]FileInfo{
			pdf("b.pdf", 10), pdf("a.pdf", 10), pdf("a.pdf", 10), pdf("b.pdf", 10), pdf("a.pdf", 10),
		}, p)

		assert.Equal(t, []string{"Duplicate file names detected: a.pdf, b.pdf"}, result.GlobalErrors)
	})

	t.Run("too many files", func(t *testing.T) {
		p := p
		p.MaxFiles = 1

		result := ValidateBatch([]FileInfo{pdf("a.pdf", 10), pdf("b.pdf", 10)}, p)

		assert.False(t, result.OverallValid)
		assert.Equal(t, []string{"Too many files selected. Maximum allowed: 1"}, result.GlobalErrors)
	})

	t.Run("one invalid file invalidates the batch", func(t *testing.T) {
		result := ValidateBatch([]FileInfo{pdf("a.pdf", 10), pdf("b.pdf", 0)}, p)

		assert.False(t, result.OverallValid)
		assert.Empty(t, result.GlobalErrors)
		assert.True(t, result.Results[0].Valid)
		assert.False(t, result.Results[1].Valid)
	})

	t.Run("valid batch", func(t *testing.T) {
		result := ValidateBatch([]FileInfo{pdf("a.pdf", 2*1024*1024)}, p)
		assert.True(t, result.OverallValid)
	})
}

func TestPolicyFromConfig(t *testing.T) {
	off := false
	p := PolicyFromConfig(config.ValidationConfig{
		MaxSizeBytes:          1024,
		AllowedExtensions:     []string{"PDF", ".txt"},
		RequireValidExtension: &off,
	})

	assert.Equal(t, int64(1024), p.MaxSizeBytes)
	assert.Equal(t, []string{".pdf", ".txt"}, p.AllowedExtensions)
	assert.False(t, p.RequireValidExtension)
	assert.Equal(t, 10, p.MaxFiles)
	assert.Len(t, p.AllowedTypes, 7)
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		0:                "0 Bytes",
		512:              "512 Bytes",
		1024:             "1 KB",
		1536:             "1.5 KB",
		25 * 1024 * 1024: "25 MB",
		30_000_000:       "28.61 MB",
		3 << 30:          "3 GB",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatSize(in), "FormatSize(%d)", in)
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, ".pdf", Extension("a.b.pdf"))
	assert.Equal(t, "", Extension(".env"))
	assert.Equal(t, "", Extension("noext"))

	assert.True(t, SupportedForNotarization("application/pdf"))
	assert.False(t, SupportedForNotarization("image/png"))

	assert.Equal(t, 100*time.Millisecond, EstimateProcessingTime(1024))
	assert.Equal(t, 500*time.Millisecond, EstimateProcessingTime(5*1024*1024))

	id := FileID(FileInfo{Name: "My File.pdf", Size: 42, LastModified: 1700000000000})
	assert.Equal(t, "My-File-pdf-42-1700000000000", id)
	assert.Equal(t, id, FileID(FileInfo{Name: "My File.pdf", Size: 42, LastModified: 1700000000000}))
}

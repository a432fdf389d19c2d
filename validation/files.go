package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count in 1024-based units with at most two
// decimals and no trailing zeros, e.g. "28.61 MB" or "25 MB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[unit]
}

// Extension returns the name's extension including the dot.
// Dot-files such as ".env" have no extension.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return ""
	}
	return name[i:]
}

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.(exe|bat|cmd|com|pif|scr|vbs|js|jar|app)$`),
	regexp.MustCompile(`[<>:"|?*]`),
	regexp.MustCompile(`\.\.|/|\\`),
	regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[1-9]|lpt[1-9])$`),
}

// IsSuspiciousName reports executable extensions, path traversal,
// reserved device names and characters illegal in file names
func IsSuspiciousName(name string) bool {
	for _, p := range suspiciousPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

var notarizationTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

// SupportedForNotarization reports whether the MIME type is a document type
func SupportedForNotarization(mimeType string) bool {
	return contains(notarizationTypes, mimeType)
}

// EstimateProcessingTime is a rough hashing estimate: 100ms per MB, at least 100ms
func EstimateProcessingTime(size int64) time.Duration {
	ms := float64(size) / (1024 * 1024) * 100
	if ms < 100 {
		ms = 100
	}
	return time.Duration(ms * float64(time.Millisecond))
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileID derives a stable id from name, size and modification time,
// so the same file selected twice maps to the same id
func FileID(info FileInfo) string {
	return nonAlnum.ReplaceAllString(fmt.Sprintf("%s-%d-%d", info.Name, info.Size, info.LastModified), "-")
}

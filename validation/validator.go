// Package validation holds the pre-flight file policy that gates which files
// may enter the fingerprinting pipeline.
package validation

import (
	"fmt"
	"strings"

	"docnotary/config"
)

// LargeFileBytes is the size above which a file gets a processing-time warning
const LargeFileBytes = 10 * 1024 * 1024

// FileInfo is the metadata the policy is evaluated against
type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`          // Declared MIME type, empty when undetermined
	LastModified int64  `json:"last_modified"` // Unix milliseconds
}

// Policy is the file acceptance policy
type Policy struct {
	MaxSizeBytes          int64
	AllowedTypes          []string
	AllowedExtensions     []string // Lower-case, with leading dot
	MaxFiles              int
	RequireValidExtension bool
}

// Result is the outcome of validating one file
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	FileInfo FileInfo `json:"file_info"`
}

// BatchResult is the outcome of validating a selection of files
type BatchResult struct {
	OverallValid bool     `json:"overall_valid"`
	Results      []Result `json:"results"`
	GlobalErrors []string `json:"global_errors"`
}

// DefaultPolicy is the policy for legal documents
func DefaultPolicy() Policy {
	return Policy{
		MaxSizeBytes: 25 * 1024 * 1024,
		AllowedTypes: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"text/plain",
			"image/jpeg",
			"image/png",
			"image/webp",
		},
		AllowedExtensions:     []string{".pdf", ".doc", ".docx", ".txt", ".jpg", ".jpeg", ".png", ".webp"},
		MaxFiles:              10,
		RequireValidExtension: true,
	}
}

// PolicyFromConfig overlays the configured fields on DefaultPolicy
func PolicyFromConfig(cfg config.ValidationConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxSizeBytes > 0 {
		p.MaxSizeBytes = cfg.MaxSizeBytes
	}
	if len(cfg.AllowedTypes) > 0 {
		p.AllowedTypes = cfg.AllowedTypes
	}
	if len(cfg.AllowedExtensions) > 0 {
		p.AllowedExtensions = make([]string, 0, len(cfg.AllowedExtensions))
		for _, ext := range cfg.AllowedExtensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			p.AllowedExtensions = append(p.AllowedExtensions, ext)
		}
	}
	if cfg.MaxFiles > 0 {
		p.MaxFiles = cfg.MaxFiles
	}
	if cfg.RequireValidExtension != nil {
		p.RequireValidExtension = *cfg.RequireValidExtension
	}
	return p
}

// Validate applies every rule to one file. Rules do not short-circuit.
func Validate(info FileInfo, p Policy) Result {
	errs := []string{}
	warnings := []string{}

	if info.Size > p.MaxSizeBytes {
		errs = append(errs, fmt.Sprintf("File size (%s) exceeds maximum allowed size (%s)",
			FormatSize(info.Size), FormatSize(p.MaxSizeBytes)))
	}

	if info.Size == 0 {
		errs = append(errs, "File is empty")
	} else if info.Size < 0 {
		errs = append(errs, fmt.Sprintf("File size %d is invalid", info.Size))
	}

	if len(p.AllowedTypes) > 0 && !contains(p.AllowedTypes, info.Type) {
		if info.Type != "" {
			errs = append(errs, fmt.Sprintf("File type %q is not allowed", info.Type))
		} else {
			warnings = append(warnings, "File type could not be determined")
		}
	}

	if p.RequireValidExtension {
		ext := Extension(info.Name)
		if ext == "" {
			errs = append(errs, "File has no extension")
		} else if !contains(p.AllowedExtensions, strings.ToLower(ext)) {
			errs = append(errs, fmt.Sprintf("File extension %q is not allowed", ext))
		}
	}

	if IsSuspiciousName(info.Name) {
		warnings = append(warnings, "File name contains suspicious characters")
	}

	if info.Size > LargeFileBytes {
		warnings = append(warnings, "Large file may take longer to process")
	}

	return Result{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
		FileInfo: info,
	}
}

// ValidateBatch validates each file and adds the batch-level checks
func ValidateBatch(infos []FileInfo, p Policy) BatchResult {
	global := []string{}

	if len(infos) > p.MaxFiles {
		global = append(global, fmt.Sprintf("Too many files selected. Maximum allowed: %d", p.MaxFiles))
	}

	if dups := duplicateNames(infos); len(dups) > 0 {
		global = append(global, fmt.Sprintf("Duplicate file names detected: %s", strings.Join(dups, ", ")))
	}

	results := make([]Result, 0, len(infos))
	overall := len(global) == 0
	for _, info := range infos {
		r := Validate(info, p)
		overall = overall && r.Valid
		results = append(results, r)
	}

	return BatchResult{
		OverallValid: overall,
		Results:      results,
		GlobalErrors: global,
	}
}

// duplicateNames lists each repeated name once, in the order the repeat is seen
func duplicateNames(infos []FileInfo) []string {
	seen := make(map[string]bool, len(infos))
	reported := make(map[string]bool)
	var dups []string
	for _, info := range infos {
		if seen[info.Name] {
			if !reported[info.Name] {
				reported[info.Name] = true
				dups = append(dups, info.Name)
			}
			continue
		}
		seen[info.Name] = true
	}
	return dups
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package classifier

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Validator checks an upload before any inference is attempted.
type Validator struct {
	maxSize    int64
	extensions []string
	allowed    map[string]struct{}
}

// NewValidator expects extensions lower-cased and without the leading dot.
func NewValidator(maxSize int64, extensions []string) *Validator {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[ext] = struct{}{}
	}
	return &Validator{
		maxSize:    maxSize,
		extensions: extensions,
		allowed:    allowed,
	}
}

// Validate reports whether data/filename is an acceptable upload and a
// message explaining the outcome.
func (v *Validator) Validate(data []byte, filename string) (bool, string) {
	if int64(len(data)) > v.maxSize {
		return false, fmt.Sprintf("File too large. Maximum size is %s MB", formatMB(v.maxSize))
	}

	if !v.allowedFile(filename) {
		return false, fmt.Sprintf("File format not supported. Allowed formats: %s", strings.Join(v.extensions, ", "))
	}

	return true, "Image is valid"
}

func (v *Validator) allowedFile(filename string) bool {
	ext := filepath.Ext(filename)
	if ext == "" || ext == "." {
		return false
	}
	_, ok := v.allowed[strings.ToLower(ext[1:])]
	return ok
}

// formatMB renders a byte count in MiB with no trailing zeros.
func formatMB(n int64) string {
	return strconv.FormatFloat(float64(n)/(1024*1024), 'f', -1, 64)
}

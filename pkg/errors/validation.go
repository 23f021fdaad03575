package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// MaxNodeIDLength bounds node identifiers accepted at the ingestion boundary.
const MaxNodeIDLength = 256

// ValidateNodeID validates a workflow node identifier.
//
// The rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - Maximum length of MaxNodeIDLength bytes
//
// Any other character, including separators such as "->" or ":", is allowed.
// Edge identity is typed, so identifiers never need escaping.
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeInvalidInput, "node id cannot be empty")
	}

	if len(id) > MaxNodeIDLength {
		return New(ErrCodeInvalidInput, "node id too long (max %d characters)", MaxNodeIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node id %q contains control characters", id)
		}
	}

	return nil
}

// ValidateInputFilename checks that a workflow file has a supported extension
// (.json or .toml) and returns the normalized format name.
func ValidateInputFilename(filename string) (string, error) {
	if filename == "" {
		return "", New(ErrCodeInvalidFormat, "input filename cannot be empty")
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return "json", nil
	case ".toml":
		return "toml", nil
	default:
		return "", New(ErrCodeInvalidFormat, "unsupported input extension %q (must be .json or .toml)", ext)
	}
}

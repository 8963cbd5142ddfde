package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxLabelLength bounds node and edge labels accepted from upstream parsers.
const maxLabelLength = 512

// idRegex matches identifiers emitted by the DSL parser and the IR builder.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:\-]*$`)

// ValidateID validates a node, edge or group identifier.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - Maximum length of 256 characters
//   - Must start with an alphanumeric character
//   - Only alphanumerics, '_', '.', ':' and '-' afterwards
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "id cannot be empty")
	}
	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "id too long (max 256 characters)")
	}
	if !idRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid id: %q", id)
	}
	return nil
}

// ValidateLabel validates a free-text display label.
// Empty labels are allowed; control characters other than whitespace are not.
func ValidateLabel(label string) error {
	if len(label) > maxLabelLength {
		return New(ErrCodeInvalidInput, "label too long (max %d characters)", maxLabelLength)
	}
	for _, r := range label {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "label contains invalid control characters")
		}
	}
	return nil
}

// ValidatePath validates a local file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// ValidateDSN validates a connection string for one of the supported
// database schemes (postgres, postgresql, mongodb, mongodb+srv, redis, rediss).
func ValidateDSN(dsn string, schemes ...string) error {
	if dsn == "" {
		return New(ErrCodeInvalidConfig, "connection string cannot be empty")
	}
	for _, s := range schemes {
		if strings.HasPrefix(dsn, s+"://") {
			return nil
		}
	}
	return New(ErrCodeInvalidConfig, "connection string must use one of %v", schemes)
}

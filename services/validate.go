package services

import (
	"errors"
	"strings"
)

// Validation errors returned by ValidateFolder. Handlers map these to
// HTTP statuses (400, 403, 403).
var (
	ErrEmptyFolder = errors.New("folder parameter is required")
	ErrTraversal   = errors.New("path traversal not allowed")
	ErrNotAllowed  = errors.New("folder is not in the allowed list")
)

// SanitizeFolder rejects traversal attempts and normalizes separators.
// It returns the cleaned web-relative path (no leading or trailing slash).
func SanitizeFolder(folder string) (string, error) {
	if strings.TrimSpace(folder) == "" {
		return "", ErrEmptyFolder
	}
	if strings.Contains(folder, "..") ||
		strings.Contains(folder, "//") ||
		strings.Contains(folder, "\\") ||
		strings.HasPrefix(folder, "/") {
		return "", ErrTraversal
	}
	return strings.TrimSuffix(folder, "/"), nil
}

// ValidateFolder sanitizes the requested folder and checks it against the
// whitelist. A folder is allowed when it equals an entry or is a sub-path
// of one; a prefix that stops mid-segment ("assets/doc" against
// "assets/documents") is rejected.
func ValidateFolder(folder string, allowed []string) (string, error) {
	normalized, err := SanitizeFolder(folder)
	if err != nil {
		return "", err
	}
	for _, entry := range allowed {
		entry = strings.TrimSuffix(entry, "/")
		if normalized == entry || strings.HasPrefix(normalized, entry+"/") {
			return normalized, nil
		}
	}
	return "", ErrNotAllowed
}

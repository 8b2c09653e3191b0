package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewKey generates a unique, time-ordered key: {prefix}/{uuidv7}{ext}.
// The extension follows contentType and falls back to ".bin".
// An empty prefix yields a top-level key.
func NewKey(prefix, contentType string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("storage: generate key: %w", err)
	}

	ext := ExtFromContentType(contentType)
	if ext == "" {
		ext = ".bin"
	}
	name := id.String() + ext

	key := name
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + name
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

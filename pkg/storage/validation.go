package storage

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxKeyLength is the longest key accepted by ValidateKey, counted in characters.
const MaxKeyLength = 1024

// ValidationError represents a key or payload validation failure.
// It unwraps to one of ErrInvalidKey, ErrPayloadTooLarge or ErrUnsupportedType.
type ValidationError struct {
	Details map[string]any // Error-specific data
	err     error          // Sentinel
	Code    string         // Error code (e.g., "payload_too_large")
	Message string         // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is checks.
func (e *ValidationError) Unwrap() error {
	return e.err
}

func invalidKey(key, reason string) error {
	return &ValidationError{
		err:     ErrInvalidKey,
		Code:    CodeInvalidKey,
		Message: "invalid key: " + reason,
		Details: map[string]any{
			"key":    key,
			"reason": reason,
		},
	}
}

// ValidateKey checks key syntax and rejects path traversal attempts.
// Keys must be in canonical form: no "." segments and no trailing slash,
// so every strategy stores a key under exactly the name it was given.
func ValidateKey(key string) error {
	if key == "" {
		return invalidKey(key, "key is empty")
	}
	if err := validateKeySyntax(key); err != nil {
		return err
	}
	if strings.HasSuffix(key, "/") {
		return invalidKey(key, "key ends with \"/\"")
	}
	return nil
}

// ValidatePrefix checks a list prefix. An empty prefix lists everything;
// a trailing slash is allowed.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return validateKeySyntax(prefix)
}

func validateKeySyntax(key string) error {
	switch {
	case utf8.RuneCountInString(key) > MaxKeyLength:
		return invalidKey(key, fmt.Sprintf("key exceeds %d characters", MaxKeyLength))
	case strings.Contains(key, ".."):
		return invalidKey(key, "key contains \"..\"")
	case strings.Contains(key, "//"):
		return invalidKey(key, "key contains \"//\"")
	case strings.Contains(key, `\`):
		return invalidKey(key, "key contains a backslash")
	case strings.HasPrefix(key, "/"):
		return invalidKey(key, "key starts with \"/\"")
	case slices.Contains(strings.Split(key, "/"), "."):
		return invalidKey(key, "key contains a \".\" segment")
	}
	return nil
}

// ValidateSize rejects payloads larger than maxBytes. A non-positive limit disables the check.
func ValidateSize(size, maxBytes int64) error {
	if maxBytes <= 0 || size <= maxBytes {
		return nil
	}
	return &ValidationError{
		err:     ErrPayloadTooLarge,
		Code:    CodePayloadTooLarge,
		Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", size, maxBytes),
		Details: map[string]any{
			"limit": maxBytes,
			"size":  size,
		},
	}
}

// ValidateType rejects content types not matched by allowed.
// Supports "*", exact matches and wildcards like "image/*". An empty list allows everything.
func ValidateType(contentType string, allowed []string) error {
	if len(allowed) == 0 || matchesMIME(contentType, allowed) {
		return nil
	}
	return &ValidationError{
		err:     ErrUnsupportedType,
		Code:    CodeUnsupportedType,
		Message: fmt.Sprintf("file type %q is not allowed", contentType),
		Details: map[string]any{
			"type":    contentType,
			"allowed": allowed,
		},
	}
}

// ValidateTTL checks a signed URL lifetime against the supported bounds.
func ValidateTTL(seconds int64) error {
	if seconds < MinSignedURLTTL || seconds > MaxSignedURLTTL {
		return fmt.Errorf("%w: signed URL TTL %ds outside %d..%d", ErrInvalidConfig, seconds, MinSignedURLTTL, MaxSignedURLTTL)
	}
	return nil
}

// ValidateBucketName checks S3 bucket naming rules.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("%w: bucket name %q must be 3-63 characters", ErrInvalidConfig, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '.' && c != '-' {
			return fmt.Errorf("%w: bucket name %q contains invalid character %q", ErrInvalidConfig, name, c)
		}
	}
	if !isAlnum(name[0]) || !isAlnum(name[len(name)-1]) {
		return fmt.Errorf("%w: bucket name %q must start and end with a letter or digit", ErrInvalidConfig, name)
	}
	for _, bad := range []string{"..", ".-", "-.", "--"} {
		if strings.Contains(name, bad) {
			return fmt.Errorf("%w: bucket name %q contains %q", ErrInvalidConfig, name, bad)
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors for storage operations.
var (
	// Configuration errors.
	ErrInvalidConfig = errors.New("storage: invalid configuration")

	// Validation errors. Raised before any backend call.
	ErrInvalidKey      = errors.New("storage: invalid key")
	ErrPayloadTooLarge = errors.New("storage: payload exceeds size limit")
	ErrUnsupportedType = errors.New("storage: content type not allowed")

	// Backend errors.
	ErrNotFound              = errors.New("storage: file not found")
	ErrBackendUnavailable    = errors.New("storage: backend unavailable")
	ErrCapabilityUnsupported = errors.New("storage: operation not supported by strategy")
	ErrMultipartAborted      = errors.New("storage: multipart upload aborted")
	ErrCancelled             = errors.New("storage: operation cancelled")
)

// Error codes returned by ErrorCode.
const (
	CodeOK                    = "ok"
	CodeInvalidConfig         = "invalid_config"
	CodeInvalidKey            = "invalid_key"
	CodePayloadTooLarge       = "payload_too_large"
	CodeUnsupportedType       = "unsupported_type"
	CodeNotFound              = "not_found"
	CodeBackendUnavailable    = "backend_unavailable"
	CodeCapabilityUnsupported = "capability_unsupported"
	CodeMultipartAborted      = "multipart_aborted"
	CodeCancelled             = "cancelled"
	CodeUnknown               = "unknown"
)

// ErrorCode maps err to a short, stable code suitable for metric labels and logs.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrMultipartAborted):
		// Checked first: an aborted upload also unwraps to its cause.
		return CodeMultipartAborted
	case errors.Is(err, ErrInvalidKey):
		return CodeInvalidKey
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrUnsupportedType):
		return CodeUnsupportedType
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCapabilityUnsupported):
		return CodeCapabilityUnsupported
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	case errors.Is(err, ErrBackendUnavailable):
		return CodeBackendUnavailable
	case errors.Is(err, ErrInvalidConfig):
		return CodeInvalidConfig
	default:
		return CodeUnknown
	}
}

// OpError records the facade operation and key that failed.
type OpError struct {
	Err error
	Op  string
	Key string
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed for key %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error { return e.Err }

// MultipartError reports a chunked upload that was aborted.
// AbortErr is set when the abort call itself failed; it is never dropped.
type MultipartError struct {
	Err      error
	AbortErr error
	Key      string
	UploadID string
}

// Error implements the error interface.
func (e *MultipartError) Error() string {
	msg := fmt.Sprintf("multipart upload %s for %q aborted: %v", e.UploadID, e.Key, e.Err)
	if e.AbortErr != nil {
		msg += fmt.Sprintf(" (abort failed: %v)", e.AbortErr)
	}
	return msg
}

// Unwrap exposes ErrMultipartAborted, the triggering error and the abort failure.
func (e *MultipartError) Unwrap() []error {
	errs := []error{ErrMultipartAborted, e.Err}
	if e.AbortErr != nil {
		errs = append(errs, e.AbortErr)
	}
	return errs
}

// wrapS3Error maps S3 and transport errors to sentinel errors.
// Uses %v (not %w) for the original error so SDK types never leak to callers;
// use errors.Is with the sentinels instead of errors.As with AWS types.
func wrapS3Error(err error, fallback error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"NoSuchBucket", "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	return fmt.Errorf("%w: %v", fallback, err)
}

// wrapFSError maps filesystem errors to sentinel errors.
func wrapFSError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

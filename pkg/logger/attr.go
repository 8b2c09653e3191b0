package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers return an empty Attr for zero values so callers can pass
// them unconditionally; slog drops empty attributes.

// Error creates an "error" attribute. Returns an empty Attr for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Operation names the storage operation being performed.
func Operation(op string) slog.Attr {
	return slog.String("op", op)
}

// Key is the object key. Returns an empty Attr for "".
func Key(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("key", key)
}

// Strategy is the active backend name.
func Strategy(name string) slog.Attr {
	return slog.String("strategy", name)
}

// Size is a payload size in bytes.
func Size(n int64) slog.Attr {
	return slog.Int64("size", n)
}

// UploadID identifies a multipart upload. Returns an empty Attr for "".
func UploadID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("upload_id", id)
}

// Duration is the elapsed time of an operation.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

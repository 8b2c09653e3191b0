package logger

import "log/slog"

// NewNope returns a logger that discards everything. It is the storage facade's default.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

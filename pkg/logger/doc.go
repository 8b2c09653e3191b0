// Package logger provides structured logging with context extraction and Sentry integration.
//
// It wraps log/slog with a decorator that injects context-scoped attributes
// (such as a request id) into every record, an optional Sentry destination and
// attribute helpers for storage operations.
//
// # Basic Usage
//
//	log := logger.New(logger.Config{Level: "debug"}, logger.RequestIDExtractor)
//
//	ctx := logger.WithRequestID(context.Background(), "abc-123")
//	log.InfoContext(ctx, "object stored",
//		logger.Operation("put"),
//		logger.Key("avatars/1.png"),
//		logger.Size(2048),
//	)
//	// {"level":"INFO","msg":"object stored","op":"put","key":"avatars/1.png","size":2048,"request_id":"abc-123"}
//
// # Sentry Integration
//
//	log := logger.NewWithSentry(logger.Config{}, logger.SentryConfig{
//		DSN:         os.Getenv("SENTRY_DSN"),
//		Environment: "production",
//		MinLevel:    slog.LevelWarn,
//	})
//
// Errors become Sentry issues; warnings are stored as logs. With an empty DSN
// the logger falls back to the base handler only, so the same code path works
// in development.
//
// Use NewNope where logging is optional; it discards everything.
package logger

package logger

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// MinLevel selects what reaches Sentry: slog.LevelError sends errors only, anything lower sends warnings too.
	MinLevel slog.Level
}

// NewWithSentry creates a logger that writes to the base handler and to Sentry.
// Without a DSN, or when the SDK fails to initialize, only the base handler is used.
func NewWithSentry(base Config, cfg SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	baseHandler := newBaseHandler(base)

	if cfg.DSN == "" {
		return slog.New(NewLogHandlerDecorator(baseHandler, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(baseHandler).Error("failed to initialize Sentry", Error(err))
		return slog.New(NewLogHandlerDecorator(baseHandler, extractors...))
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	// Failed uploads and unavailable backends become Sentry issues; warnings are kept as breadcrumbs.
	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	return slog.New(NewLogHandlerDecorator(newMultiHandler(baseHandler, sentryHandler), extractors...))
}

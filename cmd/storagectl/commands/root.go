// Package commands implements the storagectl command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voilajsx/appkit-sub008/pkg/logger"
	"github.com/voilajsx/appkit-sub008/pkg/metrics"
	"github.com/voilajsx/appkit-sub008/pkg/storage"
)

// cli carries state shared by every subcommand.
type cli struct {
	loadConfig func() (storage.Config, error)
	store      *storage.Storage
	log        *slog.Logger
	reg        *prometheus.Registry
	out        io.Writer
	errOut     io.Writer

	format   string
	strategy string
	logLevel string
	metrics  bool
}

// NewRootCmd builds the storagectl root command backed by the environment configuration.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(&cli{
		loadConfig: storage.LoadConfig,
		out:        os.Stdout,
		errOut:     os.Stderr,
	}, version)
}

func newRootCmd(c *cli, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "storagectl",
		Short: "storagectl - file storage client for local, S3 and R2 backends",
		Long: `storagectl runs storage operations against the backend selected by the environment.

Strategy selection:
  STORAGE_STRATEGY overrides everything; otherwise R2_BUCKET selects r2,
  AWS_S3_BUCKET or AWS_S3_ENDPOINT selects s3, and the local filesystem
  (STORAGE_DIR, default ./uploads) is used as the fallback.

A .env file in the working directory is loaded when present.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Every log line of one invocation shares a request id.
			cmd.SetContext(logger.WithRequestID(cmd.Context(), uuid.NewString()))
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.teardown(cmd.Context())
		},
	}

	rootCmd.SetOut(c.out)
	rootCmd.SetErr(c.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.format, "output", "o", formatTable, "Output format: table, json or yaml")
	flags.StringVar(&c.strategy, "strategy", "", "Override the storage strategy (local, s3, r2)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	flags.BoolVar(&c.metrics, "metrics", false, "Print operation metrics to stderr on exit")

	rootCmd.AddCommand(newPutCmd(c))
	rootCmd.AddCommand(newGetCmd(c))
	rootCmd.AddCommand(newDeleteCmd(c))
	rootCmd.AddCommand(newListCmd(c))
	rootCmd.AddCommand(newURLCmd(c))
	rootCmd.AddCommand(newSignedURLCmd(c))
	rootCmd.AddCommand(newExistsCmd(c))
	rootCmd.AddCommand(newCopyCmd(c))
	rootCmd.AddCommand(newInfoCmd(c))
	rootCmd.AddCommand(newHealthCmd(c))
	rootCmd.AddCommand(newKeyCmd(c))

	return rootCmd
}

// setup builds the logger and the storage facade.
func (c *cli) setup(_ context.Context) error {
	if err := validateFormat(c.format); err != nil {
		return err
	}

	var (
		logCfg    logger.Config
		sentryCfg logger.SentryConfig
	)
	if err := env.Parse(&logCfg); err != nil {
		return fmt.Errorf("parse log config: %w", err)
	}
	if err := env.Parse(&sentryCfg); err != nil {
		return fmt.Errorf("parse sentry config: %w", err)
	}
	logCfg.Output = c.errOut
	logCfg.Format = "text"
	if c.logLevel != "" {
		logCfg.Level = c.logLevel
	}
	c.log = logger.NewWithSentry(logCfg, sentryCfg, logger.RequestIDExtractor)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.strategy != "" {
		cfg.Strategy = c.strategy
	}

	opts := []storage.Option{storage.WithLogger(c.log)}
	if c.metrics {
		c.reg = prometheus.NewRegistry()
		opts = append(opts, storage.WithObserver(metrics.NewCollector(c.reg)))
	}

	store, err := storage.New(cfg, opts...)
	if err != nil {
		return err
	}
	c.store = store
	return nil
}

func (c *cli) teardown(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if c.reg != nil {
		if err := printMetrics(c.errOut, c.reg); err != nil {
			return err
		}
	}
	return c.store.Disconnect(ctx)
}

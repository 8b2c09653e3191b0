package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/voilajsx/appkit-sub008/pkg/health"
	"github.com/voilajsx/appkit-sub008/pkg/storage"
)

func newInfoCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the active strategy and limits",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			info := c.store.Info()
			return c.print(info, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintf(tw, "Strategy:\t%s\n", info.Strategy)
				_, _ = fmt.Fprintf(tw, "Environment:\t%s\n", info.Environment)
				_, _ = fmt.Fprintf(tw, "Connected:\t%t\n", info.Connected)
				_, _ = fmt.Fprintf(tw, "Max file size:\t%s\n", FormatSize(info.MaxFileSize))
				_, _ = fmt.Fprintf(tw, "Allowed types:\t%s\n", allowedTypes(info.AllowedTypes))
				return tw.Flush()
			})
		},
	}
}

func allowedTypes(types []string) string {
	if len(types) == 0 {
		return "*"
	}
	return strings.Join(types, ", ")
}

func newHealthCmd(c *cli) *cobra.Command {
	var (
		write   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check backend connectivity",
		Long: `Probe the backend with a HEAD-style existence check.
With --write, also store, read back and delete a probe object.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := health.Checks{"backend": storage.Healthcheck(c.store)}
			if write {
				checks["write"] = storage.WriteCheck(c.store)
			}

			resp := health.Run(cmd.Context(), checks,
				health.WithTimeout(timeout),
				health.WithLogger(c.log),
			)
			err := c.print(resp, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "CHECK\tSTATUS\tDURATION\tERROR")
				for _, name := range slices.Sorted(maps.Keys(resp.Checks)) {
					check := resp.Checks[name]
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, check.Status, check.Duration.Round(time.Millisecond), check.Error)
				}
				return tw.Flush()
			})
			if err != nil {
				return err
			}
			return resp.Err()
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Also verify write access with a probe object")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout for all checks")
	return cmd
}

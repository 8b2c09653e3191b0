package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voilajsx/appkit-sub008/pkg/storage"
)

func newPutCmd(c *cli) *cobra.Command {
	var (
		contentType  string
		cacheControl string
		metadata     []string
		fromURL      string
		progress     bool
	)

	cmd := &cobra.Command{
		Use:   "put <key> [local-file|-]",
		Short: "Upload a file",
		Long: `Upload a local file, stdin ("-" or no file) or a remote URL (--from-url) under key.
The content type is detected from the key and content unless --content-type is set.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			opts := []storage.PutOption{}
			if contentType != "" {
				opts = append(opts, storage.WithContentType(contentType))
			}
			if cacheControl != "" {
				opts = append(opts, storage.WithCacheControl(cacheControl))
			}
			if len(metadata) > 0 {
				md, err := parseMetadata(metadata)
				if err != nil {
					return err
				}
				opts = append(opts, storage.WithMetadata(md))
			}
			if progress {
				opts = append(opts, storage.WithProgress(func(pct int) {
					fmt.Fprintf(c.errOut, "\rprogress: %3d%%", pct)
					if pct == 100 {
						fmt.Fprintln(c.errOut)
					}
				}))
			}

			var (
				res *storage.PutResult
				err error
			)
			switch {
			case fromURL != "":
				res, err = storage.PutFromURL(cmd.Context(), c.store, key, fromURL, opts...)
			case len(args) == 1 || args[1] == "-":
				res, err = storage.PutReader(cmd.Context(), c.store, key, cmd.InOrStdin(), opts...)
			default:
				res, err = putLocalFile(cmd, c, key, args[1], opts)
			}
			if err != nil {
				return err
			}

			return c.print(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Uploaded %s (%s, %s)\nETag: %s\n",
					res.Key, FormatSize(res.Size), res.ContentType, res.ETag)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type of the object")
	cmd.Flags().StringVar(&cacheControl, "cache-control", "", "Cache-Control header")
	cmd.Flags().StringArrayVar(&metadata, "metadata", nil, "Metadata key=value pairs")
	cmd.Flags().StringVar(&fromURL, "from-url", "", "Download the content from an http(s) URL")
	cmd.Flags().BoolVar(&progress, "progress", false, "Report upload progress on stderr")

	return cmd
}

func putLocalFile(cmd *cobra.Command, c *cli, key, path string, opts []storage.PutOption) (*storage.PutResult, error) {
	file, err := os.Open(path) //nolint:gosec // G304: path is provided by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return storage.PutReader(cmd.Context(), c.store, key, file, opts...)
}

func parseMetadata(pairs []string) (map[string]string, error) {
	md := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", p)
		}
		md[k] = v
	}
	return md, nil
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key> [local-file]",
		Short: "Download a file to a local path or stdout",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if len(args) == 1 || args[1] == "-" {
				_, err = c.out.Write(data)
				return err
			}
			if err := os.WriteFile(args[1], data, 0o600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Fprintf(c.errOut, "Downloaded %s to %s (%s)\n", args[0], args[1], FormatSize(int64(len(data))))
			return nil
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Delete a file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := c.store.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result := map[string]any{"key": args[0], "deleted": deleted}
			return c.print(result, func(w io.Writer) error {
				if !deleted {
					_, err := fmt.Fprintf(w, "%s not found, nothing deleted\n", args[0])
					return err
				}
				_, err := fmt.Fprintf(w, "Deleted %s\n", args[0])
				return err
			})
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "list [prefix]",
		Aliases: []string{"ls"},
		Short:   "List files under a prefix",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			files, err := c.store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			return c.print(files, func(w io.Writer) error {
				return printFileTable(w, files)
			})
		},
	}
}

func newURLCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "url <key>",
		Short: "Print the public URL of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			u, err := c.store.URL(args[0])
			if err != nil {
				return err
			}
			return c.printLine(map[string]string{"key": args[0], "url": u}, u)
		},
	}
}

func newSignedURLCmd(c *cli) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "signed-url <key>",
		Short: "Print a time-limited download URL (s3 and r2 only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.store.SignedURL(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			return c.printLine(map[string]string{"key": args[0], "url": u}, u)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "URL lifetime between 1m and 168h (default: configured TTL)")

	return cmd
}

// errMissing makes `exists` exit non-zero for scripts.
var errMissing = errors.New("file does not exist")

func newExistsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Check whether a file exists; exits non-zero when it does not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := c.store.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.printLine(map[string]any{"key": args[0], "exists": ok}, fmt.Sprint(ok)); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], errMissing)
			}
			return nil
		},
	}
}

func newCopyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "copy <src-key> <dst-key>",
		Aliases: []string{"cp"},
		Short:   "Copy a file to a new key",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.store.Copy(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return c.print(map[string]string{"src": args[0], "dst": args[1]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Copied %s to %s\n", args[0], args[1])
				return err
			})
		},
	}
}

func newKeyCmd(c *cli) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "new-key [prefix]",
		Short: "Generate a unique, time-ordered key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			key, err := storage.NewKey(prefix, contentType)
			if err != nil {
				return err
			}
			return c.printLine(map[string]string{"key": key}, key)
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type used to pick the extension")

	return cmd
}

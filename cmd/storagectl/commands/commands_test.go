package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/voilajsx/appkit-sub008/pkg/health"
	"github.com/voilajsx/appkit-sub008/pkg/storage"
)

// run executes storagectl against a local store rooted at dir.
func run(t *testing.T, dir, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	c := &cli{
		loadConfig: func() (storage.Config, error) {
			return storage.LoadConfigFromEnv(map[string]string{
				"STORAGE_STRATEGY": "local",
				"STORAGE_DIR":      dir,
			})
		},
		out:    &out,
		errOut: &errOut,
	}

	cmd := newRootCmd(c, "test")
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	out, _, err := run(t, dir, "hello world", "put", "notes/hello.txt")
	require.NoError(t, err)
	require.Contains(t, out, "Uploaded notes/hello.txt")
	require.Contains(t, out, "text/plain")

	out, _, err = run(t, dir, "", "get", "notes/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestPutLocalFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	src := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(src, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, 0o600))

	out, _, err := run(t, dir, "", "-o", "json", "put", "img/logo", src, "--metadata", "owner=ops")
	require.NoError(t, err)

	var res storage.PutResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "img/logo", res.Key)
	require.Equal(t, "image/png", res.ContentType)
	require.EqualValues(t, 6, res.Size)
}

func TestListJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for _, key := range []string{"a/1.txt", "a/2.txt", "b/3.txt"} {
		_, _, err := run(t, dir, "x", "put", key)
		require.NoError(t, err)
	}

	out, _, err := run(t, dir, "", "-o", "json", "list", "a/")
	require.NoError(t, err)

	var files []storage.StorageFile
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 2)
	require.Equal(t, "a/1.txt", files[0].Key)
	require.Equal(t, "a/2.txt", files[1].Key)
}

func TestListTable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, _, err := run(t, dir, "abc", "put", "docs/readme.md")
	require.NoError(t, err)

	out, _, err := run(t, dir, "", "ls")
	require.NoError(t, err)
	require.Contains(t, out, "KEY")
	require.Contains(t, out, "docs/readme.md")
	require.Contains(t, out, "Total: 1 files, 3 B")
}

func TestExistsAndDelete(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, _, err := run(t, dir, "", "exists", "missing.txt")
	require.ErrorIs(t, err, errMissing)

	_, _, err = run(t, dir, "data", "put", "present.txt")
	require.NoError(t, err)

	out, _, err := run(t, dir, "", "exists", "present.txt")
	require.NoError(t, err)
	require.Equal(t, "true\n", out)

	out, _, err = run(t, dir, "", "rm", "present.txt")
	require.NoError(t, err)
	require.Contains(t, out, "Deleted present.txt")

	out, _, err = run(t, dir, "", "rm", "present.txt")
	require.NoError(t, err)
	require.Contains(t, out, "nothing deleted")
}

func TestCopy(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, _, err := run(t, dir, "payload", "put", "src.txt")
	require.NoError(t, err)

	_, _, err = run(t, dir, "", "cp", "src.txt", "dst/copy.txt")
	require.NoError(t, err)

	out, _, err := run(t, dir, "", "get", "dst/copy.txt")
	require.NoError(t, err)
	require.Equal(t, "payload", out)
}

func TestURLCommands(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	out, _, err := run(t, dir, "", "url", "a/b.txt")
	require.NoError(t, err)
	require.Equal(t, "/uploads/a/b.txt\n", out)

	_, _, err = run(t, dir, "", "url", "../b.txt")
	require.ErrorIs(t, err, storage.ErrInvalidKey)

	_, _, err = run(t, dir, "", "signed-url", "a/b.txt")
	require.ErrorIs(t, err, storage.ErrCapabilityUnsupported)
}

func TestInfoYAML(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, t.TempDir(), "", "-o", "yaml", "info")
	require.NoError(t, err)

	var info storage.StatusInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	require.Equal(t, storage.StrategyLocal, info.Strategy)
	require.EqualValues(t, storage.DefaultMaxFileSize, info.MaxFileSize)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, t.TempDir(), "", "health")
	require.NoError(t, err)
	require.Contains(t, out, "backend")
	require.Contains(t, out, "healthy")

	out, _, err = run(t, t.TempDir(), "", "-o", "json", "health", "--write")
	require.NoError(t, err)

	var resp health.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, health.StatusHealthy, resp.Status)
	require.Contains(t, resp.Checks, "write")
}

func TestNewKey(t *testing.T) {
	t.Parallel()

	out, _, err := run(t, t.TempDir(), "", "new-key", "avatars", "--content-type", "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "avatars/"))
	require.True(t, strings.HasSuffix(strings.TrimSpace(out), ".png"))
}

func TestMetricsFlag(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, errOut, err := run(t, dir, "x", "--metrics", "put", "m.txt")
	require.NoError(t, err)
	require.Contains(t, errOut, "storage_operations_total{code=ok,op=put,strategy=local} 1")
}

func TestInvalidOutputFormat(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, t.TempDir(), "", "-o", "xml", "info")
	require.ErrorContains(t, err, "unsupported output format")
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	md, err := parseMetadata([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "x=y"}, md)

	_, err = parseMetadata([]string{"novalue"})
	require.Error(t, err)
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want string
		size int64
	}{
		{"0 B", 0},
		{"1023 B", 1023},
		{"1.00 KB", 1024},
		{"1.50 MB", 3 << 19},
		{"2.00 GB", 2 << 30},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatSize(tt.size))
	}
}

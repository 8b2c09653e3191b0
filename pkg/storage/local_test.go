package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Put(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := NewLocal(LocalConfig{Dir: root})
	ctx := context.Background()

	var progress []int
	res, err := l.Put(ctx, "a/b/c.txt", []byte("hello"), PutOptions{
		ContentType: "text/plain",
		Progress:    func(p int) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	require.Equal(t, "5d41402abc4b2a76b9719d911017c592", res.ETag)
	require.Equal(t, []int{100}, progress)

	data, err := os.ReadFile(filepath.Join(root, "a", "b", "c.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "a", "b"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalStorage_LazyRoot(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "nested", "uploads")
	l := NewLocal(LocalConfig{Dir: root})
	require.False(t, l.Connected())
	require.NoDirExists(t, root)

	ok, err := l.Exists(context.Background(), "x")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, l.Connected())
	require.DirExists(t, root)
}

func TestLocalStorage_Defaults(t *testing.T) {
	t.Parallel()

	l := NewLocal(LocalConfig{})
	require.Equal(t, DefaultLocalDir, l.cfg.Dir)
	require.Equal(t, "/uploads/img/a.png", l.URL("img/a.png"))
	require.Equal(t, StrategyLocal, l.Name())
}

func TestLocalStorage_List(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := NewLocal(LocalConfig{Dir: root})
	ctx := context.Background()

	for _, key := range []string{"img/b.png", "img/a.png", "img/sub/c.jpg", "imgx/d.png", "doc.txt"} {
		_, err := l.Put(ctx, key, []byte("x"), PutOptions{})
		require.NoError(t, err)
	}
	// An in-progress write from another process.
	require.NoError(t, os.WriteFile(filepath.Join(root, "img", tempFilePrefix+"123"), []byte("partial"), 0o600))

	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"doc.txt", "img/a.png", "img/b.png", "img/sub/c.jpg", "imgx/d.png"}},
		{"img/", []string{"img/a.png", "img/b.png", "img/sub/c.jpg"}},
		{"img", []string{"img/a.png", "img/b.png", "img/sub/c.jpg", "imgx/d.png"}},
		{"img/sub/", []string{"img/sub/c.jpg"}},
		{"img/a", []string{"img/a.png"}},
		{"missing/", []string{}},
	}

	for _, tt := range tests {
		t.Run("prefix "+tt.prefix, func(t *testing.T) {
			t.Parallel()
			files, err := l.List(ctx, tt.prefix)
			require.NoError(t, err)

			keys := make([]string, 0, len(files))
			for _, f := range files {
				keys = append(keys, f.Key)
				require.EqualValues(t, 1, f.Size)
			}
			require.Equal(t, tt.want, keys)
		})
	}

	files, err := l.List(ctx, "img/a")
	require.NoError(t, err)
	require.Equal(t, "image/png", files[0].ContentType)
	require.False(t, files[0].LastModified.IsZero())
}

func TestLocalStorage_DeleteCleansEmptyDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := NewLocal(LocalConfig{Dir: root})
	ctx := context.Background()

	_, err := l.Put(ctx, "a/b/c.txt", []byte("x"), PutOptions{})
	require.NoError(t, err)
	_, err = l.Put(ctx, "a/keep.txt", []byte("x"), PutOptions{})
	require.NoError(t, err)

	deleted, err := l.Delete(ctx, "a/b/c.txt")
	require.NoError(t, err)
	require.True(t, deleted)
	require.NoDirExists(t, filepath.Join(root, "a", "b"))
	require.DirExists(t, filepath.Join(root, "a"))
	require.DirExists(t, root)

	deleted, err = l.Delete(ctx, "a/b/c.txt")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestLocalStorage_GetMissing(t *testing.T) {
	t.Parallel()

	l := NewLocal(LocalConfig{Dir: t.TempDir()})
	_, err := l.Get(context.Background(), "nope.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_ExistsIgnoresDirectories(t *testing.T) {
	t.Parallel()

	l := NewLocal(LocalConfig{Dir: t.TempDir()})
	ctx := context.Background()
	_, err := l.Put(ctx, "dir/file.txt", []byte("x"), PutOptions{})
	require.NoError(t, err)

	ok, err := l.Exists(ctx, "dir")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalStorage_GetDirectoryIsNotFound(t *testing.T) {
	t.Parallel()

	l := NewLocal(LocalConfig{Dir: t.TempDir()})
	ctx := context.Background()
	_, err := l.Put(ctx, "images/x.png", pngBytes, PutOptions{})
	require.NoError(t, err)

	_, err = l.Get(ctx, "images")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrBackendUnavailable)
}

func TestStorage_GetDirectoryIsNotFound(t *testing.T) {
	t.Parallel()

	s := newLocalStorage(t, Config{})
	ctx := context.Background()
	_, err := s.Put(ctx, "images/x.png", Bytes(pngBytes))
	require.NoError(t, err)

	_, err = s.Get(ctx, "images")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestCreateTemp(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	tmp, err := createTemp(dir)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	require.DirExists(t, dir)
	require.True(t, strings.HasPrefix(filepath.Base(tmp.Name()), tempFilePrefix))
}

func TestLocalStorage_ConcurrentPutAndDelete(t *testing.T) {
	t.Parallel()

	l := NewLocal(LocalConfig{Dir: t.TempDir()})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			key := fmt.Sprintf("shared/%d.txt", i)
			_, err := l.Put(ctx, key, []byte("x"), PutOptions{})
			assert.NoError(t, err)
			_, err = l.Delete(ctx, key)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	files, err := l.List(ctx, "")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestObjectPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	p, err := objectPath(root, "a/b.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "a", "b.txt"), p)

	for _, key := range []string{"../escape", "a/../../escape", ".", ""} {
		_, err := objectPath(root, key)
		require.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestLocalStorage_Disconnect(t *testing.T) {
	t.Parallel()

	l := NewLocal(LocalConfig{Dir: t.TempDir()})
	ctx := context.Background()

	require.NoError(t, l.Disconnect(ctx))
	_, err := l.Put(ctx, "a.txt", []byte("x"), PutOptions{})
	require.ErrorIs(t, err, ErrBackendUnavailable)
	_, err = l.List(ctx, "")
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

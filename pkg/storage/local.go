package storage

import (
	"context"
	"crypto/md5" //nolint:gosec // G501: MD5 used only as a content tag
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o640
	tempFilePrefix  = ".tmp-"
)

// LocalStorage implements Strategy on the local filesystem.
// Objects live at <Dir>/<key>. Writes go to a temporary file in the target
// directory and are renamed into place, so readers never observe a partial file.
type LocalStorage struct {
	cfg LocalConfig

	mu        sync.Mutex
	root      string
	connected bool
	closed    bool
}

// NewLocal creates a local filesystem strategy. The root directory is created on first use.
func NewLocal(cfg LocalConfig) *LocalStorage {
	if cfg.Dir == "" {
		cfg.Dir = DefaultLocalDir
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLocalBaseURL
	}
	return &LocalStorage{cfg: cfg}
}

// Name implements Strategy.
func (l *LocalStorage) Name() string { return StrategyLocal }

// connect resolves and creates the root directory once.
func (l *LocalStorage) connect() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return "", fmt.Errorf("%w: strategy disconnected", ErrBackendUnavailable)
	}
	if l.connected {
		return l.root, nil
	}

	root, err := filepath.Abs(l.cfg.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: resolve root directory: %v", ErrBackendUnavailable, err)
	}
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return "", fmt.Errorf("%w: create root directory: %v", ErrBackendUnavailable, err)
	}

	l.root = root
	l.connected = true
	return root, nil
}

// objectPath maps key to a path under root and refuses anything that escapes it.
func objectPath(root, key string) (string, error) {
	p := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", invalidKey(key, "key resolves outside the storage root")
	}
	return p, nil
}

// Put implements Strategy.
func (l *LocalStorage) Put(ctx context.Context, key string, data []byte, opts PutOptions) (*PutResult, error) {
	root, err := l.connect()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	p, err := objectPath(root, key)
	if err != nil {
		return nil, err
	}

	tmp, err := createTemp(filepath.Dir(p))
	if err != nil {
		return nil, wrapFSError(err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, wrapFSError(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, wrapFSError(err)
	}
	if err := tmp.Close(); err != nil {
		return nil, wrapFSError(err)
	}
	if err := os.Chmod(tmpPath, filePermissions); err != nil {
		return nil, wrapFSError(err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		return nil, wrapFSError(err)
	}

	sum := md5.Sum(data) //nolint:gosec // G401: content tag only
	opts.reportProgress(100)

	return &PutResult{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: opts.ContentType,
		ETag:        hex.EncodeToString(sum[:]),
	}, nil
}

// Get implements Strategy.
func (l *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	root, err := l.connect()
	if err != nil {
		return nil, err
	}
	p, err := objectPath(root, key)
	if err != nil {
		return nil, err
	}

	// A directory is an implicit prefix, not an object.
	if info, err := os.Stat(p); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	//nolint:gosec // G304: path is constructed from a validated key
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, wrapFSError(err)
	}
	return data, nil
}

// Delete implements Strategy.
func (l *LocalStorage) Delete(ctx context.Context, key string) (bool, error) {
	root, err := l.connect()
	if err != nil {
		return false, err
	}
	p, err := objectPath(root, key)
	if err != nil {
		return false, err
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrapFSError(err)
	}

	cleanEmptyDirs(filepath.Dir(p), root)
	return true, nil
}

// createTemp creates a temp file in dir, creating dir first. A concurrent
// Delete may prune dir between the two steps, so that case is retried once.
func createTemp(dir string) (*os.File, error) {
	var err error
	for range 2 {
		if err = os.MkdirAll(dir, dirPermissions); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		var tmp *os.File
		tmp, err = os.CreateTemp(dir, tempFilePrefix+"*")
		if err == nil {
			return tmp, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, err
}

// cleanEmptyDirs removes empty directories from dir up to, but not including, stop.
func cleanEmptyDirs(dir, stop string) {
	for dir != stop && strings.HasPrefix(dir, stop) {
		if err := os.Remove(dir); err != nil {
			return // not empty or already gone
		}
		dir = filepath.Dir(dir)
	}
}

// List implements Strategy. Keys are relative to the root and use forward slashes.
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]StorageFile, error) {
	root, err := l.connect()
	if err != nil {
		return nil, err
	}

	// Start the walk at the deepest directory the prefix names.
	start := root
	if dir := path.Dir(prefix); prefix != "" && dir != "." {
		if start, err = objectPath(root, dir); err != nil {
			return nil, err
		}
	}

	files := []StorageFile{}
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || strings.HasPrefix(d.Name(), tempFilePrefix) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil // removed during the walk
			}
			return err
		}

		files = append(files, StorageFile{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ContentTypeByExtension(key),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return nil, wrapFSError(err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

// URL implements Strategy.
func (l *LocalStorage) URL(key string) string {
	return strings.TrimSuffix(l.cfg.BaseURL, "/") + "/" + key
}

// Exists implements Strategy.
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	root, err := l.connect()
	if err != nil {
		return false, err
	}
	p, err := objectPath(root, key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrapFSError(err)
	}
	return info.Mode().IsRegular(), nil
}

// Connected implements Strategy.
func (l *LocalStorage) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Disconnect implements Strategy.
func (l *LocalStorage) Disconnect(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	l.closed = true
	return nil
}

var _ Strategy = (*LocalStorage)(nil)

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Helper errors.
var (
	ErrInvalidURL     = errors.New("storage: invalid source URL")
	ErrDownloadFailed = errors.New("storage: download failed")
)

// downloadTimeout bounds PutFromURL when ctx has no deadline of its own.
const downloadTimeout = 30 * time.Second

// PutReader reads r and stores it under key.
// At most MaxFileSize+1 bytes are read, so oversized input fails with
// ErrPayloadTooLarge without being buffered in full.
func PutReader(ctx context.Context, s *Storage, key string, r io.Reader, opts ...PutOption) (*PutResult, error) {
	if err := ValidateKey(key); err != nil {
		return nil, &OpError{Op: OpPut, Key: key, Err: err}
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, &OpError{Op: OpPut, Key: key, Err: fmt.Errorf("read payload: %w", err)}
	}
	return s.Put(ctx, key, Bytes(data), opts...)
}

// PutFile stores an uploaded form file under key.
func PutFile(ctx context.Context, s *Storage, key string, fh *multipart.FileHeader, opts ...PutOption) (*PutResult, error) {
	if fh == nil {
		return nil, &OpError{Op: OpPut, Key: key, Err: errors.New("nil file header")}
	}
	if err := ValidateSize(fh.Size, s.cfg.MaxFileSize); err != nil {
		return nil, &OpError{Op: OpPut, Key: key, Err: err}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, &OpError{Op: OpPut, Key: key, Err: fmt.Errorf("open upload: %w", err)}
	}
	defer func() { _ = f.Close() }()

	return PutReader(ctx, s, key, f, opts...)
}

// PutFromURL downloads sourceURL and stores the body under key.
// The response Content-Type is used unless WithContentType is given.
func PutFromURL(ctx context.Context, s *Storage, key, sourceURL string, opts ...PutOption) (*PutResult, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &OpError{Op: OpPut, Key: key, Err: fmt.Errorf("%w: %q", ErrInvalidURL, sourceURL)}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, downloadTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, &OpError{Op: OpPut, Key: key, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &OpError{Op: OpPut, Key: key, Err: fmt.Errorf("%w: %v", ErrDownloadFailed, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &OpError{Op: OpPut, Key: key, Err: fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)}
	}
	if resp.ContentLength > s.cfg.MaxFileSize {
		return nil, &OpError{Op: OpPut, Key: key, Err: ValidateSize(resp.ContentLength, s.cfg.MaxFileSize)}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		opts = append([]PutOption{WithContentType(normalizeMIME(ct))}, opts...)
	}
	return PutReader(ctx, s, key, resp.Body, opts...)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/voilajsx/appkit-sub008/pkg/logger"
)

// Storage is the facade over the active strategy. It validates every key and
// payload before any backend call, detects content types, wraps errors in
// *OpError and reports each operation to the logger and observer.
//
// A Storage is safe for concurrent use. It holds no per-request state.
type Storage struct {
	strategy Strategy
	log      *slog.Logger
	observer Observer
	cfg      Config
}

// StatusInfo is the diagnostic view returned by Info. It never carries credentials.
type StatusInfo struct {
	Strategy     string      `json:"strategy" yaml:"strategy"`
	Environment  Environment `json:"environment" yaml:"environment"`
	AllowedTypes []string    `json:"allowed_types" yaml:"allowed_types"`
	MaxFileSize  int64       `json:"max_file_size" yaml:"max_file_size"`
	Connected    bool        `json:"connected" yaml:"connected"`
}

// New validates cfg and builds the strategy it selects.
// WithStrategy bypasses strategy construction; only the shared limits are validated then.
func New(cfg Config, opts ...Option) (*Storage, error) {
	o := newOptions(opts)
	cfg.applyDefaults()

	strategy := o.strategy
	if strategy != nil {
		cfg.Strategy = strategy.Name()
		if err := cfg.validateLimits(); err != nil {
			return nil, err
		}
	} else {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		strategy = newStrategy(cfg, o)
	}

	log := o.log.With(logger.Strategy(strategy.Name()))
	if cfg.Environment.IsProduction() && strategy.Name() == StrategyLocal {
		log.Warn("local storage strategy in production; files are not replicated", slog.String("dir", cfg.Local.Dir))
	}

	return &Storage{
		strategy: strategy,
		log:      log,
		observer: o.observer,
		cfg:      cfg,
	}, nil
}

func newStrategy(cfg Config, o *options) Strategy {
	switch cfg.Strategy {
	case StrategyS3:
		s := NewS3(cfg.S3)
		if o.s3Client != nil {
			s.withClient(o.s3Client, o.presign)
		}
		return s
	case StrategyR2:
		r := NewR2(cfg.R2)
		if o.s3Client != nil {
			r.withClient(o.s3Client, o.presign)
		}
		return r
	default:
		return NewLocal(cfg.Local)
	}
}

// Put validates and stores payload under key.
// The content type is taken from WithContentType, otherwise detected from the key and payload.
func (s *Storage) Put(ctx context.Context, key string, payload Payload, opts ...PutOption) (*PutResult, error) {
	start := time.Now()
	res, size, err := s.put(ctx, key, payload, opts)
	return res, s.done(ctx, OpPut, key, size, start, err)
}

func (s *Storage) put(ctx context.Context, key string, payload Payload, opts []PutOption) (*PutResult, int64, error) {
	if err := ValidateKey(key); err != nil {
		return nil, 0, err
	}

	data := normalizePayload(payload)
	size := int64(len(data))
	if err := ValidateSize(size, s.cfg.MaxFileSize); err != nil {
		return nil, size, err
	}

	var po PutOptions
	for _, opt := range opts {
		opt(&po)
	}
	if po.ContentType == "" {
		po.ContentType = DetectContentType(key, data)
	}
	if err := ValidateType(po.ContentType, s.cfg.AllowedTypes); err != nil {
		return nil, size, err
	}

	res, err := s.strategy.Put(ctx, key, data, po)
	return res, size, err
}

// Get returns the object stored under key, or an error wrapping ErrNotFound.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.get(ctx, key)
	return data, s.done(ctx, OpGet, key, int64(len(data)), start, err)
}

func (s *Storage) get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return s.strategy.Get(ctx, key)
}

// Delete removes the object under key. It returns false, not an error, when nothing was stored.
func (s *Storage) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	deleted, err := s.delete(ctx, key)
	return deleted, s.done(ctx, OpDelete, key, 0, start, err)
}

func (s *Storage) delete(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	return s.strategy.Delete(ctx, key)
}

// List returns every object whose key starts with prefix. An empty prefix lists all objects.
func (s *Storage) List(ctx context.Context, prefix string) ([]StorageFile, error) {
	start := time.Now()
	files, err := s.list(ctx, prefix)
	return files, s.done(ctx, OpList, prefix, 0, start, err)
}

func (s *Storage) list(ctx context.Context, prefix string) ([]StorageFile, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return s.strategy.List(ctx, prefix)
}

// URL returns the public address of key. It performs no I/O.
func (s *Storage) URL(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", &OpError{Op: OpURL, Key: key, Err: err}
	}
	return s.strategy.URL(key), nil
}

// SignedURL returns a time-limited GET URL for key.
// A zero ttl uses the configured default. Strategies without signing support
// return an error wrapping ErrCapabilityUnsupported.
func (s *Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	u, err := s.signedURL(ctx, key, ttl)
	return u, s.done(ctx, OpSignedURL, key, 0, start, err)
}

func (s *Storage) signedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	signer, ok := s.strategy.(Signer)
	if !ok {
		return "", fmt.Errorf("%w: %s strategy cannot sign URLs", ErrCapabilityUnsupported, s.strategy.Name())
	}
	if ttl == 0 {
		ttl = s.cfg.signedURLTTL()
	}
	if err := ValidateTTL(int64(ttl / time.Second)); err != nil {
		return "", err
	}
	return signer.SignedURL(ctx, key, ttl)
}

// Exists reports whether an object is stored under key.
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.exists(ctx, key)
	return ok, s.done(ctx, OpExists, key, 0, start, err)
}

func (s *Storage) exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	return s.strategy.Exists(ctx, key)
}

// Copy duplicates srcKey to dstKey. Strategies with a native copy use it;
// others fall back to Get followed by Put, which applies the size and type rules to dstKey.
func (s *Storage) Copy(ctx context.Context, srcKey, dstKey string) error {
	start := time.Now()
	size, err := s.copy(ctx, srcKey, dstKey)
	return s.done(ctx, OpCopy, srcKey, size, start, err, slog.String("dst", dstKey))
}

func (s *Storage) copy(ctx context.Context, srcKey, dstKey string) (int64, error) {
	if err := ValidateKey(srcKey); err != nil {
		return 0, err
	}
	if err := ValidateKey(dstKey); err != nil {
		return 0, err
	}

	if c, ok := s.strategy.(Copier); ok {
		return 0, c.Copy(ctx, srcKey, dstKey)
	}

	data, err := s.strategy.Get(ctx, srcKey)
	if err != nil {
		return 0, err
	}
	_, size, err := s.put(ctx, dstKey, Bytes(data), nil)
	return size, err
}

// Disconnect releases the strategy's backend connection. Calling it more than once is safe.
// Operations issued afterwards fail with ErrBackendUnavailable.
func (s *Storage) Disconnect(ctx context.Context) error {
	start := time.Now()
	return s.done(ctx, OpDisconnect, "", 0, start, s.strategy.Disconnect(ctx))
}

// Info reports the active strategy and limits for diagnostics.
func (s *Storage) Info() StatusInfo {
	return StatusInfo{
		Strategy:     s.strategy.Name(),
		Environment:  s.cfg.Environment,
		Connected:    s.strategy.Connected(),
		MaxFileSize:  s.cfg.MaxFileSize,
		AllowedTypes: slices.Clone(s.cfg.AllowedTypes),
	}
}

// done notifies the observer, logs the outcome and wraps err in *OpError.
func (s *Storage) done(ctx context.Context, op, key string, size int64, start time.Time, err error, extra ...any) error {
	elapsed := time.Since(start)
	s.observer.ObserveOperation(ctx, OperationEvent{
		Err:      err,
		Op:       op,
		Strategy: s.strategy.Name(),
		Key:      key,
		Bytes:    size,
		Duration: elapsed,
	})

	attrs := append([]any{
		logger.Operation(op),
		logger.Key(key),
		logger.Size(size),
		logger.Duration(elapsed),
	}, extra...)

	if err == nil {
		s.log.DebugContext(ctx, "storage operation completed", attrs...)
		return nil
	}

	attrs = append(attrs, slog.String("code", ErrorCode(err)), logger.Error(err))

	var merr *MultipartError
	switch {
	case errors.As(err, &merr):
		s.log.ErrorContext(ctx, "multipart upload aborted", append(attrs, logger.UploadID(merr.UploadID))...)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCancelled):
		s.log.DebugContext(ctx, "storage operation failed", attrs...)
	case errors.Is(err, ErrBackendUnavailable):
		s.log.ErrorContext(ctx, "storage backend unavailable", attrs...)
	default:
		s.log.WarnContext(ctx, "storage operation rejected", attrs...)
	}

	return &OpError{Op: op, Key: key, Err: err}
}

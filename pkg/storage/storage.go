package storage

import (
	"context"
	"time"
)

// Strategy is the contract every storage backend implements.
// All methods except URL, Name and Connected perform I/O.
type Strategy interface {
	// Name returns the strategy identifier (local, s3 or r2).
	Name() string

	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (*PutResult, error)

	// Get returns the full object content.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object. Returns false if nothing was stored under key.
	Delete(ctx context.Context, key string) (bool, error)

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]StorageFile, error)

	// URL returns the public address of the object. Pure, no I/O.
	URL(key string) string

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Connected reports whether the backend connection has been established.
	Connected() bool

	// Disconnect releases the backend connection. Safe to call more than once.
	Disconnect(ctx context.Context) error
}

// Signer is implemented by strategies that can issue time-limited URLs.
type Signer interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Copier is implemented by strategies with a native server-side copy.
type Copier interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
}

// StorageFile is a read-only snapshot of a stored object returned by List.
type StorageFile struct {
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
	Key          string    `json:"key" yaml:"key"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
	ContentType  string    `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Size         int64     `json:"size" yaml:"size"`
}

// PutResult describes a stored object.
type PutResult struct {
	// Key is the storage key (path) for the file.
	Key string `json:"key" yaml:"key"`

	// ContentType is the detected or supplied MIME type.
	ContentType string `json:"content_type" yaml:"content_type"`

	// ETag is the backend-issued content tag, if any.
	ETag string `json:"etag,omitempty" yaml:"etag,omitempty"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// Payload is the data accepted by Storage.Put: Bytes or Text.
type Payload interface {
	bytes() []byte
}

// Bytes is a raw binary payload.
type Bytes []byte

func (b Bytes) bytes() []byte { return []byte(b) }

// Text is a UTF-8 text payload.
type Text string

func (t Text) bytes() []byte { return []byte(t) }

// normalizePayload returns the canonical byte form of p. A nil payload is empty.
func normalizePayload(p Payload) []byte {
	if p == nil {
		return []byte{}
	}
	b := p.bytes()
	if b == nil {
		return []byte{}
	}
	return b
}

// Strategy names.
const (
	StrategyLocal = "local"
	StrategyS3    = "s3"
	StrategyR2    = "r2"
)

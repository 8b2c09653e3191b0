package storage

import (
	"log/slog"
	"maps"
	"time"

	"github.com/voilajsx/appkit-sub008/pkg/logger"
)

// PutOption configures Put operations.
type PutOption func(*PutOptions)

// PutOptions holds caller-supplied settings for a single Put.
// Strategies receive it by value and must not modify it.
type PutOptions struct {
	Expires      time.Time         // Expires header, zero means unset
	Metadata     map[string]string // User metadata stored with the object
	Progress     func(percent int) // Upload progress in percent, called with 100 on completion
	ContentType  string            // Overrides detection
	CacheControl string            // Cache-Control header
}

// WithContentType overrides the detected content type.
func WithContentType(ct string) PutOption {
	return func(o *PutOptions) {
		o.ContentType = ct
	}
}

// WithMetadata attaches user metadata. The map is copied.
func WithMetadata(md map[string]string) PutOption {
	return func(o *PutOptions) {
		if o.Metadata == nil {
			o.Metadata = make(map[string]string, len(md))
		}
		maps.Copy(o.Metadata, md)
	}
}

// WithCacheControl sets the Cache-Control header for the object.
func WithCacheControl(v string) PutOption {
	return func(o *PutOptions) {
		o.CacheControl = v
	}
}

// WithExpires sets the Expires header for the object.
func WithExpires(t time.Time) PutOption {
	return func(o *PutOptions) {
		o.Expires = t
	}
}

// WithProgress registers a progress callback.
// For multipart uploads it is invoked after every part with at most 99,
// and with 100 once the object is complete.
func WithProgress(fn func(percent int)) PutOption {
	return func(o *PutOptions) {
		o.Progress = fn
	}
}

func (o PutOptions) reportProgress(percent int) {
	if o.Progress != nil {
		o.Progress(percent)
	}
}

// Option configures a Storage facade.
type Option func(*options)

type options struct {
	log      *slog.Logger
	observer Observer
	strategy Strategy
	s3Client S3API
	presign  Presigner
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithObserver registers an observer notified after every operation.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithStrategy injects a prebuilt strategy instead of building one from Config.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithS3Client sets a pre-configured S3 client and presigner for the s3 and r2 strategies.
// Primarily used for testing with fakes, but also allows advanced client customization.
func WithS3Client(client S3API, presigner Presigner) Option {
	return func(o *options) {
		o.s3Client = client
		o.presign = presigner
	}
}

func newOptions(opts []Option) *options {
	o := &options{log: logger.NewNope(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(o)
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return o
}

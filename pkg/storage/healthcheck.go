package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrHealthcheckFailed is returned when the storage backend cannot be reached.
var ErrHealthcheckFailed = errors.New("storage: healthcheck failed")

// healthcheckKey is probed with Exists; it does not need to be present.
const healthcheckKey = ".healthcheck"

// Healthcheck returns a closure that validates backend connectivity for health endpoints.
// Compatible with health check interfaces that expect func(context.Context) error.
func Healthcheck(s *Storage) func(context.Context) error {
	return func(ctx context.Context) error {
		if s == nil {
			return ErrHealthcheckFailed
		}
		if _, err := s.Exists(ctx, healthcheckKey); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// WriteCheck returns a closure that stores, reads back and deletes a probe object.
// It verifies write access, which Healthcheck does not. The probe is stored as
// application/octet-stream, so AllowedTypes must admit that type.
func WriteCheck(s *Storage) func(context.Context) error {
	return func(ctx context.Context) error {
		if s == nil {
			return ErrHealthcheckFailed
		}

		key := fmt.Sprintf("%s-%s", healthcheckKey, uuid.NewString())
		probe := Text("ok")
		if _, err := s.Put(ctx, key, probe, WithContentType(MIMEOctetStream)); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		defer func() { _, _ = s.Delete(context.WithoutCancel(ctx), key) }()

		got, err := s.Get(ctx, key)
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		if string(got) != string(probe) {
			return fmt.Errorf("%w: probe content mismatch", ErrHealthcheckFailed)
		}
		return nil
	}
}

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// registry caches one facade per distinct configuration for the process.
var registry = struct {
	mu        sync.Mutex
	instances map[string]*Storage
}{instances: map[string]*Storage{}}

// Shared returns the process-wide Storage for cfg, creating it on first use.
// Calls with equal configurations share one instance and therefore one backend client.
// Options apply only when the instance is created.
func Shared(cfg Config, opts ...Option) (*Storage, error) {
	cfg.applyDefaults()
	fp, err := fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if s, ok := registry.instances[fp]; ok {
		return s, nil
	}

	s, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	registry.instances[fp] = s
	return s, nil
}

// ResetShared disconnects and forgets every shared instance. Intended for tests and shutdown.
func ResetShared(ctx context.Context) error {
	registry.mu.Lock()
	instances := registry.instances
	registry.instances = map[string]*Storage{}
	registry.mu.Unlock()

	var errs []error
	for _, s := range instances {
		if err := s.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fingerprint hashes the configuration so secrets are never kept as map keys.
func fingerprint(cfg Config) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("%w: fingerprint config: %v", ErrInvalidConfig, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

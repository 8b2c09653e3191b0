package storage

import (
	"fmt"
	"strings"
)

// R2Storage implements Strategy on Cloudflare R2 through its S3-compatible API.
// It shares the S3 client, multipart engine and presigning with S3Storage and
// differs only in addressing.
type R2Storage struct {
	*S3Storage
	r2 R2Config
}

// NewR2 creates an R2 strategy addressed through the account-scoped endpoint.
func NewR2(cfg R2Config) *R2Storage {
	cfg.Multipart.applyDefaults()

	s3s := &S3Storage{
		cfg: S3Config{
			Bucket:          cfg.Bucket,
			Region:          r2Region,
			Endpoint:        cfg.Endpoint(),
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			CDNURL:          cfg.CDNURL,
			Multipart:       cfg.Multipart,
			SignedURLTTL:    cfg.SignedURLTTL,
			ForcePathStyle:  true,
		},
		name: StrategyR2,
	}
	s3s.connectFn = s3s.dial

	return &R2Storage{S3Storage: s3s, r2: cfg}
}

// URL implements Strategy: the CDN URL when configured, otherwise the
// bucket's virtual-hosted address on the account endpoint.
func (r *R2Storage) URL(key string) string {
	if r.r2.CDNURL != "" {
		return strings.TrimSuffix(r.r2.CDNURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.%s.r2.cloudflarestorage.com/%s", r.r2.Bucket, r.r2.AccountID, key)
}

var (
	_ Strategy = (*R2Storage)(nil)
	_ Signer   = (*R2Storage)(nil)
	_ Copier   = (*R2Storage)(nil)
)

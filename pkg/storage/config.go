package storage

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultRegion             = "us-east-1"
	DefaultLocalDir           = "./uploads"
	DefaultLocalBaseURL       = "/uploads"
	DefaultMaxFileSize        = 50 << 20  // 50MB
	MinMaxFileSize            = 1 << 20   // 1MB
	MaxMaxFileSize            = 1 << 30   // 1GB
	DefaultSignedURLTTL       = 3600      // seconds
	MinSignedURLTTL           = 60        // seconds
	MaxSignedURLTTL           = 604800    // 7 days
	DefaultMultipartThreshold = 100 << 20 // 100MB
	DefaultPartSize           = 10 << 20  // 10MB
	MinPartSize               = 5 << 20   // S3 minimum for every part but the last
	r2Region                  = "auto"
)

// Environment describes the deployment environment.
type Environment string

// Known environments.
const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// IsDevelopment reports whether e is the development environment (the default).
func (e Environment) IsDevelopment() bool { return e == EnvDevelopment || e == "" }

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool { return e == EnvProduction }

// IsTest reports whether e is the test environment.
func (e Environment) IsTest() bool { return e == EnvTest }

// Config selects and configures the active strategy.
// Only the sub-config matching Strategy is used.
type Config struct {
	// Strategy is local, s3 or r2 (default: local).
	Strategy string `json:"strategy"`

	// Environment is the deployment environment (default: development).
	Environment Environment `json:"environment"`

	Local LocalConfig `json:"local"`
	S3    S3Config    `json:"s3"`
	R2    R2Config    `json:"r2"`

	// AllowedTypes lists accepted MIME patterns ("*", "image/*", "application/pdf").
	// Empty allows every type.
	AllowedTypes []string `json:"allowed_types"`

	// MaxFileSize is the largest accepted payload in bytes (default: 50MB).
	MaxFileSize int64 `json:"max_file_size"`
}

// LocalConfig configures the local filesystem strategy.
type LocalConfig struct {
	// Dir is the root directory for stored files (default: ./uploads).
	Dir string `json:"dir"`

	// BaseURL is prepended to keys by URL (default: /uploads).
	BaseURL string `json:"base_url"`
}

// S3Config configures the S3-compatible strategy.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string `json:"bucket"`

	// Region is the AWS region (default: us-east-1).
	Region string `json:"region"`

	// Endpoint is the custom S3 endpoint URL (optional, for MinIO or other S3-compatible services).
	Endpoint string `json:"endpoint"`

	// AccessKeyID and SecretAccessKey are static credentials.
	// When empty, the AWS default credential chain is used.
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`

	// CDNURL replaces the native endpoint in public URLs when set.
	CDNURL string `json:"cdn_url"`

	Multipart MultipartConfig `json:"multipart"`

	// SignedURLTTL is the default signed URL lifetime in seconds (default: 3600).
	SignedURLTTL int64 `json:"signed_url_ttl"`

	// ForcePathStyle enables path-style addressing (required for MinIO).
	ForcePathStyle bool `json:"force_path_style"`
}

// R2Config configures the Cloudflare R2 strategy.
type R2Config struct {
	// Bucket is the R2 bucket name (required).
	Bucket string `json:"bucket"`

	// AccountID is the Cloudflare account identifier used to derive the endpoint (required).
	AccountID string `json:"account_id"`

	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`

	// CDNURL replaces the account endpoint in public URLs when set.
	CDNURL string `json:"cdn_url"`

	Multipart MultipartConfig `json:"multipart"`

	// SignedURLTTL is the default signed URL lifetime in seconds (default: 3600).
	SignedURLTTL int64 `json:"signed_url_ttl"`
}

// MultipartConfig tunes chunked uploads.
type MultipartConfig struct {
	// Threshold is the payload size at which multipart upload is used (default: 100MB).
	Threshold int64 `json:"threshold"`

	// PartSize is the chunk size (default: 10MB, minimum 5MB).
	PartSize int64 `json:"part_size"`

	// Concurrency bounds in-flight parts (default: 1, sequential).
	Concurrency int `json:"concurrency"`
}

// Endpoint returns the account-scoped R2 endpoint.
func (c R2Config) Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// applyDefaults fills in default values for empty config fields.
func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyLocal
	}
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.Local.Dir == "" {
		c.Local.Dir = DefaultLocalDir
	}
	if c.Local.BaseURL == "" {
		c.Local.BaseURL = DefaultLocalBaseURL
	}
	if c.S3.Region == "" {
		c.S3.Region = DefaultRegion
	}
	if c.S3.SignedURLTTL == 0 {
		c.S3.SignedURLTTL = DefaultSignedURLTTL
	}
	if c.R2.SignedURLTTL == 0 {
		c.R2.SignedURLTTL = DefaultSignedURLTTL
	}
	c.S3.Multipart.applyDefaults()
	c.R2.Multipart.applyDefaults()
}

func (m *MultipartConfig) applyDefaults() {
	if m.Threshold == 0 {
		m.Threshold = DefaultMultipartThreshold
	}
	if m.PartSize == 0 {
		m.PartSize = DefaultPartSize
	}
	if m.Concurrency == 0 {
		m.Concurrency = 1
	}
}

// validate checks the active sub-config and the shared limits.
func (c *Config) validate() error {
	if err := c.validateLimits(); err != nil {
		return err
	}

	switch c.Strategy {
	case StrategyLocal:
		return nil
	case StrategyS3:
		if err := ValidateBucketName(c.S3.Bucket); err != nil {
			return err
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			return fmt.Errorf("%w: s3 access key id and secret must be set together", ErrInvalidConfig)
		}
		if err := ValidateTTL(c.S3.SignedURLTTL); err != nil {
			return err
		}
		return c.S3.Multipart.validate()
	case StrategyR2:
		if err := ValidateBucketName(c.R2.Bucket); err != nil {
			return err
		}
		if c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" {
			return fmt.Errorf("%w: r2 requires account id and credentials", ErrInvalidConfig)
		}
		if err := ValidateTTL(c.R2.SignedURLTTL); err != nil {
			return err
		}
		return c.R2.Multipart.validate()
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
}

// validateLimits checks the settings the facade enforces regardless of strategy.
func (c *Config) validateLimits() error {
	if c.MaxFileSize < MinMaxFileSize || c.MaxFileSize > MaxMaxFileSize {
		return fmt.Errorf("%w: max file size %d outside %d..%d", ErrInvalidConfig, c.MaxFileSize, MinMaxFileSize, MaxMaxFileSize)
	}
	return nil
}

func (m MultipartConfig) validate() error {
	if m.PartSize < MinPartSize {
		return fmt.Errorf("%w: part size %d below minimum %d", ErrInvalidConfig, m.PartSize, MinPartSize)
	}
	if m.Threshold < m.PartSize {
		return fmt.Errorf("%w: multipart threshold %d below part size %d", ErrInvalidConfig, m.Threshold, m.PartSize)
	}
	if m.Concurrency < 1 {
		return fmt.Errorf("%w: part concurrency must be positive", ErrInvalidConfig)
	}
	return nil
}

// signedURLTTL returns the configured default TTL of the active strategy.
func (c *Config) signedURLTTL() time.Duration {
	switch c.Strategy {
	case StrategyR2:
		return time.Duration(c.R2.SignedURLTTL) * time.Second
	default:
		return time.Duration(c.S3.SignedURLTTL) * time.Second
	}
}

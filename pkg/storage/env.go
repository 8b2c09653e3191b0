package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envConfig mirrors the environment variables understood by LoadConfig.
type envConfig struct {
	Strategy     string   `env:"STORAGE_STRATEGY"`
	AppEnv       string   `env:"APP_ENV" envDefault:"development"`
	Dir          string   `env:"STORAGE_DIR" envDefault:"./uploads"`
	BaseURL      string   `env:"STORAGE_BASE_URL" envDefault:"/uploads"`
	AllowedTypes []string `env:"STORAGE_ALLOWED_TYPES" envSeparator:"," envDefault:"*"`
	MaxFileSize  int64    `env:"STORAGE_MAX_FILE_SIZE" envDefault:"52428800"`

	MultipartThreshold int64 `env:"STORAGE_MULTIPART_THRESHOLD" envDefault:"104857600"`
	PartSize           int64 `env:"STORAGE_PART_SIZE" envDefault:"10485760"`
	PartConcurrency    int   `env:"STORAGE_PART_CONCURRENCY" envDefault:"1"`

	S3Bucket         string `env:"AWS_S3_BUCKET"`
	S3Region         string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Endpoint       string `env:"AWS_S3_ENDPOINT"`
	S3AccessKeyID    string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"AWS_SECRET_ACCESS_KEY"`
	S3CDNURL         string `env:"AWS_S3_CDN_URL"`
	S3SignedURLTTL   int64  `env:"AWS_S3_SIGNED_URL_TTL" envDefault:"3600"`
	S3ForcePathStyle bool   `env:"AWS_S3_FORCE_PATH_STYLE"`

	R2Bucket       string `env:"R2_BUCKET"`
	R2AccountID    string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID  string `env:"R2_ACCESS_KEY_ID"`
	R2SecretKey    string `env:"R2_SECRET_ACCESS_KEY"`
	R2CDNURL       string `env:"R2_CDN_URL"`
	R2SignedURLTTL int64  `env:"R2_SIGNED_URL_TTL" envDefault:"3600"`
}

// LoadConfig reads a .env file from the working directory when present,
// then resolves Config from the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: load .env: %v", ErrInvalidConfig, err)
	}

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return ec.resolve()
}

// LoadConfigFromEnv resolves Config from the given variables only.
func LoadConfigFromEnv(vars map[string]string) (Config, error) {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return ec.resolve()
}

// SelectStrategy applies the selection priority:
// explicit override, then R2 bucket, then S3 bucket or endpoint, then local.
func SelectStrategy(override, r2Bucket, s3Bucket, s3Endpoint string) string {
	switch {
	case override != "":
		return strings.ToLower(strings.TrimSpace(override))
	case r2Bucket != "":
		return StrategyR2
	case s3Bucket != "" || s3Endpoint != "":
		return StrategyS3
	default:
		return StrategyLocal
	}
}

func (ec envConfig) resolve() (Config, error) {
	mp := MultipartConfig{
		Threshold:   ec.MultipartThreshold,
		PartSize:    ec.PartSize,
		Concurrency: ec.PartConcurrency,
	}

	cfg := Config{
		Strategy:     SelectStrategy(ec.Strategy, ec.R2Bucket, ec.S3Bucket, ec.S3Endpoint),
		Environment:  Environment(strings.ToLower(ec.AppEnv)),
		MaxFileSize:  ec.MaxFileSize,
		AllowedTypes: trimAll(ec.AllowedTypes),
		Local: LocalConfig{
			Dir:     ec.Dir,
			BaseURL: ec.BaseURL,
		},
		S3: S3Config{
			Bucket:          ec.S3Bucket,
			Region:          ec.S3Region,
			Endpoint:        ec.S3Endpoint,
			AccessKeyID:     ec.S3AccessKeyID,
			SecretAccessKey: ec.S3SecretKey,
			CDNURL:          ec.S3CDNURL,
			SignedURLTTL:    ec.S3SignedURLTTL,
			ForcePathStyle:  ec.S3ForcePathStyle,
			Multipart:       mp,
		},
		R2: R2Config{
			Bucket:          ec.R2Bucket,
			AccountID:       ec.R2AccountID,
			AccessKeyID:     ec.R2AccessKeyID,
			SecretAccessKey: ec.R2SecretKey,
			CDNURL:          ec.R2CDNURL,
			SignedURLTTL:    ec.R2SignedURLTTL,
			Multipart:       mp,
		},
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

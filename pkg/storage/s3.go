package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by the s3 and r2 strategies.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Presigner issues pre-signed GET requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage implements Strategy using S3-compatible object storage.
// The SDK client is created on first use.
type S3Storage struct {
	connectFn func(ctx context.Context) (S3API, Presigner, error)
	client    S3API
	presigner Presigner
	cfg       S3Config
	name      string

	mu        sync.Mutex
	connected bool
	closed    bool
}

// NewS3 creates an S3-compatible strategy.
func NewS3(cfg S3Config) *S3Storage {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	cfg.Multipart.applyDefaults()

	s := &S3Storage{cfg: cfg, name: StrategyS3}
	s.connectFn = s.dial
	return s
}

// withClient makes the strategy use a prebuilt client instead of dialing.
func (s *S3Storage) withClient(client S3API, presigner Presigner) *S3Storage {
	s.connectFn = func(context.Context) (S3API, Presigner, error) {
		return client, presigner, nil
	}
	return s
}

// dial builds the SDK client. Static credentials are used when configured;
// otherwise the AWS default chain (env, shared config, IAM role) applies.
func (s *S3Storage) dial(ctx context.Context) (S3API, Presigner, error) {
	clientOpts := func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
		}
		o.UsePathStyle = s.cfg.ForcePathStyle
		if s.name == StrategyR2 {
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	}

	var client *s3.Client
	if s.cfg.AccessKeyID != "" && s.cfg.SecretAccessKey != "" {
		client = s3.New(s3.Options{
			Region: s.cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				s.cfg.AccessKeyID,
				s.cfg.SecretAccessKey,
				"",
			),
		}, clientOpts)
	} else {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(s.cfg.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: load AWS config: %v", ErrBackendUnavailable, err)
		}
		client = s3.NewFromConfig(awsCfg, clientOpts)
	}

	return client, s3.NewPresignClient(client), nil
}

// connect returns the client, creating it at most once.
func (s *S3Storage) connect(ctx context.Context) (S3API, Presigner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, fmt.Errorf("%w: strategy disconnected", ErrBackendUnavailable)
	}
	if s.connected {
		return s.client, s.presigner, nil
	}

	client, presigner, err := s.connectFn(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.client, s.presigner, s.connected = client, presigner, true
	return client, presigner, nil
}

// Name implements Strategy.
func (s *S3Storage) Name() string { return s.name }

// Put implements Strategy. Payloads at or above the multipart threshold are uploaded in parts.
func (s *S3Storage) Put(ctx context.Context, key string, data []byte, opts PutOptions) (*PutResult, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	if int64(len(data)) >= s.cfg.Multipart.Threshold {
		return s.putMultipart(ctx, client, key, data, opts)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(opts.ContentType),
		Metadata:      opts.Metadata,
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if !opts.Expires.IsZero() {
		input.Expires = aws.Time(opts.Expires)
	}

	output, err := client.PutObject(ctx, input)
	if err != nil {
		return nil, wrapS3Error(err, ErrBackendUnavailable)
	}
	opts.reportProgress(100)

	return &PutResult{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: opts.ContentType,
		ETag:        trimETag(output.ETag),
	}, nil
}

// Get implements Strategy.
func (s *S3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapS3Error(err, ErrBackendUnavailable)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, wrapS3Error(err, ErrBackendUnavailable)
	}
	return data, nil
}

// Delete implements Strategy.
// S3 deletes are silent for missing keys, so existence is checked first.
func (s *S3Storage) Delete(ctx context.Context, key string) (bool, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return false, err
	}

	exists, err := s.head(ctx, client, key)
	if err != nil || !exists {
		return false, err
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, wrapS3Error(err, ErrBackendUnavailable)
	}
	return true, nil
}

// List implements Strategy, following continuation tokens until exhausted.
func (s *S3Storage) List(ctx context.Context, prefix string) ([]StorageFile, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.cfg.Bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	files := []StorageFile{}
	paginator := s3.NewListObjectsV2Paginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapS3Error(err, ErrBackendUnavailable)
		}
		for _, obj := range page.Contents {
			f := StorageFile{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: trimETag(obj.ETag),
			}
			if obj.LastModified != nil {
				f.LastModified = *obj.LastModified
			}
			files = append(files, f)
		}
	}
	return files, nil
}

// URL implements Strategy.
// Generates the appropriate URL format based on configuration:
// - CDNURL: uses the provided base URL
// - Custom endpoint: path-style or virtual-hosted-style based on ForcePathStyle
// - AWS S3: standard AWS URL format
func (s *S3Storage) URL(key string) string {
	if s.cfg.CDNURL != "" {
		return strings.TrimSuffix(s.cfg.CDNURL, "/") + "/" + key
	}

	if s.cfg.Endpoint != "" {
		endpoint := strings.TrimSuffix(s.cfg.Endpoint, "/")
		protocol := "https://"
		if after, ok := strings.CutPrefix(endpoint, "http://"); ok {
			protocol = "http://"
			endpoint = after
		} else if after, ok := strings.CutPrefix(endpoint, "https://"); ok {
			endpoint = after
		}

		if s.cfg.ForcePathStyle {
			return fmt.Sprintf("%s%s/%s/%s", protocol, endpoint, s.cfg.Bucket, key)
		}
		return fmt.Sprintf("%s%s.%s/%s", protocol, s.cfg.Bucket, endpoint, key)
	}

	if s.cfg.ForcePathStyle {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", s.cfg.Region, s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// SignedURL implements Signer with a pre-signed GET request.
func (s *S3Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	_, presigner, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	if presigner == nil {
		return "", fmt.Errorf("%w: no presigner configured", ErrCapabilityUnsupported)
	}

	result, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = ttl
	})
	if err != nil {
		return "", wrapS3Error(err, ErrBackendUnavailable)
	}
	return result.URL, nil
}

// Exists implements Strategy.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return false, err
	}
	return s.head(ctx, client, key)
}

func (s *S3Storage) head(ctx context.Context, client S3API, key string) (bool, error) {
	_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	err = wrapS3Error(err, ErrBackendUnavailable)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Copy implements Copier with a server-side CopyObject.
func (s *S3Storage) Copy(ctx context.Context, srcKey, dstKey string) error {
	client, _, err := s.connect(ctx)
	if err != nil {
		return err
	}

	_, err = client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.cfg.Bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(s.cfg.Bucket, srcKey)),
	})
	if err != nil {
		return wrapS3Error(err, ErrBackendUnavailable)
	}
	return nil
}

// Connected implements Strategy.
func (s *S3Storage) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Disconnect implements Strategy. The SDK keeps no persistent connection,
// so this drops the client and refuses further calls.
func (s *S3Storage) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client, s.presigner = nil, nil
	s.connected = false
	s.closed = true
	return nil
}

// copySource builds the URL-encoded "bucket/key" value for CopyObject.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

var (
	_ Strategy = (*S3Storage)(nil)
	_ Signer   = (*S3Storage)(nil)
	_ Copier   = (*S3Storage)(nil)
)

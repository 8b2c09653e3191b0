package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

// abortTimeout bounds the abort call, which runs even after the caller's context is cancelled.
const abortTimeout = 30 * time.Second

// uploadState is a multipart session state.
type uploadState int

const (
	stateCreated uploadState = iota
	statePartsUploading
	stateCompleting
	stateCompleted
	stateAborting
	stateAborted
)

func (s uploadState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case statePartsUploading:
		return "parts_uploading"
	case stateCompleting:
		return "completing"
	case stateCompleted:
		return "completed"
	case stateAborting:
		return "aborting"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transition is allowed.
func (s uploadState) terminal() bool {
	return s == stateCompleted || s == stateAborted
}

var errInvalidTransition = errors.New("storage: invalid multipart state transition")

// completedPart is a part acknowledged by the backend.
type completedPart struct {
	etag   string
	number int32
}

// multipartSession is owned by a single putMultipart call and never shared outside it.
type multipartSession struct {
	key           string
	uploadID      string
	parts         []completedPart // index = part number - 1
	bytesUploaded int64
	totalBytes    int64
	state         uploadState

	mu sync.Mutex // guards parts and bytesUploaded while parts are in flight
}

// transition moves the session to next, rejecting moves the state machine does not allow.
func (s *multipartSession) transition(next uploadState) error {
	ok := false
	switch next {
	case statePartsUploading:
		ok = s.state == stateCreated
	case stateCompleting:
		ok = s.state == statePartsUploading
	case stateCompleted:
		ok = s.state == stateCompleting
	case stateAborting:
		ok = !s.state.terminal() && s.state != stateAborting
	case stateAborted:
		ok = s.state == stateAborting
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", errInvalidTransition, s.state, next)
	}
	s.state = next
	return nil
}

// recordPart stores the tag for a finished part and returns the progress percentage.
func (s *multipartSession) recordPart(number int32, etag string, size int64) int {
	s.parts[number-1] = completedPart{number: number, etag: etag}
	s.bytesUploaded += size
	return progressPercent(s.bytesUploaded, s.totalBytes)
}

// completedParts returns the parts in ascending order, failing if any is missing.
func (s *multipartSession) completedParts() ([]types.CompletedPart, error) {
	out := make([]types.CompletedPart, 0, len(s.parts))
	for i, p := range s.parts {
		if p.etag == "" {
			return nil, fmt.Errorf("part %d was not acknowledged", i+1)
		}
		out = append(out, types.CompletedPart{
			ETag:       aws.String(p.etag),
			PartNumber: aws.Int32(p.number),
		})
	}
	return out, nil
}

// partCount returns ceil(size/partSize).
func partCount(size, partSize int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + partSize - 1) / partSize)
}

// progressPercent reports upload progress, reserving 100 for completion.
func progressPercent(uploaded, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(uploaded) / float64(total) * 100))
	return min(pct, 99)
}

// putMultipart uploads data as a multipart object.
// Any failure after the upload is created triggers an abort before returning.
func (s *S3Storage) putMultipart(ctx context.Context, client S3API, key string, data []byte, opts PutOptions) (*PutResult, error) {
	sess, err := s.createUpload(ctx, client, key, int64(len(data)), opts)
	if err != nil {
		return nil, err
	}

	if err := s.uploadParts(ctx, client, sess, data, opts); err != nil {
		return nil, s.abortUpload(ctx, client, sess, err)
	}

	etag, err := s.completeUpload(ctx, client, sess)
	if err != nil {
		return nil, s.abortUpload(ctx, client, sess, err)
	}
	opts.reportProgress(100)

	return &PutResult{
		Key:         key,
		Size:        sess.totalBytes,
		ContentType: opts.ContentType,
		ETag:        etag,
	}, nil
}

func (s *S3Storage) createUpload(ctx context.Context, client S3API, key string, size int64, opts PutOptions) (*multipartSession, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(opts.ContentType),
		Metadata:    opts.Metadata,
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if !opts.Expires.IsZero() {
		input.Expires = aws.Time(opts.Expires)
	}

	output, err := client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, wrapS3Error(err, ErrBackendUnavailable)
	}
	if aws.ToString(output.UploadId) == "" {
		return nil, fmt.Errorf("%w: backend returned no upload id", ErrBackendUnavailable)
	}

	return &multipartSession{
		key:        key,
		uploadID:   aws.ToString(output.UploadId),
		parts:      make([]completedPart, partCount(size, s.cfg.Multipart.PartSize)),
		totalBytes: size,
		state:      stateCreated,
	}, nil
}

// uploadParts sends parts in ascending order with at most Concurrency in flight.
// With the default concurrency of 1 each part is acknowledged before the next starts.
func (s *S3Storage) uploadParts(ctx context.Context, client S3API, sess *multipartSession, data []byte, opts PutOptions) error {
	if err := sess.transition(statePartsUploading); err != nil {
		return err
	}

	partSize := s.cfg.Multipart.PartSize
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Multipart.Concurrency)

	for i := range sess.parts {
		if gctx.Err() != nil {
			break
		}

		start := int64(i) * partSize
		end := min(start+partSize, sess.totalBytes)
		chunk := data[start:end]
		number := int32(i + 1)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			output, err := client.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(s.cfg.Bucket),
				Key:           aws.String(sess.key),
				UploadId:      aws.String(sess.uploadID),
				PartNumber:    aws.Int32(number),
				Body:          bytes.NewReader(chunk),
				ContentLength: aws.Int64(int64(len(chunk))),
			})
			if err != nil {
				return fmt.Errorf("upload part %d: %w", number, err)
			}

			sess.mu.Lock()
			defer sess.mu.Unlock()
			opts.reportProgress(sess.recordPart(number, aws.ToString(output.ETag), int64(len(chunk))))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, ctxErr)
		}
		return wrapS3Error(err, ErrBackendUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

func (s *S3Storage) completeUpload(ctx context.Context, client S3API, sess *multipartSession) (string, error) {
	if err := sess.transition(stateCompleting); err != nil {
		return "", err
	}

	parts, err := sess.completedParts()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	output, err := client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.cfg.Bucket),
		Key:             aws.String(sess.key),
		UploadId:        aws.String(sess.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return "", wrapS3Error(err, ErrBackendUnavailable)
	}

	if err := sess.transition(stateCompleted); err != nil {
		return "", err
	}
	return trimETag(output.ETag), nil
}

// abortUpload frees backend-side parts and returns a *MultipartError carrying cause.
// The abort runs on a context detached from cancellation so a cancelled upload is still cleaned up.
func (s *S3Storage) abortUpload(ctx context.Context, client S3API, sess *multipartSession, cause error) error {
	merr := &MultipartError{
		Err:      cause,
		Key:      sess.key,
		UploadID: sess.uploadID,
	}
	if err := sess.transition(stateAborting); err != nil {
		merr.AbortErr = err
		return merr
	}

	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	_, err := client.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.cfg.Bucket),
		Key:      aws.String(sess.key),
		UploadId: aws.String(sess.uploadID),
	})
	if err != nil {
		merr.AbortErr = wrapS3Error(err, ErrBackendUnavailable)
	}
	_ = sess.transition(stateAborted)
	return merr
}

package storage

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // test ETags only
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	modified    time.Time
	metadata    map[string]string
	contentType string
	etag        string
	data        []byte
	size        int64
}

type fakeUpload struct {
	parts       map[int32][]byte
	partSizes   map[int32]int64
	key         string
	contentType string
}

// FakeS3 is an in-memory S3API for tests. Exported for the storage_test package.
type FakeS3 struct {
	objects map[string]fakeObject
	uploads map[string]*fakeUpload
	calls   map[string]int

	// PartOrder records UploadPart part numbers in call order.
	PartOrder []int32
	// PartSizes records ContentLength of every uploaded part.
	PartSizes []int64
	// Aborted lists aborted upload ids.
	Aborted []string

	// FailPart makes UploadPart fail for that part number.
	FailPart int32
	// CancelOnPart invokes Cancel before handling that part number.
	CancelOnPart int32
	Cancel       context.CancelFunc

	// PageSize bounds ListObjectsV2 pages (default 1000).
	PageSize int

	// DiscardData keeps only sizes of multipart uploads.
	DiscardData bool

	FailComplete bool
	FailAbort    bool

	nextUpload int
	mu         sync.Mutex
}

// NewFakeS3 returns an empty in-memory bucket.
func NewFakeS3() *FakeS3 {
	return &FakeS3{
		objects: map[string]fakeObject{},
		uploads: map[string]*fakeUpload{},
		calls:   map[string]int{},
	}
}

// Calls returns how often op was invoked, or the total when op is "".
func (f *FakeS3) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if op != "" {
		return f.calls[op]
	}
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// OpenUploads returns the number of multipart uploads neither completed nor aborted.
func (f *FakeS3) OpenUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// Object returns the stored object size and content type.
func (f *FakeS3) Object(key string) (size int64, contentType string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj.size, obj.contentType, ok
}

func (f *FakeS3) record(op string) {
	f.calls[op]++
}

func etagOf(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // test ETags only
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func notFound() error {
	return &mockAPIError{code: "NotFound", message: "not found"}
}

func (f *FakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutObject")

	etag := etagOf(data)
	f.objects[aws.ToString(in.Key)] = fakeObject{
		data:        data,
		size:        int64(len(data)),
		contentType: aws.ToString(in.ContentType),
		metadata:    in.Metadata,
		etag:        etag,
		modified:    time.Now(),
	}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *FakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetObject")

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(obj.size),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(obj.etag),
	}, nil
}

func (f *FakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HeadObject")

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(obj.size),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(obj.etag),
	}, nil
}

func (f *FakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteObject")

	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *FakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CopyObject")

	_, escaped, _ := strings.Cut(aws.ToString(in.CopySource), "/")
	srcKey, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, err
	}
	obj, ok := f.objects[srcKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	obj.modified = time.Now()
	f.objects[aws.ToString(in.Key)] = obj
	return &s3.CopyObjectOutput{}, nil
}

func (f *FakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListObjectsV2")

	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("bad continuation token %q", tok)
		}
		start = n
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	end := min(start+pageSize, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		obj := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(obj.size),
			ETag:         aws.String(obj.etag),
			LastModified: aws.Time(obj.modified),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *FakeS3) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateMultipartUpload")

	f.nextUpload++
	id := fmt.Sprintf("upload-%d", f.nextUpload)
	f.uploads[id] = &fakeUpload{
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		parts:       map[int32][]byte{},
		partSizes:   map[int32]int64{},
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *FakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	number := aws.ToInt32(in.PartNumber)

	f.mu.Lock()
	f.record("UploadPart")
	f.PartOrder = append(f.PartOrder, number)
	f.PartSizes = append(f.PartSizes, aws.ToInt64(in.ContentLength))
	upload, ok := f.uploads[aws.ToString(in.UploadId)]
	failPart, cancelOn, cancel, discard := f.FailPart, f.CancelOnPart, f.Cancel, f.DiscardData
	f.mu.Unlock()

	if !ok {
		return nil, &mockAPIError{code: "NoSuchUpload", message: "unknown upload"}
	}
	if number == cancelOn && cancel != nil {
		cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if number == failPart {
		return nil, &mockAPIError{code: "InternalError", message: fmt.Sprintf("part %d rejected", number)}
	}

	var data []byte
	if discard {
		if _, err := io.Copy(io.Discard, in.Body); err != nil {
			return nil, err
		}
	} else {
		var err error
		if data, err = io.ReadAll(in.Body); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	upload.parts[number] = data
	upload.partSizes[number] = aws.ToInt64(in.ContentLength)
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf(`"etag-%d"`, number))}, nil
}

func (f *FakeS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CompleteMultipartUpload")

	if f.FailComplete {
		return nil, &mockAPIError{code: "InternalError", message: "complete rejected"}
	}

	id := aws.ToString(in.UploadId)
	upload, ok := f.uploads[id]
	if !ok {
		return nil, &mockAPIError{code: "NoSuchUpload", message: "unknown upload"}
	}

	var (
		buf  bytes.Buffer
		size int64
	)
	for i, p := range in.MultipartUpload.Parts {
		n := aws.ToInt32(p.PartNumber)
		if n != int32(i+1) {
			return nil, &mockAPIError{code: "InvalidPartOrder", message: "parts out of order"}
		}
		if aws.ToString(p.ETag) != fmt.Sprintf(`"etag-%d"`, n) {
			return nil, &mockAPIError{code: "InvalidPart", message: "etag mismatch"}
		}
		buf.Write(upload.parts[n])
		size += upload.partSizes[n]
	}

	etag := fmt.Sprintf(`"multipart-%d"`, len(in.MultipartUpload.Parts))
	f.objects[upload.key] = fakeObject{
		data:        buf.Bytes(),
		size:        size,
		contentType: upload.contentType,
		etag:        etag,
		modified:    time.Now(),
	}
	delete(f.uploads, id)
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(etag)}, nil
}

func (f *FakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AbortMultipartUpload")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.FailAbort {
		return nil, &mockAPIError{code: "ServiceUnavailable", message: "abort rejected"}
	}
	id := aws.ToString(in.UploadId)
	f.Aborted = append(f.Aborted, id)
	delete(f.uploads, id)
	return &s3.AbortMultipartUploadOutput{}, nil
}

// FakePresigner signs URLs without credentials.
type FakePresigner struct{}

func (FakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var po s3.PresignOptions
	for _, fn := range optFns {
		fn(&po)
	}
	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("https://signed.example/%s/%s?X-Amz-Expires=%d", aws.ToString(in.Bucket), aws.ToString(in.Key), int(po.Expires.Seconds())),
		Method: "GET",
	}, nil
}

var (
	_ S3API     = (*FakeS3)(nil)
	_ Presigner = FakePresigner{}
)

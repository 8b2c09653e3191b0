// Package storage provides a single facade over local, S3-compatible and
// Cloudflare R2 file storage.
//
// The facade validates every key and payload before it reaches a backend,
// detects content types from the key extension or magic bytes, and uploads
// large objects to S3 and R2 in parts with progress reporting and
// abort-on-failure.
//
// # Basic Usage
//
//	cfg, err := storage.LoadConfig() // .env + environment
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store, err := storage.New(cfg, storage.WithLogger(log))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Disconnect(ctx)
//
//	res, err := store.Put(ctx, "avatars/42.png", storage.Bytes(png),
//		storage.WithCacheControl("public, max-age=86400"),
//	)
//
//	data, err := store.Get(ctx, res.Key)
//
// # Strategy Selection
//
// STORAGE_STRATEGY wins when set. Otherwise R2 is chosen when R2_BUCKET is
// present, then S3 when AWS_S3_BUCKET or AWS_S3_ENDPOINT is present, then the
// local filesystem.
//
// # Capabilities
//
// Every strategy supports Put, Get, Delete, List, URL and Exists. S3 and R2
// also implement Signer and Copier. SignedURL on the local strategy returns an
// error wrapping ErrCapabilityUnsupported; Copy falls back to Get and Put.
//
// # Errors
//
// Facade errors are *OpError values that unwrap to one of the sentinel errors:
//
//	if _, err := store.Get(ctx, key); errors.Is(err, storage.ErrNotFound) {
//		// handle missing file
//	}
//
// Validation failures also unwrap to *ValidationError, whose Details carry
// the offending values (for example "limit" and "size" for ErrPayloadTooLarge).
// A failed multipart upload unwraps to *MultipartError with the upload id.
//
// # Multipart Uploads
//
// Payloads at or above MultipartConfig.Threshold (default 100MB) are sent to
// S3 and R2 in PartSize chunks (default 10MB, minimum 5MB). WithProgress
// receives the percentage after every part, capped at 99 until the upload
// completes. Any failure aborts the upload so no partial object remains.
package storage

// Package blob defines the blob store contract consumed by the intake and
// resize workflows. Implementations wrap an object storage backend; the
// workflows only see (bucket, name) keys and addresses.
package blob

import (
	"context"
	"io"
)

// Store is the byte-stream storage contract.
//
// Upload overwrites on name collision (last writer wins) and returns the
// blob's canonical address. Download fetches a blob into a process-local
// scratch file and returns its path; the caller owns the file's lifetime.
type Store interface {
	// EnsureBucket creates the named bucket when it does not exist yet.
	// It is idempotent.
	EnsureBucket(ctx context.Context, bucket string) error

	// Upload stores size bytes from r under (bucket, name) and returns the
	// blob's address.
	Upload(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (string, error)

	// Download fetches (bucket, name) into a scratch file and returns the
	// local path. Absent blobs are reported as a not-found fault.
	Download(ctx context.Context, bucket, name string) (string, error)

	// Remove deletes (bucket, name). Removing an absent blob is not an error.
	Remove(ctx context.Context, bucket, name string) error
}

// Package minio implements the blob store contract on MinIO / S3-compatible
// object storage.
package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Freeman-md/funcify/internal/blob"
	"github.com/Freeman-md/funcify/internal/fault"
)

var _ blob.Store = (*Store)(nil)

// Config holds the connection and layout settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// ScratchDir is where Download places fetched blobs. Empty means the
	// system temp directory.
	ScratchDir string
}

// Store is a minio-backed blob.Store.
type Store struct {
	client     *minio.Client
	scratchDir string
}

// New connects to the object store endpoint.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}
	return &Store{client: client, scratchDir: cfg.ScratchDir}, nil
}

// EnsureBucket creates the bucket when it does not exist. Safe to call
// concurrently; a lost create race is treated as success.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return fault.Validation("bucket name cannot be empty")
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fault.Storage(fmt.Sprintf("check bucket %q", bucket), err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
			return nil
		}
		return fault.Storage(fmt.Sprintf("create bucket %q", bucket), err)
	}
	return nil
}

// Upload stores the stream under (bucket, name), overwriting any existing
// object, and returns the blob's canonical address.
func (s *Store) Upload(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (string, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, bucket, name, r, size, opts); err != nil {
		return "", fault.Storage(fmt.Sprintf("upload %s/%s", bucket, name), err)
	}
	return s.Address(bucket, name), nil
}

// Download fetches (bucket, name) into a fresh scratch directory, preserving
// the blob's base name, and returns the local path.
func (s *Store) Download(ctx context.Context, bucket, name string) (string, error) {
	dir, err := os.MkdirTemp(s.scratchDir, "funcify-blob-*")
	if err != nil {
		return "", fault.Storage("create scratch dir", err)
	}

	localPath := filepath.Join(dir, filepath.Base(name))
	if err := s.client.FGetObject(ctx, bucket, name, localPath, minio.GetObjectOptions{}); err != nil {
		_ = os.RemoveAll(dir)
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return "", fault.NotFoundf("blob %s/%s not found", bucket, name)
		}
		return "", fault.Storage(fmt.Sprintf("download %s/%s", bucket, name), err)
	}
	return localPath, nil
}

// Remove deletes (bucket, name). A missing object is not an error.
func (s *Store) Remove(ctx context.Context, bucket, name string) error {
	err := s.client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fault.Storage(fmt.Sprintf("remove %s/%s", bucket, name), err)
	}
	return nil
}

// Address returns the canonical URL for (bucket, name).
func (s *Store) Address(bucket, name string) string {
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), bucket, name)
}

// Ping verifies the endpoint is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, "list buckets")
	}
	return nil
}

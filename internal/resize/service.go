// Package resize implements the asynchronous image-processing leg: download
// the raw upload, halve its dimensions, publish the result, and patch the
// owning product record.
package resize

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Freeman-md/funcify/internal/blob"
	"github.com/Freeman-md/funcify/internal/domain/product"
	"github.com/Freeman-md/funcify/internal/fault"
)

// resizedPrefix derives the scratch name of the resized variant. The upload
// reuses the original blob name, so processed and unprocessed buckets hold
// same-named blobs.
const resizedPrefix = "resized_"

// ImageProcessor turns raw image bytes into resized image bytes. Decoding
// and encoding are backend concerns; the workflow only picks dimensions.
type ImageProcessor interface {
	// Size reports the pixel dimensions of an encoded image.
	Size(buf []byte) (width, height int, err error)
	// Resize re-encodes the image at the given dimensions.
	Resize(buf []byte, width, height int) ([]byte, error)
}

// Config holds the fixed source layout for resize operations.
type Config struct {
	// UnprocessedBucket is where raw uploads are downloaded from.
	UnprocessedBucket string
}

// Service performs the resize workflow.
type Service struct {
	blobs     blob.Store
	products  product.Repository
	processor ImageProcessor
	cfg       Config
}

// NewService constructs the resize service.
func NewService(blobs blob.Store, products product.Repository, processor ImageProcessor, cfg Config) *Service {
	return &Service{
		blobs:     blobs,
		products:  products,
		processor: processor,
		cfg:       cfg,
	}
}

// Resize downloads blobName from the unprocessed bucket, halves both
// dimensions, and uploads the result to processedBucket under the same name.
// When both itemID and partitionKey are non-empty, the product's processed
// image address is patched. Empty itemID or partitionKey selects standalone
// mode: the patch step is skipped.
//
// Scratch files are removed on every exit path, success or failure. A
// failure at any step aborts the call and propagates to the caller.
func (s *Service) Resize(ctx context.Context, processedBucket, itemID, partitionKey, blobName string) (string, error) {
	if strings.TrimSpace(processedBucket) == "" {
		return "", fault.Validation("processed container name cannot be empty")
	}
	if strings.TrimSpace(blobName) == "" {
		return "", fault.Validation("blob name cannot be empty")
	}

	downloadPath, err := s.blobs.Download(ctx, s.cfg.UnprocessedBucket, blobName)
	if err != nil {
		return "", err
	}
	defer removeScratch(ctx, downloadPath)

	resizedPath, err := s.resizeFile(downloadPath)
	if err != nil {
		return "", err
	}
	defer removeScratch(ctx, resizedPath)

	address, err := s.uploadResized(ctx, processedBucket, blobName, resizedPath)
	if err != nil {
		return "", err
	}

	if itemID != "" && partitionKey != "" {
		patch := product.NewPatch().WithProcessedImageURL(address)
		if _, err := s.products.Patch(ctx, itemID, partitionKey, patch); err != nil {
			return "", err
		}
	}

	return address, nil
}

// resizeFile decodes the downloaded image, halves both dimensions (integer
// division, fixed policy), and writes the result next to the original with
// the resized prefix.
func (s *Service) resizeFile(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read downloaded image")
	}

	width, height, err := s.processor.Size(buf)
	if err != nil {
		return "", errors.Wrap(err, "inspect image")
	}

	resized, err := s.processor.Resize(buf, width/2, height/2)
	if err != nil {
		return "", errors.Wrap(err, "resize image")
	}

	resizedPath := filepath.Join(filepath.Dir(path), resizedPrefix+filepath.Base(path))
	if err := os.WriteFile(resizedPath, resized, 0o600); err != nil {
		return "", errors.Wrap(err, "write resized image")
	}
	return resizedPath, nil
}

// uploadResized re-opens the resized scratch file and streams it to the
// processed bucket under the original blob name.
func (s *Service) uploadResized(ctx context.Context, bucket, blobName, path string) (string, error) {
	if err := s.blobs.EnsureBucket(ctx, bucket); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open resized image")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, "stat resized image")
	}

	contentType := detectContentType(path)
	return s.blobs.Upload(ctx, bucket, blobName, f, info.Size(), contentType)
}

// removeScratch deletes a scratch file, best effort. A missing file is fine;
// anything else is only worth a log line.
func removeScratch(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zctx.From(ctx).Warn("Failed to remove scratch file",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func detectContentType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	return http.DetectContentType(head[:n])
}

// Package intake implements the product-intake workflows: validate and
// persist products, store uploaded images, and hand off resize work to the
// queue.
package intake

import (
	"context"
	"io"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Freeman-md/funcify/internal/blob"
	"github.com/Freeman-md/funcify/internal/domain/imagetask"
	"github.com/Freeman-md/funcify/internal/domain/product"
	"github.com/Freeman-md/funcify/internal/fault"
)

// Config holds the fixed storage layout the workflows write to.
type Config struct {
	// UnprocessedBucket receives raw image uploads.
	UnprocessedBucket string
	// PartitionKey is the document partition products are filed under.
	PartitionKey string
}

// Service wires the intake workflows to their storage and queue backends.
type Service struct {
	products product.Repository
	blobs    blob.Store
	queue    imagetask.Queue
	cfg      Config
}

// NewService constructs the intake service.
func NewService(products product.Repository, blobs blob.Store, queue imagetask.Queue, cfg Config) *Service {
	if cfg.PartitionKey == "" {
		cfg.PartitionKey = product.DefaultPartitionKey
	}
	return &Service{
		products: products,
		blobs:    blobs,
		queue:    queue,
		cfg:      cfg,
	}
}

// CreateProduct validates and persists a new product. Validation failures
// never reach the store.
func (s *Service) CreateProduct(ctx context.Context, p *product.Product) (*product.Product, error) {
	if err := product.Validate(p); err != nil {
		return nil, err
	}
	return s.products.Create(ctx, p)
}

// UpdateProduct validates and fully replaces an existing product record.
func (s *Service) UpdateProduct(ctx context.Context, p *product.Product) (*product.Product, error) {
	if err := product.Validate(p); err != nil {
		return nil, err
	}
	return s.products.Replace(ctx, p)
}

// GetProduct returns the product with the given ID from the configured
// partition.
func (s *Service) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fault.Validation("product ID cannot be empty")
	}
	return s.products.Get(ctx, id, s.cfg.PartitionKey)
}

// UploadImage stores an image stream under (bucket, name), creating the
// bucket when needed, and returns the blob's address. Upload overwrites:
// last writer wins.
func (s *Service) UploadImage(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (string, error) {
	if strings.TrimSpace(bucket) == "" {
		return "", fault.Validation("container name cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return "", fault.Validation("blob name cannot be empty")
	}
	if r == nil {
		return "", fault.Validation("file stream is required")
	}

	if err := s.blobs.EnsureBucket(ctx, bucket); err != nil {
		return "", err
	}
	return s.blobs.Upload(ctx, bucket, name, r, size, contentType)
}

// EnqueueTask submits an opaque message to the task queue. Delivery is
// fire-and-forget from the workflow's perspective.
func (s *Service) EnqueueTask(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return fault.Validation("task message cannot be empty")
	}
	return s.queue.Send(ctx, message)
}

// EnqueueImageProcessing builds and submits the resize task for a freshly
// created product that carries an unprocessed image.
func (s *Service) EnqueueImageProcessing(ctx context.Context, p *product.Product) error {
	msg := imagetask.Message{
		ProductID:           p.ID,
		UnprocessedImageURL: p.UnprocessedImageURL,
		FileName:            p.FileName,
	}
	encoded, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := s.EnqueueTask(ctx, encoded); err != nil {
		return err
	}

	zctx.From(ctx).Info("Enqueued image processing task",
		zap.String("product_id", p.ID),
		zap.String("file_name", p.FileName),
	)
	return nil
}

// Package product defines the product record, its validation rules, and the
// persistence contract used by the intake and resize workflows.
package product

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Freeman-md/funcify/internal/fault"
)

// DefaultPartitionKey is the category every product is filed under unless the
// caller supplies one. It doubles as the store's partition key.
const DefaultPartitionKey = "products"

// Product represents a sellable item. JSON names match the original wire
// format; decoding is case-insensitive, so lowercase payloads are accepted.
type Product struct {
	ID                  string          `json:"id"`
	Name                string          `json:"Name"`
	Price               decimal.Decimal `json:"Price"`
	Quantity            int             `json:"Quantity"`
	Category            string          `json:"Category"`
	FileName            string          `json:"FileName,omitempty"`
	UnprocessedImageURL string          `json:"UnprocessedImageUrl,omitempty"`
	ProcessedImageURL   string          `json:"ProcessedImageUrl,omitempty"`
}

// PartitionKey returns the store routing key for this product.
func (p *Product) PartitionKey() string {
	if p.Category == "" {
		return DefaultPartitionKey
	}
	return p.Category
}

// Validate enforces the persistence invariants. A nil product is a distinct
// parse-level failure; field violations are validation failures.
func Validate(p *Product) error {
	if p == nil {
		return fault.Parse("product is required")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fault.Validation("product ID cannot be empty")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fault.Validation("product name cannot be empty")
	}
	if !p.Price.IsPositive() {
		return fault.Validation("product price must be greater than zero")
	}
	if p.Quantity < 0 {
		return fault.Validation("product quantity cannot be negative")
	}
	return nil
}

// Repository defines persistence operations for products.
//
// Create fails when a record with the same (id, partition key) already
// exists. Replace is a full upsert. Patch applies a partial field update
// built with NewPatch and never touches columns outside the patch.
type Repository interface {
	Create(ctx context.Context, p *Product) (*Product, error)
	Get(ctx context.Context, id, partitionKey string) (*Product, error)
	Replace(ctx context.Context, p *Product) (*Product, error)
	Patch(ctx context.Context, id, partitionKey string, patch Patch) (*Product, error)
}

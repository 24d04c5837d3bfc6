package postgres

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeman-md/funcify/internal/domain/product"
	"github.com/Freeman-md/funcify/internal/fault"
)

var _ product.Repository = (*ProductRepository)(nil)

// pgUniqueViolation is the SQLSTATE for duplicate primary keys.
const pgUniqueViolation = "23505"

// patchColumns maps the closed patch field set to table columns. Field names
// outside this map are rejected, never interpolated.
var patchColumns = map[string]string{
	product.FieldProcessedImageURL:   "processed_image_url",
	product.FieldUnprocessedImageURL: "unprocessed_image_url",
	product.FieldFileName:            "file_name",
	product.FieldQuantity:            "quantity",
}

const productColumns = `id, partition_key, name, price, quantity, category,
	file_name, unprocessed_image_url, processed_image_url`

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product. A duplicate (id, partition key) pair is
// reported as a storage fault carrying a conflict status.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		p.ID, p.PartitionKey(), p.Name, p.Price, p.Quantity, p.PartitionKey(),
		p.FileName, p.UnprocessedImageURL, p.ProcessedImageURL,
	)

	created, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fault.StorageStatus(http.StatusConflict,
				fmt.Sprintf("product %q already exists", p.ID), err)
		}
		return nil, fault.Storage(fmt.Sprintf("create product %q", p.ID), err)
	}
	return created, nil
}

// Get returns the product addressed by (id, partitionKey).
func (r *ProductRepository) Get(ctx context.Context, id, partitionKey string) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND partition_key = $2`,
		id, partitionKey,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("product %q not found", id)
		}
		return nil, fault.Storage(fmt.Sprintf("get product %q", id), err)
	}
	return p, nil
}

// Replace fully overwrites the product record, inserting it when absent.
func (r *ProductRepository) Replace(ctx context.Context, p *product.Product) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id, partition_key) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			category = EXCLUDED.category,
			file_name = EXCLUDED.file_name,
			unprocessed_image_url = EXCLUDED.unprocessed_image_url,
			processed_image_url = EXCLUDED.processed_image_url,
			updated_at = now()
		RETURNING `+productColumns,
		p.ID, p.PartitionKey(), p.Name, p.Price, p.Quantity, p.PartitionKey(),
		p.FileName, p.UnprocessedImageURL, p.ProcessedImageURL,
	)

	replaced, err := scanProduct(row)
	if err != nil {
		return nil, fault.Storage(fmt.Sprintf("replace product %q", p.ID), err)
	}
	return replaced, nil
}

// Patch applies a partial field update to the product addressed by
// (id, partitionKey) and returns the updated record. Columns outside the
// patch are left untouched.
func (r *ProductRepository) Patch(ctx context.Context, id, partitionKey string, patch product.Patch) (*product.Product, error) {
	query, args, err := buildPatchQuery(id, partitionKey, patch)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, query, args...)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("product %q not found", id)
		}
		return nil, fault.Storage(fmt.Sprintf("patch product %q", id), err)
	}
	return p, nil
}

// buildPatchQuery renders the UPDATE statement for a patch. The SET clause
// only ever contains columns from patchColumns; values are always bound.
func buildPatchQuery(id, partitionKey string, patch product.Patch) (string, []any, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return "", nil, fault.Validation("patch cannot be empty")
	}

	var sb strings.Builder
	sb.WriteString("UPDATE products SET ")
	args := make([]any, 0, len(fields)+2)
	for i, f := range fields {
		col, ok := patchColumns[f.Name]
		if !ok {
			return "", nil, fault.Validationf("unknown patch field %q", f.Name)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s = $%d", col, len(args))
	}
	sb.WriteString(", updated_at = now()")

	args = append(args, id, partitionKey)
	fmt.Fprintf(&sb, " WHERE id = $%d AND partition_key = $%d", len(args)-1, len(args))
	sb.WriteString(" RETURNING " + productColumns)

	return sb.String(), args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*product.Product, error) {
	var p product.Product
	var partitionKey string
	err := row.Scan(
		&p.ID, &partitionKey, &p.Name, &p.Price, &p.Quantity, &p.Category,
		&p.FileName, &p.UnprocessedImageURL, &p.ProcessedImageURL,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrops-br/products-func/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ domain.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements domain.ProductRepository on top of a Table
type ProductRepository struct {
	table  Table
	tracer trace.Tracer
	logger *slog.Logger
}

// NewProductRepository creates a product repository backed by table
func NewProductRepository(table Table, tracer trace.Tracer, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		table:  table,
		tracer: tracer,
		logger: logger,
	}
}

// Create stores a new product as a row
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("product.partition_key", product.PartitionKey),
		attribute.String("product.id", product.ID),
	)

	if err := r.table.Insert(ctx, ToRow(*product)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert failed")
		return fmt.Errorf("insert product %s/%s: %w", product.PartitionKey, product.ID, err)
	}

	r.logger.InfoContext(ctx, "Product row inserted",
		slog.String("partition_key", product.PartitionKey),
		slog.String("product_id", product.ID),
	)

	span.SetStatus(codes.Ok, "Product created successfully")
	return nil
}

// List reads the first segment of the table. Continuation tokens are
// not followed, so rows past the first page are not returned.
func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	segment, err := r.table.QuerySegment(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("query products: %w", err)
	}

	products := make([]*domain.Product, len(segment.Rows))
	for i, row := range segment.Rows {
		p := ToProduct(row)
		products[i] = &p
	}

	truncated := segment.Next != nil
	span.SetAttributes(
		attribute.Int("product.count", len(products)),
		attribute.Bool("products.truncated", truncated),
	)

	if truncated {
		r.logger.WarnContext(ctx, "Product listing truncated to the first page",
			slog.Int("count", len(products)),
			slog.String("next_partition_key", segment.Next.NextPartitionKey),
			slog.String("next_row_key", segment.Next.NextRowKey),
		)
	} else {
		r.logger.DebugContext(ctx, "Products retrieved from table",
			slog.Int("count", len(products)),
		)
	}

	span.SetStatus(codes.Ok, "Products retrieved successfully")
	return products, nil
}

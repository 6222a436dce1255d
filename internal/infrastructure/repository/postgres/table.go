// Package postgres keeps product rows in a PostgreSQL table keyed by
// (partition_key, row_key).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mrops-br/products-func/internal/domain"
	"github.com/mrops-br/products-func/internal/infrastructure/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ repository.Table = (*Table)(nil)

// TableName is the table created by the embedded migrations
const TableName = "products"

const uniqueViolation = "23505"

const (
	insertRow = `INSERT INTO products (partition_key, row_key, name, price, qty, is_blocked)
VALUES ($1, $2, $3, $4, $5, $6)`

	selectFirstPage = `SELECT partition_key, row_key, name, price, qty, is_blocked
FROM products
ORDER BY partition_key, row_key
LIMIT $1`

	selectPageFrom = `SELECT partition_key, row_key, name, price, qty, is_blocked
FROM products
WHERE (partition_key, row_key) >= ($1, $2)
ORDER BY partition_key, row_key
LIMIT $3`
)

type record struct {
	PartitionKey string  `db:"partition_key"`
	RowKey       string  `db:"row_key"`
	Name         string  `db:"name"`
	Price        float64 `db:"price"`
	Qty          int32   `db:"qty"`
	IsBlocked    bool    `db:"is_blocked"`
}

// Connect creates a connection pool and pings the database within timeout
func Connect(ctx context.Context, url string, timeout time.Duration) (*pgxpool.Pool, error) {
	poolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(poolCtx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: create connection pool: %w", domain.ErrStorageUnavailable, err)
	}
	if err := pool.Ping(poolCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %w", domain.ErrStorageUnavailable, err)
	}
	return pool, nil
}

// Table is a repository.Table stored in PostgreSQL
type Table struct {
	pool     *pgxpool.Pool
	pageSize int
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewTable creates a table on top of pool. A pageSize of zero or less falls
// back to repository.DefaultPageSize.
func NewTable(pool *pgxpool.Pool, pageSize int, tracer trace.Tracer, logger *slog.Logger) *Table {
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}
	return &Table{
		pool:     pool,
		pageSize: pageSize,
		tracer:   tracer,
		logger:   logger,
	}
}

// Insert adds a row; a primary key violation maps to domain.ErrDuplicateKey
func (t *Table) Insert(ctx context.Context, row repository.Row) error {
	ctx, span := t.tracer.Start(ctx, "postgres.Table.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("table.partition_key", row.PartitionKey),
		attribute.String("table.row_key", row.RowKey),
	)

	_, err := t.pool.Exec(ctx, insertRow, row.PartitionKey, row.RowKey, row.Name, row.Price, row.Qty, row.IsBlocked)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			span.SetStatus(codes.Error, "Row already exists")
			return fmt.Errorf("row %s/%s: %w", row.PartitionKey, row.RowKey, domain.ErrDuplicateKey)
		}
		span.SetStatus(codes.Error, "Insert failed")
		t.logger.ErrorContext(ctx, "Failed to insert row",
			slog.String("partition_key", row.PartitionKey),
			slog.String("row_key", row.RowKey),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: insert row: %w", domain.ErrStorageUnavailable, err)
	}

	span.SetStatus(codes.Ok, "Row inserted")
	return nil
}

// QuerySegment reads one page in key order. One extra row is fetched to
// learn where the next page starts.
func (t *Table) QuerySegment(ctx context.Context, token *repository.ContinuationToken) (repository.Segment, error) {
	ctx, span := t.tracer.Start(ctx, "postgres.Table.QuerySegment")
	defer span.End()

	var (
		rows pgx.Rows
		err  error
	)
	if token == nil {
		rows, err = t.pool.Query(ctx, selectFirstPage, t.pageSize+1)
	} else {
		rows, err = t.pool.Query(ctx, selectPageFrom, token.NextPartitionKey, token.NextRowKey, t.pageSize+1)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return repository.Segment{}, fmt.Errorf("%w: query rows: %w", domain.ErrStorageUnavailable, err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[record])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Scan failed")
		return repository.Segment{}, fmt.Errorf("%w: scan rows: %w", domain.ErrStorageUnavailable, err)
	}

	var segment repository.Segment
	if len(records) > t.pageSize {
		next := records[t.pageSize]
		segment.Next = &repository.ContinuationToken{
			NextPartitionKey: next.PartitionKey,
			NextRowKey:       next.RowKey,
		}
		records = records[:t.pageSize]
	}

	segment.Rows = make([]repository.Row, len(records))
	for i, r := range records {
		segment.Rows[i] = repository.Row(r)
	}

	span.SetAttributes(
		attribute.Int("table.row_count", len(segment.Rows)),
		attribute.Bool("table.has_more", segment.Next != nil),
	)

	t.logger.DebugContext(ctx, "Segment read from postgres",
		slog.Int("count", len(segment.Rows)),
	)

	span.SetStatus(codes.Ok, "Segment read")
	return segment, nil
}

// Package memory provides an in-process table for local runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mrops-br/products-func/internal/domain"
	"github.com/mrops-br/products-func/internal/infrastructure/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ repository.Table = (*Table)(nil)

type rowKey struct {
	partitionKey string
	rowKey       string
}

func compareKeys(a, b rowKey) int {
	if c := cmp.Compare(a.partitionKey, b.partitionKey); c != 0 {
		return c
	}
	return cmp.Compare(a.rowKey, b.rowKey)
}

// Table is an in-memory implementation of repository.Table
type Table struct {
	mu       sync.RWMutex
	rows     map[rowKey]repository.Row
	pageSize int
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewTable creates an empty in-memory table. A pageSize of zero or less
// falls back to repository.DefaultPageSize.
func NewTable(pageSize int, tracer trace.Tracer, logger *slog.Logger) *Table {
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}
	return &Table{
		rows:     make(map[rowKey]repository.Row),
		pageSize: pageSize,
		tracer:   tracer,
		logger:   logger,
	}
}

// Insert stores a row unless its key is already taken
func (t *Table) Insert(ctx context.Context, row repository.Row) error {
	ctx, span := t.tracer.Start(ctx, "memory.Table.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("table.partition_key", row.PartitionKey),
		attribute.String("table.row_key", row.RowKey),
	)

	key := rowKey{partitionKey: row.PartitionKey, rowKey: row.RowKey}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rows[key]; exists {
		span.RecordError(domain.ErrDuplicateKey)
		span.SetStatus(codes.Error, "Row already exists")
		t.logger.WarnContext(ctx, "Row already exists",
			slog.String("partition_key", row.PartitionKey),
			slog.String("row_key", row.RowKey),
		)
		return fmt.Errorf("row %s/%s: %w", row.PartitionKey, row.RowKey, domain.ErrDuplicateKey)
	}

	t.rows[key] = row

	span.SetStatus(codes.Ok, "Row inserted")
	return nil
}

// QuerySegment returns up to pageSize rows in key order starting at token
func (t *Table) QuerySegment(ctx context.Context, token *repository.ContinuationToken) (repository.Segment, error) {
	ctx, span := t.tracer.Start(ctx, "memory.Table.QuerySegment")
	defer span.End()

	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]rowKey, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, compareKeys)

	start := 0
	if token != nil {
		from := rowKey{partitionKey: token.NextPartitionKey, rowKey: token.NextRowKey}
		start, _ = slices.BinarySearchFunc(keys, from, compareKeys)
	}
	end := min(start+t.pageSize, len(keys))

	segment := repository.Segment{Rows: make([]repository.Row, 0, end-start)}

	for _, k := range keys[start:end] {
		segment.Rows = append(segment.Rows, t.rows[k])
	}

	if end < len(keys) {
		segment.Next = &repository.ContinuationToken{
			NextPartitionKey: keys[end].partitionKey,
			NextRowKey:       keys[end].rowKey,
		}
	}

	span.SetAttributes(
		attribute.Int("table.row_count", len(segment.Rows)),
		attribute.Bool("table.has_more", segment.Next != nil),
	)

	t.logger.DebugContext(ctx, "Segment read from memory table",
		slog.Int("count", len(segment.Rows)),
	)

	span.SetStatus(codes.Ok, "Segment read")
	return segment, nil
}

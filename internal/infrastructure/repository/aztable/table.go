// Package aztable stores rows in Azure Table Storage (or Azurite).
package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/mrops-br/products-func/internal/domain"
	"github.com/mrops-br/products-func/internal/infrastructure/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ repository.Table = (*Table)(nil)

const edmDouble = "Edm.Double"

// entity is the JSON document exchanged with the table service.
// Price is annotated so whole-number prices are not stored as Edm.Int32.
type entity struct {
	aztables.Entity
	Name      string  `json:"Name"`
	Price     float64 `json:"Price"`
	PriceType string  `json:"Price@odata.type,omitempty"`
	Qty       int32   `json:"Qty"`
	IsBlocked bool    `json:"IsBlocked"`
}

func marshalRow(row repository.Row) ([]byte, error) {
	return json.Marshal(entity{
		Entity: aztables.Entity{
			PartitionKey: row.PartitionKey,
			RowKey:       row.RowKey,
		},
		Name:      row.Name,
		Price:     row.Price,
		PriceType: edmDouble,
		Qty:       row.Qty,
		IsBlocked: row.IsBlocked,
	})
}

func unmarshalRow(data []byte) (repository.Row, error) {
	var e entity
	if err := json.Unmarshal(data, &e); err != nil {
		return repository.Row{}, err
	}
	return repository.Row{
		PartitionKey: e.PartitionKey,
		RowKey:       e.RowKey,
		Name:         e.Name,
		Price:        e.Price,
		Qty:          e.Qty,
		IsBlocked:    e.IsBlocked,
	}, nil
}

// hasErrorCode reports whether err is a table service error with the given code
func hasErrorCode(err error, code aztables.TableErrorCode) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == string(code)
}

// Table is a repository.Table backed by an Azure Table Storage table
type Table struct {
	client *aztables.Client
	top    *int32
	tracer trace.Tracer
	logger *slog.Logger
}

// NewTable connects to the account in connectionString and creates
// tableName if it does not exist yet. pageSize caps the rows returned per
// segment; zero leaves the page size to the service. Retries are disabled.
func NewTable(ctx context.Context, connectionString, tableName string, pageSize int, tracer trace.Tracer, logger *slog.Logger) (*Table, error) {
	opts := &aztables.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}

	service, err := aztables.NewServiceClientFromConnectionString(connectionString, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create table service client: %w", err)
	}

	client := service.NewClient(tableName)
	if _, err := client.CreateTable(ctx, nil); err != nil {
		if !hasErrorCode(err, aztables.TableAlreadyExists) {
			return nil, fmt.Errorf("%w: create table %s: %w", domain.ErrStorageUnavailable, tableName, err)
		}
	} else {
		logger.InfoContext(ctx, "Created table", slog.String("table", tableName))
	}

	return NewTableFromClient(client, pageSize, tracer, logger), nil
}

// NewTableFromClient wraps an existing table client
func NewTableFromClient(client *aztables.Client, pageSize int, tracer trace.Tracer, logger *slog.Logger) *Table {
	t := &Table{
		client: client,
		tracer: tracer,
		logger: logger,
	}
	if pageSize > 0 {
		top := int32(pageSize)
		t.top = &top
	}
	return t
}

// Insert adds the row as a new entity
func (t *Table) Insert(ctx context.Context, row repository.Row) error {
	ctx, span := t.tracer.Start(ctx, "aztable.Table.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("table.partition_key", row.PartitionKey),
		attribute.String("table.row_key", row.RowKey),
	)

	body, err := marshalRow(row)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Encoding failed")
		return fmt.Errorf("encode entity: %w", err)
	}

	if _, err := t.client.AddEntity(ctx, body, nil); err != nil {
		span.RecordError(err)
		if hasErrorCode(err, aztables.EntityAlreadyExists) {
			span.SetStatus(codes.Error, "Entity already exists")
			return fmt.Errorf("entity %s/%s: %w", row.PartitionKey, row.RowKey, domain.ErrDuplicateKey)
		}
		span.SetStatus(codes.Error, "AddEntity failed")
		t.logger.ErrorContext(ctx, "Table service rejected insert",
			slog.String("partition_key", row.PartitionKey),
			slog.String("row_key", row.RowKey),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: add entity: %w", domain.ErrStorageUnavailable, err)
	}

	span.SetStatus(codes.Ok, "Entity added")
	return nil
}

// QuerySegment fetches exactly one page of entities
func (t *Table) QuerySegment(ctx context.Context, token *repository.ContinuationToken) (repository.Segment, error) {
	ctx, span := t.tracer.Start(ctx, "aztable.Table.QuerySegment")
	defer span.End()

	opts := &aztables.ListEntitiesOptions{Top: t.top}
	if token != nil {
		opts.NextPartitionKey = &token.NextPartitionKey
		opts.NextRowKey = &token.NextRowKey
	}

	page, err := t.client.NewListEntitiesPager(opts).NextPage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ListEntities failed")
		t.logger.ErrorContext(ctx, "Table service query failed", slog.String("error", err.Error()))
		return repository.Segment{}, fmt.Errorf("%w: list entities: %w", domain.ErrStorageUnavailable, err)
	}

	segment := repository.Segment{Rows: make([]repository.Row, 0, len(page.Entities))}
	for _, raw := range page.Entities {
		row, err := unmarshalRow(raw)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Decoding failed")
			return repository.Segment{}, fmt.Errorf("%w: decode entity: %w", domain.ErrStorageUnavailable, err)
		}
		segment.Rows = append(segment.Rows, row)
	}

	if page.NextPartitionKey != nil && page.NextRowKey != nil {
		segment.Next = &repository.ContinuationToken{
			NextPartitionKey: *page.NextPartitionKey,
			NextRowKey:       *page.NextRowKey,
		}
	}

	span.SetAttributes(
		attribute.Int("table.row_count", len(segment.Rows)),
		attribute.Bool("table.has_more", segment.Next != nil),
	)

	span.SetStatus(codes.Ok, "Segment read")
	return segment, nil
}

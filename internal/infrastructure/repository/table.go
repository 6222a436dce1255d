package repository

import "context"

// DefaultTableName is the table products are stored in
const DefaultTableName = "products"

// DefaultPageSize matches the largest page Azure Table Storage returns for a query
const DefaultPageSize = 1000

// ContinuationToken points at the first row of the next page
type ContinuationToken struct {
	NextPartitionKey string
	NextRowKey       string
}

// Segment is a single page of a table scan. Next is nil on the last page.
type Segment struct {
	Rows []Row
	Next *ContinuationToken
}

// Table is a keyed row store. Implementations must be safe for concurrent use.
type Table interface {
	// Insert adds a row. Returns domain.ErrDuplicateKey when the
	// (PartitionKey, RowKey) pair exists and domain.ErrStorageUnavailable
	// when the service call fails.
	Insert(ctx context.Context, row Row) error

	// QuerySegment returns one page of rows ordered by PartitionKey then
	// RowKey, starting at token (or at the beginning when token is nil).
	QuerySegment(ctx context.Context, token *ContinuationToken) (Segment, error)
}

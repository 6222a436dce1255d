package domain

import (
	"context"
	"errors"
)

var (
	// ErrMalformedInput is returned when a request body is empty or not valid JSON
	ErrMalformedInput = errors.New("malformed input")
	// ErrStorageUnavailable is returned when the table service cannot be reached or fails a call
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDuplicateKey is returned when a row with the same partition and row key already exists
	ErrDuplicateKey = errors.New("duplicate key")
)

// ProductRepository defines the contract for product storage
type ProductRepository interface {
	// Create persists a new product. Returns ErrDuplicateKey if the
	// (PartitionKey, ID) pair is taken.
	Create(ctx context.Context, product *Product) error
	// List returns the products found in a single storage page.
	List(ctx context.Context) ([]*Product, error)
}

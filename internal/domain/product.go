package domain

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Product represents the product entity
type Product struct {
	PartitionKey string
	ID           string
	Name         string
	Price        float64
	Qty          int32
	IsBlocked    bool
}

// NewID returns a random identifier rendered as 32 lowercase hex characters
func NewID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// NewProduct creates a product, generating an ID when none is supplied.
// Field values are taken as given; nothing is validated.
func NewProduct(partitionKey, id, name string, price float64, qty int32, isBlocked bool) *Product {
	if id == "" {
		id = NewID()
	}

	return &Product{
		PartitionKey: partitionKey,
		ID:           id,
		Name:         name,
		Price:        price,
		Qty:          qty,
		IsBlocked:    isBlocked,
	}
}

// Package repository stores products as rows of a keyed table service.
package repository

import "github.com/mrops-br/products-func/internal/domain"

// Row is the flat shape persisted by the table service.
// PartitionKey and RowKey carry the product identity; the remaining
// fields are typed columns.
type Row struct {
	PartitionKey string
	RowKey       string
	Name         string
	Price        float64
	Qty          int32
	IsBlocked    bool
}

// ToRow maps a product to its storage row
func ToRow(p domain.Product) Row {
	return Row{
		PartitionKey: p.PartitionKey,
		RowKey:       p.ID,
		Name:         p.Name,
		Price:        p.Price,
		Qty:          p.Qty,
		IsBlocked:    p.IsBlocked,
	}
}

// ToProduct maps a storage row back to a product
func ToProduct(r Row) domain.Product {
	return domain.Product{
		PartitionKey: r.PartitionKey,
		ID:           r.RowKey,
		Name:         r.Name,
		Price:        r.Price,
		Qty:          r.Qty,
		IsBlocked:    r.IsBlocked,
	}
}

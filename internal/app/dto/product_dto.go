package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mrops-br/products-func/internal/domain"
)

// ProductRequest represents the body of a create request
type ProductRequest struct {
	PartitionKey string  `json:"PartitionKey"`
	ID           string  `json:"Id"`
	Name         string  `json:"Name"`
	Price        float64 `json:"Price"`
	Qty          int32   `json:"Qty"`
	IsBlocked    bool    `json:"IsBlocked"`
}

// ProductResponse represents the product response
type ProductResponse struct {
	PartitionKey string  `json:"PartitionKey"`
	ID           string  `json:"Id"`
	Name         string  `json:"Name"`
	Price        float64 `json:"Price"`
	Qty          int32   `json:"Qty"`
	IsBlocked    bool    `json:"IsBlocked"`
}

var jsonNull = []byte("null")

// DecodeProductRequest parses a create request body. An empty body, a JSON
// null or anything that is not a product object yields domain.ErrMalformedInput.
func DecodeProductRequest(body []byte) (*ProductRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty request body", domain.ErrMalformedInput)
	}
	if bytes.Equal(trimmed, jsonNull) {
		return nil, fmt.Errorf("%w: null request body", domain.ErrMalformedInput)
	}

	var req ProductRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
	}
	return &req, nil
}

// ToProduct re-projects the request into a fresh domain product
func (r *ProductRequest) ToProduct() *domain.Product {
	return domain.NewProduct(r.PartitionKey, r.ID, r.Name, r.Price, r.Qty, r.IsBlocked)
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p *domain.Product) *ProductResponse {
	return &ProductResponse{
		PartitionKey: p.PartitionKey,
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price,
		Qty:          p.Qty,
		IsBlocked:    p.IsBlocked,
	}
}

// ToProductResponseList converts a list of domain Products to ProductResponse list.
// The result is never nil so an empty table encodes as [].
func ToProductResponseList(products []*domain.Product) []*ProductResponse {
	responses := make([]*ProductResponse, len(products))
	for i, p := range products {
		responses[i] = ToProductResponse(p)
	}
	return responses
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mrops-br/products-func/internal/app/dto"
	"github.com/mrops-br/products-func/internal/domain"
	"github.com/mrops-br/products-func/internal/infrastructure/http/response"
)

// ProductService is the set of product use cases served over HTTP
type ProductService interface {
	CreateProduct(ctx context.Context, req *dto.ProductRequest) (*dto.ProductResponse, error)
	ListProducts(ctx context.Context) ([]*dto.ProductResponse, error)
}

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	service ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

// CreateProduct handles POST /product
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrMalformedInput, maxErr.Limit)
		} else {
			err = fmt.Errorf("%w: read request body: %w", domain.ErrMalformedInput, err)
		}
		h.logger.WarnContext(r.Context(), "Failed to read request body",
			slog.String("error", err.Error()),
		)
		h.writeError(w, r, err)
		return
	}

	req, err := dto.DecodeProductRequest(body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body",
			slog.String("error", err.Error()),
		)
		h.writeError(w, r, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, product)
}

// ListProducts handles GET /product
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, products)
}

// Messages sent for server-side failures. The underlying error is logged,
// never returned to the client.
var (
	errUnavailable = errors.New("storage is temporarily unavailable")
	errInternal    = errors.New("internal server error")
)

// writeError maps domain errors onto HTTP statuses
func (h *ProductHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		response.Error(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrDuplicateKey):
		response.Error(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.ErrorContext(r.Context(), "Storage unavailable",
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusServiceUnavailable, errUnavailable)
	default:
		h.logger.ErrorContext(r.Context(), "Unexpected error",
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusInternalServerError, errInternal)
	}
}

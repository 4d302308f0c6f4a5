package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// ProductDTO is the product payload returned to clients.
type ProductDTO struct {
	ID            uuid.UUID `json:"id"`
	FarmerID      uuid.UUID `json:"farmer_id"`
	FarmerContact *string   `json:"farmer_contact,omitempty"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	Price         string    `json:"price"`
	Stock         int       `json:"stock"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateProductInput is the body accepted when a farmer lists a product.
type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// UpdateProductInput carries the optional fields of a partial product update.
type UpdateProductInput struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// ListProductsInput filters the browse endpoint. FarmerID narrows the listing to one farmer.
type ListProductsInput struct {
	FarmerID   *uuid.UUID
	Query      string
	Pagination pagination.Params
}

// NewProductDTO builds the transport shape from a persisted product.
func NewProductDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:          product.ID,
		FarmerID:    product.FarmerID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price.StringFixed(2),
		Stock:       product.Stock,
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	if product.Farmer != nil {
		contact := product.Farmer.ContactNumber
		dto.FarmerContact = &contact
	}
	return dto
}

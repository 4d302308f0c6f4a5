package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/internal/payments"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// PlaceOrderRequest is the JSON body of the order placement endpoint.
type PlaceOrderRequest struct {
	Items         []ItemInput `json:"items"`
	PaymentMethod string      `json:"payment_method,omitempty"`
}

// PlaceOrderInput is the service-level placement command.
type PlaceOrderInput struct {
	CustomerID    uuid.UUID
	Items         []ItemInput
	PaymentMethod enums.PaymentMethod
}

// UpdateStatusRequest is the JSON body of the status endpoint.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// StatusUpdateResult reports the order status after an update; Changed is false for a same-status no-op.
type StatusUpdateResult struct {
	OrderID       uuid.UUID         `json:"order_id"`
	Status        enums.OrderStatus `json:"status"`
	Changed       bool              `json:"changed"`
	StockRestored bool              `json:"stock_restored,omitempty"`
}

type OrderItemDTO struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	ProductName string     `json:"product_name,omitempty"`
	FarmerID    *uuid.UUID `json:"farmer_id,omitempty"`
	Quantity    int        `json:"quantity"`
	UnitPrice   string     `json:"unit_price"`
	LineTotal   string     `json:"line_total"`
}

type OrderDTO struct {
	ID          uuid.UUID            `json:"id"`
	CustomerID  uuid.UUID            `json:"customer_id"`
	Status      enums.OrderStatus    `json:"status"`
	TotalAmount string               `json:"total_amount"`
	Items       []OrderItemDTO       `json:"items"`
	Payment     *payments.PaymentDTO `json:"payment,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// OrderList is a cursor page of orders.
type OrderList = pagination.Page[OrderDTO]

func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		dto := OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal.StringFixed(2),
		}
		if item.Product != nil {
			farmerID := item.Product.FarmerID
			dto.ProductName = item.Product.Name
			dto.FarmerID = &farmerID
		}
		items = append(items, dto)
	}
	return &OrderDTO{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Items:       items,
		Payment:     payments.NewPaymentDTO(order.Payment),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

// FarmerIDs lists the distinct owners of the products on the order. Items must have Product loaded.
func FarmerIDs(order *models.Order) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(order.Items))
	out := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if item.Product == nil {
			continue
		}
		if _, ok := seen[item.Product.FarmerID]; ok {
			continue
		}
		seen[item.Product.FarmerID] = struct{}{}
		out = append(out, item.Product.FarmerID)
	}
	return out
}

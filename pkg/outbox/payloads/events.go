package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// OrderLine is one product line inside an order event.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	FarmerID  uuid.UUID       `json:"farmer_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderPlacedEvent is emitted once an order, its lines and its pending payment are committed.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	PaymentID   uuid.UUID       `json:"payment_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderLine     `json:"items"`
	PlacedAt    time.Time       `json:"placed_at"`
}

// OrderStatusChangedEvent reports a lifecycle move on an order.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	From          enums.OrderStatus `json:"from"`
	To            enums.OrderStatus `json:"to"`
	StockRestored bool              `json:"stock_restored"`
	Source        string            `json:"source"`
}

// PaymentReconciledEvent reports the outcome of a processed gateway notification.
type PaymentReconciledEvent struct {
	PaymentID      uuid.UUID           `json:"payment_id"`
	OrderID        uuid.UUID           `json:"order_id"`
	From           enums.PaymentStatus `json:"from"`
	To             enums.PaymentStatus `json:"to"`
	OrderStatus    enums.OrderStatus   `json:"order_status"`
	TransactionID  string              `json:"transaction_id,omitempty"`
	StatusCode     string              `json:"status_code"`
	// RefundRequired is set when the payment completed after the order was cancelled.
	RefundRequired bool                `json:"refund_required,omitempty"`
}

const (
	SourceCustomer = "customer"
	SourceStaff    = "staff"
	SourceWebhook  = "payhere_webhook"
)

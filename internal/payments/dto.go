package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// PaymentDTO is the payment representation embedded in order responses.
type PaymentDTO struct {
	ID            uuid.UUID           `json:"id"`
	OrderID       uuid.UUID           `json:"order_id"`
	Status        enums.PaymentStatus `json:"status"`
	Method        enums.PaymentMethod `json:"method"`
	Amount        string              `json:"amount"`
	Currency      string              `json:"currency"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// CheckoutContext is everything the client needs to post the PayHere checkout form.
type CheckoutContext struct {
	ActionURL  string `json:"action_url"`
	MerchantID string `json:"merchant_id"`
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
	NotifyURL  string `json:"notify_url"`
	OrderID    string `json:"order_id"`
	Items      string `json:"items"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Hash       string `json:"hash"`
}

func NewPaymentDTO(payment *models.Payment) *PaymentDTO {
	if payment == nil {
		return nil
	}
	return &PaymentDTO{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		Status:        payment.Status,
		Method:        payment.Method,
		Amount:        payment.Amount.StringFixed(2),
		Currency:      payment.Currency,
		TransactionID: payment.TransactionID,
		CreatedAt:     payment.CreatedAt,
		UpdatedAt:     payment.UpdatedAt,
	}
}

package enums

import "slices"

// PaymentStatus tracks the provider-side settlement state of an order payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusCancelled,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return slices.Contains(paymentStatuses, p) }

// IsSettled reports whether the payment reached a final outcome.
func (p PaymentStatus) IsSettled() bool {
	return p == PaymentStatusCompleted || p == PaymentStatusCancelled
}

// CanTransitionTo reports whether a provider notification may move the payment to next.
// Pending accepts anything; a failed attempt may still be completed or cancelled.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if !next.IsValid() || p == next {
		return false
	}
	switch p {
	case PaymentStatusPending:
		return true
	case PaymentStatusFailed:
		return next == PaymentStatusCompleted || next == PaymentStatusCancelled
	default:
		return false
	}
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, paymentStatuses)
}

package enums

import "slices"

// PaymentMethod is how a customer intends to pay through the gateway.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

var paymentMethods = []PaymentMethod{PaymentMethodCard, PaymentMethodPayPal}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return slices.Contains(paymentMethods, p) }

// ParsePaymentMethod converts raw input into a PaymentMethod. Empty input selects card.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	if value == "" {
		return PaymentMethodCard, nil
	}
	return parse("payment method", value, paymentMethods)
}

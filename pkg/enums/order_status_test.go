package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPlaced, OrderStatusConfirmed, true},
		{OrderStatusPlaced, OrderStatusDelivered, true},
		{OrderStatusConfirmed, OrderStatusPicked, true},
		{OrderStatusInTransit, OrderStatusDelivered, true},
		{OrderStatusPicked, OrderStatusConfirmed, false},
		{OrderStatusPlaced, OrderStatusPlaced, false},
		{OrderStatusPlaced, OrderStatusCancelled, true},
		{OrderStatusInTransit, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusPlaced, OrderStatus("shipped"), false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if got, err := ParseOrderStatus("in_transit"); err != nil || got != OrderStatusInTransit {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if _, err := ParseOrderStatus(""); err == nil {
		t.Fatalf("expected error for empty status")
	}
}

func TestPaymentStatusTransitionMatrix(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusCompleted, true},
		{PaymentStatusFailed, PaymentStatusPending, false},
		{PaymentStatusCompleted, PaymentStatusPending, false},
		{PaymentStatusCompleted, PaymentStatusCancelled, false},
		{PaymentStatusCancelled, PaymentStatusCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestParsePaymentMethodDefaultsToCard(t *testing.T) {
	if got, err := ParsePaymentMethod(""); err != nil || got != PaymentMethodCard {
		t.Fatalf("expected card default, got %q %v", got, err)
	}
	if _, err := ParsePaymentMethod("cash"); err == nil {
		t.Fatalf("expected cash to be rejected")
	}
}

func TestParseUserRole(t *testing.T) {
	for _, raw := range []string{"admin", "customer", "farmer"} {
		if _, err := ParseUserRole(raw); err != nil {
			t.Fatalf("expected %q to parse: %v", raw, err)
		}
	}
	if _, err := ParseUserRole("Farmer"); err == nil {
		t.Fatalf("role parsing is case sensitive")
	}
}

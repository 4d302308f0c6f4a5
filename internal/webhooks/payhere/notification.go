package payherewebhook

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Notification is the server-to-server callback PayHere posts to the notify url.
type Notification struct {
	MerchantID      string `json:"merchant_id"`
	OrderID         string `json:"order_id"`
	PaymentID       string `json:"payment_id,omitempty"`
	PayHereAmount   string `json:"payhere_amount"`
	PayHereCurrency string `json:"payhere_currency"`
	StatusCode      string `json:"status_code"`
	MD5Sig          string `json:"md5sig"`
	StatusMessage   string `json:"status_message,omitempty"`
	Method          string `json:"method,omitempty"`
}

// NotificationFromForm reads a url-encoded callback body.
func NotificationFromForm(values url.Values) Notification {
	return Notification{
		MerchantID:      values.Get("merchant_id"),
		OrderID:         values.Get("order_id"),
		PaymentID:       values.Get("payment_id"),
		PayHereAmount:   values.Get("payhere_amount"),
		PayHereCurrency: values.Get("payhere_currency"),
		StatusCode:      values.Get("status_code"),
		MD5Sig:          values.Get("md5sig"),
		StatusMessage:   values.Get("status_message"),
		Method:          values.Get("method"),
	}
}

// Normalize trims every field. Signatures are computed over the trimmed values.
func (n Notification) Normalize() Notification {
	n.MerchantID = strings.TrimSpace(n.MerchantID)
	n.OrderID = strings.TrimSpace(n.OrderID)
	n.PaymentID = strings.TrimSpace(n.PaymentID)
	n.PayHereAmount = strings.TrimSpace(n.PayHereAmount)
	n.PayHereCurrency = strings.TrimSpace(n.PayHereCurrency)
	n.StatusCode = strings.TrimSpace(n.StatusCode)
	n.MD5Sig = strings.TrimSpace(n.MD5Sig)
	return n
}

func (n Notification) missingFields() []string {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"merchant_id", n.MerchantID},
		{"order_id", n.OrderID},
		{"payhere_amount", n.PayHereAmount},
		{"payhere_currency", n.PayHereCurrency},
		{"status_code", n.StatusCode},
		{"md5sig", n.MD5Sig},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// IdempotencyKey identifies one delivery outcome; PayHere retries carry the same pair.
func (n Notification) IdempotencyKey() string {
	return n.OrderID + ":" + n.StatusCode
}

func (n Notification) orderUUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(n.OrderID)
	return id, err == nil
}

// Package payhere implements the PayHere checkout hash and notification signature contract.
package payhere

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// PayHere notification status codes.
const (
	StatusCodeSuccess    = "2"
	StatusCodePending    = "0"
	StatusCodeCancelled  = "-1"
	StatusCodeFailed     = "-2"
	StatusCodeChargeback = "-3"
)

// FormatAmount renders an amount the way PayHere expects it in hashes and forms.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// CheckoutHash signs a checkout request: md5(merchant_id + order_id + amount + currency + secret), upper-case hex.
func CheckoutHash(merchantID, orderID, amount, currency, secret string) string {
	return upperMD5(merchantID + orderID + amount + currency + secret)
}

// NotificationSignature computes the md5sig PayHere attaches to server notifications.
func NotificationSignature(merchantID, orderID, amount, currency, statusCode, secret string) string {
	return upperMD5(merchantID + orderID + amount + currency + statusCode + secret)
}

// VerifySignature compares the supplied signature against the expected one, ignoring case.
func VerifySignature(expected, supplied string) bool {
	supplied = strings.ToUpper(strings.TrimSpace(supplied))
	if supplied == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

// MapStatusCode translates a PayHere status code into the local payment status.
// Unknown codes, including chargebacks, leave the payment pending.
func MapStatusCode(code string) enums.PaymentStatus {
	switch strings.TrimSpace(code) {
	case StatusCodeSuccess:
		return enums.PaymentStatusCompleted
	case StatusCodeFailed:
		return enums.PaymentStatusFailed
	case StatusCodeCancelled:
		return enums.PaymentStatusCancelled
	default:
		return enums.PaymentStatusPending
	}
}

func upperMD5(value string) string {
	sum := md5.Sum([]byte(value))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

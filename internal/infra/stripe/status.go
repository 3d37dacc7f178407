// Package stripe holds small helpers around Stripe's wire values.
package stripe

import "strings"

// NormalizePaymentStatus collapses a checkout session's payment_status into
// the small set the payment history table stores.
func NormalizePaymentStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "":
		return "unknown"
	case "paid", "no_payment_required":
		return "paid"
	case "unpaid":
		return "unpaid"
	default:
		return strings.TrimSpace(s)
	}
}

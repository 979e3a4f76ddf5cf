package domain

import "time"

// PaymentStatus is the authoritative status of a payment intent. It is derived on
// every resolution, never stored on the intent itself.
type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "UNPAID"
	StatusPaid    PaymentStatus = "PAID"
	StatusExpired PaymentStatus = "EXPIRED"
	StatusUnknown PaymentStatus = "UNKNOWN"
)

// Terminal reports whether no further transitions are meaningful.
func (s PaymentStatus) Terminal() bool {
	return s == StatusPaid || s == StatusExpired
}

// Ledger record states. PENDING until the first terminal resolution.
const (
	RecordPending = "PENDING"
	RecordPaid    = "PAID"
	RecordExpired = "EXPIRED"
)

// FormatTime renders timestamps on the wire as UTC ISO-8601.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// model/payment.go
package model

import "time"

type PaymentType string

const (
	PaymentDeposit   PaymentType = "DEPOSIT"
	PaymentBorrowFee PaymentType = "BORROW_FEE"
	PaymentFine      PaymentType = "FINE"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is an internal ledger row; no real money moves. A PENDING row
// transitions to PAID via explicit confirmation, or to FAILED when a paid
// deposit must be refunded after cancellation.
type Payment struct {
	ID          int64         `json:"id"`
	Amount      float64       `json:"amount"`
	PaymentType PaymentType   `json:"payment_type"`
	Status      PaymentStatus `json:"status"`
	UserID      int64         `json:"user_id"`
	PaymentDate time.Time     `json:"payment_date"`
}

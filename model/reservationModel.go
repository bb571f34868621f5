// model/reservation.go
package model

import "time"

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "PENDING"
	ReservationReserved ReservationStatus = "RESERVED"
	ReservationBorrowed ReservationStatus = "BORROWED"
	ReservationExpired  ReservationStatus = "EXPIRED"
)

// CancelReason distinguishes how a reservation reached EXPIRED.
type CancelReason string

const (
	CancelTimedOut      CancelReason = "TIMED_OUT"
	CancelUserCancelled CancelReason = "USER_CANCELLED"
)

type Reservation struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"user_id"`
	BookID          int64             `json:"book_id"`
	PaymentID       *int64            `json:"payment_id,omitempty"`
	ReservationDate time.Time         `json:"reservation_date"`
	ExpiryDate      time.Time         `json:"expiry_date"`
	Status          ReservationStatus `json:"status"`
	CancelReason    *CancelReason     `json:"cancel_reason,omitempty"`
}

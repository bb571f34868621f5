// model/borrow.go
package model

import "time"

type BorrowStatus string

const (
	BorrowPendingApproval BorrowStatus = "PENDING_APPROVAL"
	BorrowRejected        BorrowStatus = "REJECTED"
	BorrowBorrowed        BorrowStatus = "BORROWED"
	BorrowReturnPending   BorrowStatus = "RETURN_PENDING"
	BorrowReturned        BorrowStatus = "RETURNED"
	BorrowLate            BorrowStatus = "LATE"
)

type Borrow struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	BookID        int64        `json:"book_id"`
	ReservationID *int64       `json:"reservation_id,omitempty"`
	PaymentID     *int64       `json:"payment_id,omitempty"`
	BorrowDate    *time.Time   `json:"borrow_date,omitempty"`
	DueDate       time.Time    `json:"due_date"`
	ReturnDate    *time.Time   `json:"return_date,omitempty"`
	Status        BorrowStatus `json:"status"`
}

package borrow

import "time"

type CreateBorrowReq struct {
	BookID        int64      `json:"book_id" validate:"required,gt=0"`
	ReservationID *int64     `json:"reservation_id" validate:"omitempty,gt=0"`
	DueDate       *time.Time `json:"due_date"`
}

type DecideReq struct {
	Approve bool `json:"approve"`
}

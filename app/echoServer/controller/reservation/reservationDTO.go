package reservation

type CreateReservationReq struct {
	BookID        int64    `json:"book_id" validate:"required,gt=0"`
	DepositAmount *float64 `json:"deposit_amount" validate:"omitempty,gte=0"`
}

type ConfirmPaymentReq struct {
	PaymentID int64 `json:"payment_id" validate:"required,gt=0"`
}

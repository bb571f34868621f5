package borrow

import (
	"time"

	"github.com/omaraymanatia/settle-library-management-system/model"
)

// hoursPerDay converts an elapsed duration into whole late days.
const hoursPerDay = 24

// BorrowFee is the tier fee minus a paid deposit credit, floored at zero.
// Books without a pricing tier borrow for free.
func BorrowFee(tier *model.BookClass, deposit *model.Payment) float64 {
	if tier == nil {
		return 0
	}
	fee := tier.BorrowFee
	if deposit != nil &&
		deposit.PaymentType == model.PaymentDeposit &&
		deposit.Status == model.PaymentPaid {
		fee -= deposit.Amount
	}
	if fee < 0 {
		return 0
	}
	return fee
}

// Fine charges fine_per_day for each whole day past due, measured to the
// return date when set, otherwise to now. Never negative.
func Fine(tier *model.BookClass, dueDate time.Time, returnDate *time.Time, now time.Time) float64 {
	if tier == nil {
		return 0
	}
	days := DaysLate(dueDate, returnDate, now)
	if days <= 0 {
		return 0
	}
	return float64(days) * tier.FinePerDay
}

// DaysLate is the floor of whole days between due date and the effective
// end (return date or now).
func DaysLate(dueDate time.Time, returnDate *time.Time, now time.Time) int64 {
	end := now
	if returnDate != nil {
		end = *returnDate
	}
	return int64(end.Sub(dueDate).Hours() / hoursPerDay)
}

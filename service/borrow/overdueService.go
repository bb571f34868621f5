package borrow

import (
	"context"
	"log/slog"

	"github.com/omaraymanatia/settle-library-management-system/model"
)

// OverdueResult is the per-item annotation returned by the overdue sweep.
type OverdueResult struct {
	BorrowID      int64   `json:"borrow_id"`
	UserID        int64   `json:"user_id"`
	BookID        int64   `json:"book_id"`
	DaysLate      int64   `json:"days_late"`
	FineAmount    float64 `json:"fine_amount,omitempty"`
	FinePaymentID *int64  `json:"fine_payment_id,omitempty"`
	Action        string  `json:"action"`
	Error         string  `json:"error,omitempty"`
}

// ProcessOverdue marks overdue borrows LATE and creates fine payments.
// Each borrow commits in its own transaction; one failure is recorded and
// the sweep moves on. Re-running is safe: LATE borrows fall out of the
// overdue filter and an existing pending fine suppresses a duplicate.
func (s *service) ProcessOverdue(ctx context.Context) ([]OverdueResult, error) {
	overdue, err := s.r.ListOverdue(ctx, s.now())
	if err != nil {
		return nil, err
	}

	results := make([]OverdueResult, 0, len(overdue))
	for _, b := range overdue {
		res := s.processOne(ctx, b)
		if res.Error != "" {
			slog.Error("overdue processing failed", "borrow_id", b.ID, "err", res.Error)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *service) processOne(ctx context.Context, stale model.Borrow) OverdueResult {
	out := OverdueResult{BorrowID: stale.ID, UserID: stale.UserID, BookID: stale.BookID}

	fail := func(err error) OverdueResult {
		out.Action = "error"
		out.Error = err.Error()
		return out
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fail(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-read under lock: a return or a competing sweep may have moved it.
	b, err := s.r.GetForUpdate(ctx, tx, stale.ID)
	if err != nil {
		return fail(err)
	}
	if b.Status != model.BorrowBorrowed || b.ReturnDate != nil {
		out.Action = "skipped"
		if err := tx.Commit(); err != nil {
			return fail(err)
		}
		committed = true
		return out
	}

	now := s.now()
	out.DaysLate = DaysLate(b.DueDate, nil, now)
	if out.DaysLate <= 0 {
		out.Action = "skipped"
		if err := tx.Commit(); err != nil {
			return fail(err)
		}
		committed = true
		return out
	}

	book, err := s.r.GetBook(ctx, b.BookID)
	if err != nil {
		return fail(err)
	}

	out.Action = "marked_late"
	if fine := Fine(book.BookClass, b.DueDate, nil, now); fine > 0 {
		exists, err := s.r.ExistsPendingFine(ctx, tx, b.UserID)
		if err != nil {
			return fail(err)
		}
		if !exists {
			id, err := s.r.InsertPayment(ctx, tx, b.UserID, fine, model.PaymentFine)
			if err != nil {
				return fail(err)
			}
			out.FineAmount = fine
			out.FinePaymentID = &id
			out.Action = "fine_created"
		}
	}

	if err := s.r.MarkLate(ctx, tx, b.ID); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	committed = true
	return out
}

package borrow

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

// errors used by controllers

type ErrCode string

const (
	ErrBookNotFound        ErrCode = "BOOK_NOT_FOUND"
	ErrNotFound            ErrCode = "BORROW_NOT_FOUND"
	ErrReservationNotFound ErrCode = "RESERVATION_NOT_FOUND"
	ErrBookUnavailable     ErrCode = "BOOK_UNAVAILABLE"
	ErrDuplicateBorrow     ErrCode = "DUPLICATE_BORROW"
	ErrReservationMismatch ErrCode = "RESERVATION_MISMATCH"
	ErrReservationState    ErrCode = "RESERVATION_NOT_RESERVED"
	ErrNotPending          ErrCode = "BORROW_NOT_PENDING"
	ErrPaymentIncomplete   ErrCode = "PAYMENT_INCOMPLETE"
	ErrNotBorrowed         ErrCode = "BORROW_NOT_ACTIVE"
	ErrNotReturnPending    ErrCode = "BORROW_NOT_RETURN_PENDING"
	ErrNotOwner            ErrCode = "NOT_OWNER"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// dto

type Created struct {
	Borrow    *model.Borrow
	PaymentID *int64
}

type Repo interface {
	GetBook(ctx context.Context, bookID int64) (*model.Book, error)
	LockBookAvailability(ctx context.Context, tx database.Tx, bookID int64) (int64, error)
	DecrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error
	IncrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error

	GetReservation(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error)
	MarkReservationBorrowed(ctx context.Context, tx database.Tx, reservationID int64) error

	GetPayment(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error)
	InsertPayment(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error)
	SetPaymentStatus(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error
	ExistsPendingFine(ctx context.Context, tx database.Tx, userID int64) (bool, error)

	ActiveExists(ctx context.Context, userID, bookID int64) (bool, error)
	Insert(ctx context.Context, tx database.Tx, userID, bookID int64, reservationID *int64, due time.Time) (*model.Borrow, error)
	LinkPayment(ctx context.Context, tx database.Tx, borrowID, paymentID int64) error
	GetForUpdate(ctx context.Context, tx database.Tx, borrowID int64) (*model.Borrow, error)
	Approve(ctx context.Context, tx database.Tx, borrowID int64, borrowedAt time.Time) error
	Reject(ctx context.Context, tx database.Tx, borrowID int64) error
	MarkLate(ctx context.Context, tx database.Tx, borrowID int64) error
	RequestReturn(ctx context.Context, tx database.Tx, borrowID int64) error
	CompleteReturn(ctx context.Context, tx database.Tx, borrowID int64, returnedAt time.Time) error

	ByID(ctx context.Context, borrowID int64) (*model.Borrow, error)
	ListOverdue(ctx context.Context, now time.Time) ([]model.Borrow, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Borrow, error)
	ListByStatus(ctx context.Context, status model.BorrowStatus) ([]model.Borrow, error)
	CountByStatus(ctx context.Context) (map[model.BorrowStatus]int64, error)
}

type Service interface {
	// Create: request a borrow (PENDING_APPROVAL) with the fee payment, if
	// any, created PENDING. Inventory is untouched until approval.
	Create(ctx context.Context, userID, bookID int64, reservationID *int64, dueDate *time.Time) (*Created, error)

	// Decide: admin approves or rejects a pending request.
	Decide(ctx context.Context, borrowID int64, approve bool) (*model.Borrow, error)

	// RequestReturn: borrower hands the book back; late returns get a fine.
	RequestReturn(ctx context.Context, borrowID, userID int64) (*model.Borrow, error)

	// CompleteReturn: admin confirms the physical return and restores the copy.
	CompleteReturn(ctx context.Context, borrowID int64) (*model.Borrow, error)

	// ProcessOverdue: sweep BORROWED-past-due records into LATE with fines.
	ProcessOverdue(ctx context.Context) ([]OverdueResult, error)

	MyBorrows(ctx context.Context, userID int64) ([]model.Borrow, error)
	ListByStatus(ctx context.Context, status model.BorrowStatus) ([]model.Borrow, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

// ----- Service implementation -----

type Config struct {
	BorrowPeriodDays int
}

type service struct {
	db  database.DB
	r   Repo
	cfg Config
	now func() time.Time
}

func New(db database.DB, r Repo, cfg Config) Service {
	if cfg.BorrowPeriodDays <= 0 {
		cfg.BorrowPeriodDays = 14
	}
	return &service{db: db, r: r, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Create(ctx context.Context, userID, bookID int64, reservationID *int64, dueDate *time.Time) (_ *Created, err error) {
	book, err := s.r.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrBookNotFound)
		}
		return nil, err
	}
	// A reservation already holds its copy, so zero availability only
	// blocks walk-in requests.
	if reservationID == nil && book.AvailableQuantity <= 0 {
		return nil, makeErr(ErrBookUnavailable)
	}

	exists, err := s.r.ActiveExists(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, makeErr(ErrDuplicateBorrow)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// A reservation credits its paid deposit toward the fee.
	var deposit *model.Payment
	if reservationID != nil {
		res, rerr := s.r.GetReservation(ctx, tx, *reservationID)
		if rerr != nil {
			if errors.Is(rerr, sql.ErrNoRows) {
				return nil, makeErr(ErrReservationNotFound)
			}
			return nil, rerr
		}
		if res.UserID != userID {
			return nil, makeErr(ErrNotOwner)
		}
		if res.BookID != bookID {
			return nil, makeErr(ErrReservationMismatch)
		}
		if res.Status != model.ReservationReserved {
			return nil, makeErr(ErrReservationState)
		}
		if res.PaymentID != nil {
			deposit, err = s.r.GetPayment(ctx, tx, *res.PaymentID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			err = nil
		}
	}

	due := s.now().Add(time.Duration(s.cfg.BorrowPeriodDays) * 24 * time.Hour)
	if dueDate != nil {
		due = *dueDate
	}

	b, err := s.r.Insert(ctx, tx, userID, bookID, reservationID, due)
	if err != nil {
		return nil, err
	}

	var paymentID *int64
	if fee := BorrowFee(book.BookClass, deposit); fee > 0 {
		id, perr := s.r.InsertPayment(ctx, tx, userID, fee, model.PaymentBorrowFee)
		if perr != nil {
			return nil, perr
		}
		if err = s.r.LinkPayment(ctx, tx, b.ID, id); err != nil {
			return nil, err
		}
		b.PaymentID = &id
		paymentID = &id
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &Created{Borrow: b, PaymentID: paymentID}, nil
}

func (s *service) Decide(ctx context.Context, borrowID int64, approve bool) (_ *model.Borrow, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.r.GetForUpdate(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if b.Status != model.BorrowPendingApproval {
		return nil, makeErr(ErrNotPending)
	}

	if !approve {
		if err = s.r.Reject(ctx, tx, borrowID); err != nil {
			return nil, err
		}
		// Compensation: a still-pending fee payment is cancelled rather
		// than left dangling.
		if b.PaymentID != nil {
			if err = s.r.SetPaymentStatus(ctx, tx, *b.PaymentID, model.PaymentPending, model.PaymentFailed); err != nil {
				if !errors.Is(err, database.ErrNoEffect) {
					return nil, err
				}
				err = nil
			}
		}
		if err = tx.Commit(); err != nil {
			return nil, err
		}
		b.Status = model.BorrowRejected
		return b, nil
	}

	if b.PaymentID != nil {
		payment, perr := s.r.GetPayment(ctx, tx, *b.PaymentID)
		if perr != nil {
			return nil, perr
		}
		if payment.Status != model.PaymentPaid {
			return nil, makeErr(ErrPaymentIncomplete)
		}
	}

	now := s.now()
	if err = s.r.Approve(ctx, tx, borrowID, now); err != nil {
		return nil, err
	}

	if b.ReservationID != nil {
		// The copy was already taken when the reservation was confirmed;
		// approving must not decrement again. A guard miss means the
		// reservation moved on (expired or cancelled) and its copy was
		// restored, so approving here would lend an unaccounted copy.
		if err = s.r.MarkReservationBorrowed(ctx, tx, *b.ReservationID); err != nil {
			if errors.Is(err, database.ErrNoEffect) {
				return nil, makeErr(ErrReservationState)
			}
			return nil, err
		}
	} else {
		if _, err = s.r.LockBookAvailability(ctx, tx, b.BookID); err != nil {
			return nil, err
		}
		if err = s.r.DecrementAvailable(ctx, tx, b.BookID); err != nil {
			if errors.Is(err, database.ErrNoEffect) {
				return nil, makeErr(ErrBookUnavailable)
			}
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	b.Status = model.BorrowBorrowed
	b.BorrowDate = &now
	return b, nil
}

func (s *service) RequestReturn(ctx context.Context, borrowID, userID int64) (_ *model.Borrow, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.r.GetForUpdate(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if b.UserID != userID {
		return nil, makeErr(ErrNotOwner)
	}
	// LATE borrows (marked by the overdue sweep) stay returnable.
	if b.Status != model.BorrowBorrowed && b.Status != model.BorrowLate {
		return nil, makeErr(ErrNotBorrowed)
	}

	now := s.now()
	if now.After(b.DueDate) {
		if err = s.fineIfMissing(ctx, tx, b, now); err != nil {
			return nil, err
		}
		if err = s.r.MarkLate(ctx, tx, borrowID); err != nil {
			return nil, err
		}
	}

	if err = s.r.RequestReturn(ctx, tx, borrowID); err != nil {
		if errors.Is(err, database.ErrNoEffect) {
			return nil, makeErr(ErrNotBorrowed)
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	b.Status = model.BorrowReturnPending
	return b, nil
}

func (s *service) fineIfMissing(ctx context.Context, tx database.Tx, b *model.Borrow, now time.Time) error {
	book, err := s.r.GetBook(ctx, b.BookID)
	if err != nil {
		return err
	}
	fine := Fine(book.BookClass, b.DueDate, nil, now)
	if fine <= 0 {
		return nil
	}
	exists, err := s.r.ExistsPendingFine(ctx, tx, b.UserID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.r.InsertPayment(ctx, tx, b.UserID, fine, model.PaymentFine)
	return err
}

func (s *service) CompleteReturn(ctx context.Context, borrowID int64) (_ *model.Borrow, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.r.GetForUpdate(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	// Terminal transitions are not repeatable: a second complete-return
	// must fail rather than double-restore the copy.
	if b.Status != model.BorrowReturnPending {
		return nil, makeErr(ErrNotReturnPending)
	}

	now := s.now()
	if err = s.r.CompleteReturn(ctx, tx, borrowID, now); err != nil {
		if errors.Is(err, database.ErrNoEffect) {
			return nil, makeErr(ErrNotReturnPending)
		}
		return nil, err
	}

	if _, err = s.r.LockBookAvailability(ctx, tx, b.BookID); err != nil {
		return nil, err
	}
	if err = s.r.IncrementAvailable(ctx, tx, b.BookID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	b.Status = model.BorrowReturned
	b.ReturnDate = &now
	return b, nil
}

func (s *service) MyBorrows(ctx context.Context, userID int64) ([]model.Borrow, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *service) ListByStatus(ctx context.Context, status model.BorrowStatus) ([]model.Borrow, error) {
	return s.r.ListByStatus(ctx, status)
}

type Statistics struct {
	Total    int64                        `json:"total"`
	Overdue  int64                        `json:"overdue"`
	ByStatus map[model.BorrowStatus]int64 `json:"by_status"`
}

func (s *service) Statistics(ctx context.Context) (*Statistics, error) {
	byStatus, err := s.r.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.r.ListOverdue(ctx, s.now())
	if err != nil {
		return nil, err
	}
	st := &Statistics{ByStatus: byStatus, Overdue: int64(len(overdue))}
	for _, n := range byStatus {
		st.Total += n
	}
	return st, nil
}

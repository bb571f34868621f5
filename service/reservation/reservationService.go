package reservation

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

// errors used by controllers

type ErrCode string

const (
	ErrBookNotFound         ErrCode = "BOOK_NOT_FOUND"
	ErrNotFound             ErrCode = "RESERVATION_NOT_FOUND"
	ErrPaymentNotFound      ErrCode = "PAYMENT_NOT_FOUND"
	ErrBookUnavailable      ErrCode = "BOOK_UNAVAILABLE"
	ErrDuplicateReservation ErrCode = "DUPLICATE_RESERVATION"
	ErrPaymentMismatch      ErrCode = "PAYMENT_MISMATCH"
	ErrPaymentProcessed     ErrCode = "PAYMENT_PROCESSED"
	ErrExpired              ErrCode = "RESERVATION_EXPIRED"
	ErrNotPending           ErrCode = "RESERVATION_NOT_PENDING"
	ErrNotCancellable       ErrCode = "RESERVATION_NOT_CANCELLABLE"
	ErrNotOwner             ErrCode = "NOT_OWNER"
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

// defaultDeposit is charged when a book carries no pricing tier.
const defaultDeposit = 10.0

// dto

type Created struct {
	Reservation *model.Reservation
	PaymentID   int64
}

type Repo interface {
	GetBook(ctx context.Context, bookID int64) (*model.Book, error)
	LockBookAvailability(ctx context.Context, tx database.Tx, bookID int64) (int64, error)
	DecrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error
	IncrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error

	InsertPayment(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error)
	GetPayment(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error)
	SetPaymentStatus(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error

	ActiveExists(ctx context.Context, userID, bookID int64) (bool, error)
	Insert(ctx context.Context, tx database.Tx, userID, bookID, paymentID int64, expiry time.Time) (*model.Reservation, error)
	GetForUpdate(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error)
	MarkReserved(ctx context.Context, tx database.Tx, reservationID int64) error
	MarkExpired(ctx context.Context, tx database.Tx, reservationID int64, reason model.CancelReason) error

	ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	ListByBook(ctx context.Context, bookID int64) ([]model.Reservation, error)
}

type Service interface {
	// Create: place a PENDING reservation and its PENDING deposit payment.
	// Inventory is untouched until the deposit is confirmed.
	Create(ctx context.Context, userID, bookID int64, depositAmount *float64) (*Created, error)

	// ConfirmPayment: deposit paid; reservation becomes RESERVED and one
	// copy is taken, serialized by a row lock on the book.
	ConfirmPayment(ctx context.Context, reservationID, paymentID int64) (*model.Reservation, error)

	// Cancel: owner cancels; a RESERVED copy is restored and a paid
	// deposit is flagged for refund.
	Cancel(ctx context.Context, reservationID, userID int64) error

	// ExpireOld: sweep past-expiry PENDING/RESERVED reservations.
	ExpireOld(ctx context.Context) (int64, error)

	MyReservations(ctx context.Context, userID int64) ([]model.Reservation, error)
	ByBook(ctx context.Context, bookID int64) ([]model.Reservation, error)
}

// ----- Service implementation -----

type Config struct {
	ExpiryHours       int
	DepositPercentage float64
}

type service struct {
	db  database.DB
	r   Repo
	cfg Config
	now func() time.Time
}

func New(db database.DB, r Repo, cfg Config) Service {
	if cfg.ExpiryHours <= 0 {
		cfg.ExpiryHours = 24
	}
	if cfg.DepositPercentage <= 0 {
		cfg.DepositPercentage = 1.0
	}
	return &service{db: db, r: r, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Create(ctx context.Context, userID, bookID int64, depositAmount *float64) (_ *Created, err error) {
	book, err := s.r.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrBookNotFound)
		}
		return nil, err
	}
	if book.AvailableQuantity <= 0 {
		return nil, makeErr(ErrBookUnavailable)
	}

	// One PENDING/RESERVED reservation per (user, book). Existence check
	// only; concurrent creates can still race past it (no unique index).
	exists, err := s.r.ActiveExists(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, makeErr(ErrDuplicateReservation)
	}

	deposit := s.depositFor(book, depositAmount)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	paymentID, err := s.r.InsertPayment(ctx, tx, userID, deposit, model.PaymentDeposit)
	if err != nil {
		return nil, err
	}

	expiry := s.now().Add(time.Duration(s.cfg.ExpiryHours) * time.Hour)
	res, err := s.r.Insert(ctx, tx, userID, bookID, paymentID, expiry)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &Created{Reservation: res, PaymentID: paymentID}, nil
}

func (s *service) depositFor(book *model.Book, override *float64) float64 {
	if override != nil && *override >= 0 {
		return *override
	}
	if book.BookClass != nil {
		return book.BookClass.DepositAmount * s.cfg.DepositPercentage
	}
	return defaultDeposit
}

func (s *service) ConfirmPayment(ctx context.Context, reservationID, paymentID int64) (_ *model.Reservation, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := s.r.GetForUpdate(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if res.PaymentID == nil || *res.PaymentID != paymentID {
		return nil, makeErr(ErrPaymentMismatch)
	}
	if res.Status != model.ReservationPending {
		return nil, makeErr(ErrNotPending)
	}

	payment, err := s.r.GetPayment(ctx, tx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrPaymentNotFound)
		}
		return nil, err
	}
	if payment.Status != model.PaymentPending {
		return nil, makeErr(ErrPaymentProcessed)
	}

	// Expired reservations stay PENDING here; the expiry sweep cleans
	// them up later.
	if res.ExpiryDate.Before(s.now()) {
		return nil, makeErr(ErrExpired)
	}

	// Row lock on the book serializes concurrent confirmations; the loser
	// of the race observes zero availability.
	avail, err := s.r.LockBookAvailability(ctx, tx, res.BookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrBookNotFound)
		}
		return nil, err
	}
	if avail <= 0 {
		return nil, makeErr(ErrBookUnavailable)
	}

	if err = s.r.SetPaymentStatus(ctx, tx, paymentID, model.PaymentPending, model.PaymentPaid); err != nil {
		return nil, err
	}
	if err = s.r.MarkReserved(ctx, tx, reservationID); err != nil {
		return nil, err
	}
	if err = s.r.DecrementAvailable(ctx, tx, res.BookID); err != nil {
		if errors.Is(err, database.ErrNoEffect) {
			return nil, makeErr(ErrBookUnavailable)
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	res.Status = model.ReservationReserved
	return res, nil
}

func (s *service) Cancel(ctx context.Context, reservationID, userID int64) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := s.r.GetForUpdate(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return makeErr(ErrNotFound)
		}
		return err
	}
	if res.UserID != userID {
		return makeErr(ErrNotOwner)
	}
	if res.Status == model.ReservationBorrowed || res.Status == model.ReservationExpired {
		return makeErr(ErrNotCancellable)
	}

	// A confirmed reservation took a copy; give it back.
	if res.Status == model.ReservationReserved {
		if _, err = s.r.LockBookAvailability(ctx, tx, res.BookID); err != nil {
			return err
		}
		if err = s.r.IncrementAvailable(ctx, tx, res.BookID); err != nil {
			return err
		}
	}

	if err = s.r.MarkExpired(ctx, tx, reservationID, model.CancelUserCancelled); err != nil {
		return err
	}

	// A paid deposit flips to FAILED as the refund-needed signal. A lookup
	// failure aborts the cancel; committing without the signal would lose
	// the refund.
	if res.PaymentID != nil {
		payment, perr := s.r.GetPayment(ctx, tx, *res.PaymentID)
		if perr != nil {
			if !errors.Is(perr, sql.ErrNoRows) {
				err = perr
				return err
			}
		} else if payment.Status == model.PaymentPaid {
			if err = s.r.SetPaymentStatus(ctx, tx, *res.PaymentID, model.PaymentPaid, model.PaymentFailed); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *service) ExpireOld(ctx context.Context) (int64, error) {
	expired, err := s.r.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	var count int64
	for _, res := range expired {
		done, err := s.expireOne(ctx, res)
		if err != nil {
			slog.Error("reservation expiry failed", "reservation_id", res.ID, "err", err)
			continue
		}
		if done {
			count++
		}
	}
	return count, nil
}

// expireOne commits each reservation independently so one failure does
// not lose the sweep's progress.
func (s *service) expireOne(ctx context.Context, stale model.Reservation) (done bool, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Re-read under lock: a concurrent confirm, cancel, or competing
	// sweep run may have moved it already.
	res, err := s.r.GetForUpdate(ctx, tx, stale.ID)
	if err != nil {
		return false, err
	}
	if res.Status != model.ReservationPending && res.Status != model.ReservationReserved {
		return false, tx.Commit()
	}
	if res.ExpiryDate.After(s.now()) {
		return false, tx.Commit()
	}

	if res.Status == model.ReservationReserved {
		if _, err = s.r.LockBookAvailability(ctx, tx, res.BookID); err != nil {
			return false, err
		}
		if err = s.r.IncrementAvailable(ctx, tx, res.BookID); err != nil {
			return false, err
		}
	}
	if err = s.r.MarkExpired(ctx, tx, res.ID, model.CancelTimedOut); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) MyReservations(ctx context.Context, userID int64) ([]model.Reservation, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *service) ByBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	return s.r.ListByBook(ctx, bookID)
}

package paymentsvc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

type ErrCode string

const (
	ErrNotFound  ErrCode = "PAYMENT_NOT_FOUND"
	ErrProcessed ErrCode = "PAYMENT_PROCESSED"
	ErrNotOwner  ErrCode = "NOT_OWNER"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

type Repo interface {
	ByID(ctx context.Context, paymentID int64) (*model.Payment, error)
	Confirm(ctx context.Context, tx database.Tx, paymentID int64) error
	ListByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	CountPending(ctx context.Context) (int64, error)
}

type Service interface {
	// Confirm settles a PENDING payment, standing in for the processor
	// callback an integrated gateway would deliver.
	Confirm(ctx context.Context, paymentID, userID int64) (*model.Payment, error)

	ByID(ctx context.Context, paymentID, userID int64) (*model.Payment, error)
	MyPayments(ctx context.Context, userID int64) ([]model.Payment, error)
	CountPending(ctx context.Context) (int64, error)
}

type service struct {
	db database.DB
	r  Repo
}

func New(db database.DB, r Repo) Service {
	return &service{db: db, r: r}
}

func (s *service) Confirm(ctx context.Context, paymentID, userID int64) (_ *model.Payment, err error) {
	p, err := s.r.ByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, makeErr(ErrNotOwner)
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

	if err = s.r.Confirm(ctx, tx, paymentID); err != nil {
		if errors.Is(err, database.ErrNoEffect) {
			return nil, makeErr(ErrProcessed)
		}
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	p.Status = model.PaymentPaid
	return p, nil
}

func (s *service) ByID(ctx context.Context, paymentID, userID int64) (*model.Payment, error) {
	p, err := s.r.ByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, makeErr(ErrNotOwner)
	}
	return p, nil
}

func (s *service) MyPayments(ctx context.Context, userID int64) ([]model.Payment, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *service) CountPending(ctx context.Context) (int64, error) {
	return s.r.CountPending(ctx)
}

package paymentrepo

import (
	"context"
	"database/sql"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

type Repo interface {
	ByID(ctx context.Context, paymentID int64) (*model.Payment, error)
	Confirm(ctx context.Context, tx database.Tx, paymentID int64) error
	ListByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	CountPending(ctx context.Context) (int64, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

func (r *repo) ByID(ctx context.Context, paymentID int64) (*model.Payment, error) {
	const q = `
		SELECT id, amount, payment_type, status, user_id, payment_date
		FROM payments
		WHERE id = $1`
	p := &model.Payment{}
	err := r.db.QueryRowContext(ctx, q, paymentID).Scan(
		&p.ID, &p.Amount, &p.PaymentType, &p.Status, &p.UserID, &p.PaymentDate,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Confirm marks a PENDING payment PAID, simulating the external
// payment-processor callback.
func (r *repo) Confirm(ctx context.Context, tx database.Tx, paymentID int64) error {
	const q = `
		UPDATE payments
		SET status = 'PAID'
		WHERE id = $1
		AND status = 'PENDING'`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, paymentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	const q = `
		SELECT id, amount, payment_type, status, user_id, payment_date
		FROM payments
		WHERE user_id = $1
		ORDER BY payment_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.Amount, &p.PaymentType, &p.Status, &p.UserID, &p.PaymentDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repo) CountPending(ctx context.Context) (int64, error) {
	const q = `
		SELECT COUNT(*)
		FROM payments
		WHERE status = 'PENDING'`
	var n int64
	err := r.db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}

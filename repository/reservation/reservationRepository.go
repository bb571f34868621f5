// repository/reservation/reservationRepository.go
package reservationrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

type Repo interface {
	// Books & pricing
	GetBook(ctx context.Context, bookID int64) (*model.Book, error)
	LockBookAvailability(ctx context.Context, tx database.Tx, bookID int64) (available int64, err error)
	DecrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error
	IncrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error

	// Payments
	InsertPayment(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error)
	GetPayment(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error)
	SetPaymentStatus(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error

	// Reservations
	ActiveExists(ctx context.Context, userID, bookID int64) (bool, error)
	Insert(ctx context.Context, tx database.Tx, userID, bookID, paymentID int64, expiry time.Time) (*model.Reservation, error)
	GetForUpdate(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error)
	MarkReserved(ctx context.Context, tx database.Tx, reservationID int64) error
	MarkExpired(ctx context.Context, tx database.Tx, reservationID int64, reason model.CancelReason) error

	// Queries
	ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	ListByBook(ctx context.Context, bookID int64) ([]model.Reservation, error)
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

// Books & pricing

func (r *repo) GetBook(ctx context.Context, bookID int64) (*model.Book, error) {
	const q = `
		SELECT b.id, b.isbn, b.title, b.author, COALESCE(b.shelf_location, ''),
		       b.total_quantity, b.available_quantity, b.book_class_id, b.created_at,
		       bc.id, bc.name, bc.borrow_fee, bc.deposit_amount, bc.fine_per_day
		FROM books b
		LEFT JOIN book_classes bc ON bc.id = b.book_class_id
		WHERE b.id = $1`
	b := &model.Book{}
	var classID sql.NullInt64
	var className sql.NullString
	var borrowFee, deposit, finePerDay sql.NullFloat64
	err := r.db.QueryRowContext(ctx, q, bookID).Scan(
		&b.ID, &b.ISBN, &b.Title, &b.Author, &b.ShelfLocation,
		&b.TotalQuantity, &b.AvailableQuantity, &b.BookClassID, &b.CreatedAt,
		&classID, &className, &borrowFee, &deposit, &finePerDay,
	)
	if err != nil {
		return nil, err
	}
	if classID.Valid {
		b.BookClass = &model.BookClass{
			ID:            classID.Int64,
			Name:          model.BookClassName(className.String),
			BorrowFee:     borrowFee.Float64,
			DepositAmount: deposit.Float64,
			FinePerDay:    finePerDay.Float64,
		}
	}
	return b, nil
}

func (r *repo) LockBookAvailability(ctx context.Context, tx database.Tx, bookID int64) (int64, error) {
	const q = `
		SELECT available_quantity
		FROM books
		WHERE id = $1
		FOR UPDATE`
	var avail int64
	err := database.Unwrap(tx).QueryRowContext(ctx, q, bookID).Scan(&avail)
	return avail, err
}

func (r *repo) DecrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error {
	// Guard: never go below zero.
	const q = `
		UPDATE books
		SET available_quantity = available_quantity - 1
		WHERE id = $1
		AND available_quantity > 0`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, bookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

func (r *repo) IncrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error {
	// Guard: never exceed total_quantity.
	const q = `
		UPDATE books
		SET available_quantity = available_quantity + 1
		WHERE id = $1
		AND available_quantity < total_quantity`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, bookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

// Payments

func (r *repo) InsertPayment(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error) {
	const q = `
		INSERT INTO payments (user_id, amount, payment_type, status)
		VALUES ($1, $2, $3, 'PENDING')
		RETURNING id`
	var id int64
	err := database.Unwrap(tx).QueryRowContext(ctx, q, userID, amount, ptype).Scan(&id)
	return id, err
}

func (r *repo) GetPayment(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error) {
	const q = `
		SELECT id, amount, payment_type, status, user_id, payment_date
		FROM payments
		WHERE id = $1`
	p := &model.Payment{}
	err := database.Unwrap(tx).QueryRowContext(ctx, q, paymentID).Scan(
		&p.ID, &p.Amount, &p.PaymentType, &p.Status, &p.UserID, &p.PaymentDate,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repo) SetPaymentStatus(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error {
	const q = `
		UPDATE payments
		SET status = $3
		WHERE id = $1
		AND status = $2`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, paymentID, from, to)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

// Reservations

func (r *repo) ActiveExists(ctx context.Context, userID, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE user_id = $1
			AND book_id = $2
			AND status IN ('PENDING', 'RESERVED')
		)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, userID, bookID).Scan(&exists)
	return exists, err
}

func (r *repo) Insert(ctx context.Context, tx database.Tx, userID, bookID, paymentID int64, expiry time.Time) (*model.Reservation, error) {
	const q = `
		INSERT INTO reservations (user_id, book_id, payment_id, expiry_date, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		RETURNING id, user_id, book_id, payment_id, reservation_date, expiry_date, status, cancel_reason`
	return scanReservation(database.Unwrap(tx).QueryRowContext(ctx, q, userID, bookID, paymentID, expiry))
}

func (r *repo) GetForUpdate(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error) {
	const q = `
		SELECT id, user_id, book_id, payment_id, reservation_date, expiry_date, status, cancel_reason
		FROM reservations
		WHERE id = $1
		FOR UPDATE`
	return scanReservation(database.Unwrap(tx).QueryRowContext(ctx, q, reservationID))
}

func (r *repo) MarkReserved(ctx context.Context, tx database.Tx, reservationID int64) error {
	const q = `
		UPDATE reservations
		SET status = 'RESERVED'
		WHERE id = $1
		AND status = 'PENDING'`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, reservationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

func (r *repo) MarkExpired(ctx context.Context, tx database.Tx, reservationID int64, reason model.CancelReason) error {
	const q = `
		UPDATE reservations
		SET status = 'EXPIRED',
		    cancel_reason = $2
		WHERE id = $1
		AND status IN ('PENDING', 'RESERVED')`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, reservationID, reason)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

// Queries

func (r *repo) ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	const q = `
		SELECT id, user_id, book_id, payment_id, reservation_date, expiry_date, status, cancel_reason
		FROM reservations
		WHERE expiry_date < $1
		AND status IN ('PENDING', 'RESERVED')
		ORDER BY id`
	return r.list(ctx, q, now)
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	const q = `
		SELECT id, user_id, book_id, payment_id, reservation_date, expiry_date, status, cancel_reason
		FROM reservations
		WHERE user_id = $1
		ORDER BY reservation_date DESC, id DESC`
	return r.list(ctx, q, userID)
}

func (r *repo) ListByBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	const q = `
		SELECT id, user_id, book_id, payment_id, reservation_date, expiry_date, status, cancel_reason
		FROM reservations
		WHERE book_id = $1
		ORDER BY reservation_date DESC, id DESC`
	return r.list(ctx, q, bookID)
}

func (r *repo) list(ctx context.Context, q string, arg any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		rv, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	rv := &model.Reservation{}
	var reason sql.NullString
	err := row.Scan(
		&rv.ID, &rv.UserID, &rv.BookID, &rv.PaymentID,
		&rv.ReservationDate, &rv.ExpiryDate, &rv.Status, &reason,
	)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		cr := model.CancelReason(reason.String)
		rv.CancelReason = &cr
	}
	return rv, nil
}

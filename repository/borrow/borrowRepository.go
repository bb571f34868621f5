// repository/borrow/borrowRepository.go
package borrowrepo

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

	// Reservations
	GetReservation(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error)
	MarkReservationBorrowed(ctx context.Context, tx database.Tx, reservationID int64) error

	// Payments
	GetPayment(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error)
	InsertPayment(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error)
	SetPaymentStatus(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error
	ExistsPendingFine(ctx context.Context, tx database.Tx, userID int64) (bool, error)

	// Borrows
	ActiveExists(ctx context.Context, userID, bookID int64) (bool, error)
	Insert(ctx context.Context, tx database.Tx, userID, bookID int64, reservationID *int64, due time.Time) (*model.Borrow, error)
	LinkPayment(ctx context.Context, tx database.Tx, borrowID, paymentID int64) error
	GetForUpdate(ctx context.Context, tx database.Tx, borrowID int64) (*model.Borrow, error)
	Approve(ctx context.Context, tx database.Tx, borrowID int64, borrowedAt time.Time) error
	Reject(ctx context.Context, tx database.Tx, borrowID int64) error
	MarkLate(ctx context.Context, tx database.Tx, borrowID int64) error
	RequestReturn(ctx context.Context, tx database.Tx, borrowID int64) error
	CompleteReturn(ctx context.Context, tx database.Tx, borrowID int64, returnedAt time.Time) error

	// Queries
	ByID(ctx context.Context, borrowID int64) (*model.Borrow, error)
	ListOverdue(ctx context.Context, now time.Time) ([]model.Borrow, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Borrow, error)
	ListByStatus(ctx context.Context, status model.BorrowStatus) ([]model.Borrow, error)
	CountByStatus(ctx context.Context) (map[model.BorrowStatus]int64, error)
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

// Reservations

func (r *repo) GetReservation(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error) {
	const q = `
		SELECT id, user_id, book_id, payment_id, reservation_date, expiry_date, status, cancel_reason
		FROM reservations
		WHERE id = $1
		FOR UPDATE`
	rv := &model.Reservation{}
	var reason sql.NullString
	err := database.Unwrap(tx).QueryRowContext(ctx, q, reservationID).Scan(
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

func (r *repo) MarkReservationBorrowed(ctx context.Context, tx database.Tx, reservationID int64) error {
	const q = `
		UPDATE reservations
		SET status = 'BORROWED'
		WHERE id = $1
		AND status = 'RESERVED'`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, reservationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

// Payments

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

func (r *repo) InsertPayment(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error) {
	const q = `
		INSERT INTO payments (user_id, amount, payment_type, status)
		VALUES ($1, $2, $3, 'PENDING')
		RETURNING id`
	var id int64
	err := database.Unwrap(tx).QueryRowContext(ctx, q, userID, amount, ptype).Scan(&id)
	return id, err
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

func (r *repo) ExistsPendingFine(ctx context.Context, tx database.Tx, userID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE user_id = $1
			AND payment_type = 'FINE'
			AND status = 'PENDING'
		)`
	var exists bool
	err := database.Unwrap(tx).QueryRowContext(ctx, q, userID).Scan(&exists)
	return exists, err
}

// Borrows

func (r *repo) ActiveExists(ctx context.Context, userID, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM borrows
			WHERE user_id = $1
			AND book_id = $2
			AND status IN ('PENDING_APPROVAL', 'BORROWED', 'RETURN_PENDING')
		)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, userID, bookID).Scan(&exists)
	return exists, err
}

func (r *repo) Insert(ctx context.Context, tx database.Tx, userID, bookID int64, reservationID *int64, due time.Time) (*model.Borrow, error) {
	const q = `
		INSERT INTO borrows (user_id, book_id, reservation_id, due_date, status)
		VALUES ($1, $2, $3, $4, 'PENDING_APPROVAL')
		RETURNING id, user_id, book_id, reservation_id, payment_id, borrow_date, due_date, return_date, status`
	return scanBorrow(database.Unwrap(tx).QueryRowContext(ctx, q, userID, bookID, reservationID, due))
}

func (r *repo) LinkPayment(ctx context.Context, tx database.Tx, borrowID, paymentID int64) error {
	const q = `
		UPDATE borrows
		SET payment_id = $2
		WHERE id = $1`
	_, err := database.Unwrap(tx).ExecContext(ctx, q, borrowID, paymentID)
	return err
}

func (r *repo) GetForUpdate(ctx context.Context, tx database.Tx, borrowID int64) (*model.Borrow, error) {
	const q = `
		SELECT id, user_id, book_id, reservation_id, payment_id, borrow_date, due_date, return_date, status
		FROM borrows
		WHERE id = $1
		FOR UPDATE`
	return scanBorrow(database.Unwrap(tx).QueryRowContext(ctx, q, borrowID))
}

func (r *repo) Approve(ctx context.Context, tx database.Tx, borrowID int64, borrowedAt time.Time) error {
	const q = `
		UPDATE borrows
		SET status = 'BORROWED',
		    borrow_date = $2
		WHERE id = $1
		AND status = 'PENDING_APPROVAL'`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, borrowID, borrowedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

func (r *repo) Reject(ctx context.Context, tx database.Tx, borrowID int64) error {
	const q = `
		UPDATE borrows
		SET status = 'REJECTED'
		WHERE id = $1
		AND status = 'PENDING_APPROVAL'`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, borrowID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

func (r *repo) MarkLate(ctx context.Context, tx database.Tx, borrowID int64) error {
	const q = `
		UPDATE borrows
		SET status = 'LATE'
		WHERE id = $1
		AND status = 'BORROWED'`
	_, err := database.Unwrap(tx).ExecContext(ctx, q, borrowID)
	return err
}

func (r *repo) RequestReturn(ctx context.Context, tx database.Tx, borrowID int64) error {
	// LATE borrows stay returnable.
	const q = `
		UPDATE borrows
		SET status = 'RETURN_PENDING'
		WHERE id = $1
		AND status IN ('BORROWED', 'LATE')`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, borrowID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

func (r *repo) CompleteReturn(ctx context.Context, tx database.Tx, borrowID int64, returnedAt time.Time) error {
	const q = `
		UPDATE borrows
		SET status = 'RETURNED',
		    return_date = $2
		WHERE id = $1
		AND status = 'RETURN_PENDING'`
	res, err := database.Unwrap(tx).ExecContext(ctx, q, borrowID, returnedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNoEffect
	}
	return nil
}

// Queries

func (r *repo) ByID(ctx context.Context, borrowID int64) (*model.Borrow, error) {
	const q = `
		SELECT id, user_id, book_id, reservation_id, payment_id, borrow_date, due_date, return_date, status
		FROM borrows
		WHERE id = $1`
	return scanBorrow(r.db.QueryRowContext(ctx, q, borrowID))
}

func (r *repo) ListOverdue(ctx context.Context, now time.Time) ([]model.Borrow, error) {
	const q = `
		SELECT id, user_id, book_id, reservation_id, payment_id, borrow_date, due_date, return_date, status
		FROM borrows
		WHERE due_date < $1
		AND status = 'BORROWED'
		AND return_date IS NULL
		ORDER BY id`
	return r.list(ctx, q, now)
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.Borrow, error) {
	const q = `
		SELECT id, user_id, book_id, reservation_id, payment_id, borrow_date, due_date, return_date, status
		FROM borrows
		WHERE user_id = $1
		ORDER BY id DESC`
	return r.list(ctx, q, userID)
}

func (r *repo) ListByStatus(ctx context.Context, status model.BorrowStatus) ([]model.Borrow, error) {
	const q = `
		SELECT id, user_id, book_id, reservation_id, payment_id, borrow_date, due_date, return_date, status
		FROM borrows
		WHERE status = $1
		ORDER BY id DESC`
	return r.list(ctx, q, status)
}

func (r *repo) CountByStatus(ctx context.Context) (map[model.BorrowStatus]int64, error) {
	const q = `
		SELECT status, COUNT(*)
		FROM borrows
		GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.BorrowStatus]int64)
	for rows.Next() {
		var st model.BorrowStatus
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

func (r *repo) list(ctx context.Context, q string, arg any) ([]model.Borrow, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Borrow
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBorrow(row rowScanner) (*model.Borrow, error) {
	b := &model.Borrow{}
	err := row.Scan(
		&b.ID, &b.UserID, &b.BookID, &b.ReservationID, &b.PaymentID,
		&b.BorrowDate, &b.DueDate, &b.ReturnDate, &b.Status,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

package bookrepo

import (
	"context"
	"database/sql"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	List(ctx context.Context) ([]model.Book, error)
	ListAvailable(ctx context.Context) ([]model.Book, error)
	ByID(ctx context.Context, id int64) (*model.Book, error)
	ByISBN(ctx context.Context, isbn string) (*model.Book, error)
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	AdjustAvailability(ctx context.Context, id int64, delta int64) (*model.Book, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const bookCols = `
	b.id, b.isbn, b.title, b.author, COALESCE(b.shelf_location, ''),
	b.total_quantity, b.available_quantity, b.book_class_id, b.created_at`

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
		INSERT INTO books (isbn, title, author, shelf_location, total_quantity, available_quantity, book_class_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q,
		b.ISBN, b.Title, b.Author, b.ShelfLocation,
		b.TotalQuantity, b.AvailableQuantity, b.BookClassID,
	).Scan(&b.ID, &b.CreatedAt)
}

func (r *repo) List(ctx context.Context) ([]model.Book, error) {
	const q = `
		SELECT ` + bookCols + `
		FROM books b
		ORDER BY b.id DESC`
	return r.list(ctx, q)
}

func (r *repo) ListAvailable(ctx context.Context) ([]model.Book, error) {
	const q = `
		SELECT ` + bookCols + `
		FROM books b
		WHERE b.available_quantity > 0
		ORDER BY b.id DESC`
	return r.list(ctx, q)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Book, error) {
	const q = `
		SELECT ` + bookCols + `
		FROM books b
		WHERE b.id = $1`
	return scanBook(r.db.QueryRowContext(ctx, q, id))
}

func (r *repo) ByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	const q = `
		SELECT ` + bookCols + `
		FROM books b
		WHERE b.isbn = $1`
	return scanBook(r.db.QueryRowContext(ctx, q, isbn))
}

func (r *repo) Update(ctx context.Context, b *model.Book) error {
	const q = `
		UPDATE books
		SET isbn = $2,
		    title = $3,
		    author = $4,
		    shelf_location = $5,
		    total_quantity = $6,
		    available_quantity = $7,
		    book_class_id = $8
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q,
		b.ID, b.ISBN, b.Title, b.Author, b.ShelfLocation,
		b.TotalQuantity, b.AvailableQuantity, b.BookClassID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdjustAvailability applies an admin delta while holding the counter
// inside [0, total_quantity].
func (r *repo) AdjustAvailability(ctx context.Context, id int64, delta int64) (*model.Book, error) {
	const q = `
		UPDATE books
		SET available_quantity = available_quantity + $2
		WHERE id = $1
		AND available_quantity + $2 >= 0
		AND available_quantity + $2 <= total_quantity
		RETURNING id, isbn, title, author, COALESCE(shelf_location, ''),
		          total_quantity, available_quantity, book_class_id, created_at`
	b, err := scanBook(r.db.QueryRowContext(ctx, q, id, delta))
	if err == sql.ErrNoRows {
		return nil, database.ErrNoEffect
	}
	return b, err
}

func (r *repo) list(ctx context.Context, q string) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
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

func scanBook(row rowScanner) (*model.Book, error) {
	b := &model.Book{}
	err := row.Scan(
		&b.ID, &b.ISBN, &b.Title, &b.Author, &b.ShelfLocation,
		&b.TotalQuantity, &b.AvailableQuantity, &b.BookClassID, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

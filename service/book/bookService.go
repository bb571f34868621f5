package booksvc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

type ErrCode string

const (
	ErrNotFound      ErrCode = "BOOK_NOT_FOUND"
	ErrDuplicateISBN ErrCode = "DUPLICATE_ISBN"
	ErrInvalid       ErrCode = "INVALID_BOOK"
	ErrConflict      ErrCode = "INVENTORY_CONFLICT"
	ErrInUse         ErrCode = "BOOK_IN_USE"
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
	Create(ctx context.Context, b *model.Book) error
	List(ctx context.Context) ([]model.Book, error)
	ListAvailable(ctx context.Context) ([]model.Book, error)
	ByID(ctx context.Context, id int64) (*model.Book, error)
	ByISBN(ctx context.Context, isbn string) (*model.Book, error)
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	AdjustAvailability(ctx context.Context, id int64, delta int64) (*model.Book, error)
}

type Service interface {
	Create(ctx context.Context, b *model.Book) (*model.Book, error)
	List(ctx context.Context, availableOnly bool) ([]model.Book, error)
	ByID(ctx context.Context, id int64) (*model.Book, error)
	ByISBN(ctx context.Context, isbn string) (*model.Book, error)
	Update(ctx context.Context, b *model.Book) (*model.Book, error)
	Delete(ctx context.Context, id int64) error

	// AdjustAvailability applies an admin correction; the repo guard keeps
	// available inside [0, total].
	AdjustAvailability(ctx context.Context, id int64, delta int64) (*model.Book, error)
}

type service struct{ r Repo }

func New(r Repo) Service { return &service{r: r} }

func (s *service) Create(ctx context.Context, b *model.Book) (*model.Book, error) {
	if err := validate(b); err != nil {
		return nil, err
	}
	if b.AvailableQuantity == 0 {
		b.AvailableQuantity = b.TotalQuantity
	}
	if err := s.r.Create(ctx, b); err != nil {
		if isUnique(err) {
			return nil, makeErr(ErrDuplicateISBN)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) List(ctx context.Context, availableOnly bool) ([]model.Book, error) {
	if availableOnly {
		return s.r.ListAvailable(ctx)
	}
	return s.r.List(ctx)
}

func (s *service) ByID(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) ByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	b, err := s.r.ByISBN(ctx, isbn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) Update(ctx context.Context, b *model.Book) (*model.Book, error) {
	if err := validate(b); err != nil {
		return nil, err
	}
	if b.AvailableQuantity > b.TotalQuantity {
		return nil, makeErr(ErrConflict)
	}
	if err := s.r.Update(ctx, b); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, makeErr(ErrNotFound)
		case isUnique(err):
			return nil, makeErr(ErrDuplicateISBN)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.r.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return makeErr(ErrNotFound)
	case isFK(err):
		// Reservations or borrows still reference the book.
		return makeErr(ErrInUse)
	}
	return err
}

func (s *service) AdjustAvailability(ctx context.Context, id int64, delta int64) (*model.Book, error) {
	if _, err := s.ByID(ctx, id); err != nil {
		return nil, err
	}
	b, err := s.r.AdjustAvailability(ctx, id, delta)
	if err != nil {
		if errors.Is(err, database.ErrNoEffect) {
			return nil, makeErr(ErrConflict)
		}
		return nil, err
	}
	return b, nil
}

func validate(b *model.Book) error {
	if b.ISBN == "" || b.Title == "" || b.Author == "" || b.TotalQuantity < 0 || b.AvailableQuantity < 0 {
		return makeErr(ErrInvalid)
	}
	return nil
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isFK(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

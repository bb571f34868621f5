package booksvc_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omaraymanatia/settle-library-management-system/model"
	booksvc "github.com/omaraymanatia/settle-library-management-system/service/book"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

type repoMock struct {
	createFn        func(ctx context.Context, b *model.Book) error
	listFn          func(ctx context.Context) ([]model.Book, error)
	listAvailableFn func(ctx context.Context) ([]model.Book, error)
	byIDFn          func(ctx context.Context, id int64) (*model.Book, error)
	byISBNFn        func(ctx context.Context, isbn string) (*model.Book, error)
	updateFn        func(ctx context.Context, b *model.Book) error
	deleteFn        func(ctx context.Context, id int64) error
	adjustFn        func(ctx context.Context, id int64, delta int64) (*model.Book, error)
}

var _ booksvc.Repo = (*repoMock)(nil)

func (m *repoMock) Create(ctx context.Context, b *model.Book) error { return m.createFn(ctx, b) }
func (m *repoMock) List(ctx context.Context) ([]model.Book, error)  { return m.listFn(ctx) }
func (m *repoMock) ListAvailable(ctx context.Context) ([]model.Book, error) {
	return m.listAvailableFn(ctx)
}
func (m *repoMock) ByID(ctx context.Context, id int64) (*model.Book, error) {
	return m.byIDFn(ctx, id)
}
func (m *repoMock) ByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return m.byISBNFn(ctx, isbn)
}
func (m *repoMock) Update(ctx context.Context, b *model.Book) error { return m.updateFn(ctx, b) }
func (m *repoMock) Delete(ctx context.Context, id int64) error      { return m.deleteFn(ctx, id) }
func (m *repoMock) AdjustAvailability(ctx context.Context, id int64, delta int64) (*model.Book, error) {
	return m.adjustFn(ctx, id, delta)
}

func TestCreate_Validation(t *testing.T) {
	s := booksvc.New(&repoMock{})
	cases := []model.Book{
		{Title: "t", Author: "a", TotalQuantity: 1},            // no ISBN
		{ISBN: "i", Author: "a", TotalQuantity: 1},             // no title
		{ISBN: "i", Title: "t", TotalQuantity: 1},              // no author
		{ISBN: "i", Title: "t", Author: "a", TotalQuantity: -1}, // negative stock
	}
	for i := range cases {
		_, err := s.Create(context.Background(), &cases[i])
		require.Error(t, err)
		require.Equal(t, booksvc.ErrInvalid, booksvc.Code(err))
	}
}

func TestCreate_DefaultsAvailableToTotal(t *testing.T) {
	m := &repoMock{
		createFn: func(ctx context.Context, b *model.Book) error {
			b.ID = 42
			return nil
		},
	}
	s := booksvc.New(m)

	b, err := s.Create(context.Background(), &model.Book{
		ISBN: "978-0", Title: "Clean Code", Author: "Martin", TotalQuantity: 5,
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), b.ID)
	require.Equal(t, int64(5), b.AvailableQuantity)
}

func TestByID_NotFound(t *testing.T) {
	m := &repoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return nil, sql.ErrNoRows
		},
	}
	s := booksvc.New(m)

	_, err := s.ByID(context.Background(), 99)
	require.Error(t, err)
	require.Equal(t, booksvc.ErrNotFound, booksvc.Code(err))
}

func TestUpdate_AvailableAboveTotal(t *testing.T) {
	s := booksvc.New(&repoMock{})

	_, err := s.Update(context.Background(), &model.Book{
		ID: 1, ISBN: "i", Title: "t", Author: "a",
		TotalQuantity: 2, AvailableQuantity: 3,
	})
	require.Error(t, err)
	require.Equal(t, booksvc.ErrConflict, booksvc.Code(err))
}

func TestAdjustAvailability_GuardConflict(t *testing.T) {
	m := &repoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return &model.Book{ID: id, TotalQuantity: 3, AvailableQuantity: 0}, nil
		},
		adjustFn: func(ctx context.Context, id int64, delta int64) (*model.Book, error) {
			return nil, database.ErrNoEffect
		},
	}
	s := booksvc.New(m)

	_, err := s.AdjustAvailability(context.Background(), 7, -1)
	require.Error(t, err)
	require.Equal(t, booksvc.ErrConflict, booksvc.Code(err))
}

func TestAdjustAvailability_Success(t *testing.T) {
	m := &repoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return &model.Book{ID: id, TotalQuantity: 3, AvailableQuantity: 1}, nil
		},
		adjustFn: func(ctx context.Context, id int64, delta int64) (*model.Book, error) {
			require.Equal(t, int64(2), delta)
			return &model.Book{ID: id, TotalQuantity: 3, AvailableQuantity: 3}, nil
		},
	}
	s := booksvc.New(m)

	b, err := s.AdjustAvailability(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), b.AvailableQuantity)
}

func TestList_AvailableFilter(t *testing.T) {
	m := &repoMock{
		listFn: func(ctx context.Context) ([]model.Book, error) {
			return []model.Book{{ID: 1}, {ID: 2}}, nil
		},
		listAvailableFn: func(ctx context.Context) ([]model.Book, error) {
			return []model.Book{{ID: 1}}, nil
		},
	}
	s := booksvc.New(m)

	all, err := s.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	avail, err := s.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, avail, 1)
}

func TestDelete_NotFound(t *testing.T) {
	m := &repoMock{
		deleteFn: func(ctx context.Context, id int64) error { return sql.ErrNoRows },
	}
	s := booksvc.New(m)

	err := s.Delete(context.Background(), 5)
	require.Error(t, err)
	require.Equal(t, booksvc.ErrNotFound, booksvc.Code(err))
}

func TestDelete_PlainErrorPassesThrough(t *testing.T) {
	boom := errors.New("db down")
	m := &repoMock{
		deleteFn: func(ctx context.Context, id int64) error { return boom },
	}
	s := booksvc.New(m)

	err := s.Delete(context.Background(), 5)
	require.ErrorIs(t, err, boom)
	require.Equal(t, booksvc.ErrCode(""), booksvc.Code(err))
}

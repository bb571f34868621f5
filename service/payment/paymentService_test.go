package paymentsvc

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type fakeDB struct{ txs []*fakeTx }

func (d *fakeDB) Begin(ctx context.Context) (database.Tx, error) {
	tx := &fakeTx{}
	d.txs = append(d.txs, tx)
	return tx, nil
}

type repoMock struct {
	byIDFn         func(ctx context.Context, paymentID int64) (*model.Payment, error)
	confirmFn      func(ctx context.Context, tx database.Tx, paymentID int64) error
	listByUserFn   func(ctx context.Context, userID int64) ([]model.Payment, error)
	countPendingFn func(ctx context.Context) (int64, error)
}

var _ Repo = (*repoMock)(nil)

func (m *repoMock) ByID(ctx context.Context, paymentID int64) (*model.Payment, error) {
	return m.byIDFn(ctx, paymentID)
}
func (m *repoMock) Confirm(ctx context.Context, tx database.Tx, paymentID int64) error {
	return m.confirmFn(ctx, tx, paymentID)
}
func (m *repoMock) ListByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	return m.listByUserFn(ctx, userID)
}
func (m *repoMock) CountPending(ctx context.Context) (int64, error) {
	return m.countPendingFn(ctx)
}

func TestConfirm_Success(t *testing.T) {
	db := &fakeDB{}
	m := &repoMock{
		byIDFn: func(ctx context.Context, paymentID int64) (*model.Payment, error) {
			return &model.Payment{ID: paymentID, UserID: 10, Amount: 5, Status: model.PaymentPending}, nil
		},
		confirmFn: func(ctx context.Context, tx database.Tx, paymentID int64) error { return nil },
	}
	s := New(db, m)

	p, err := s.Confirm(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, model.PaymentPaid, p.Status)
	require.True(t, db.txs[0].committed)
}

func TestConfirm_AlreadyProcessed(t *testing.T) {
	db := &fakeDB{}
	m := &repoMock{
		byIDFn: func(ctx context.Context, paymentID int64) (*model.Payment, error) {
			return &model.Payment{ID: paymentID, UserID: 10, Status: model.PaymentPaid}, nil
		},
		confirmFn: func(ctx context.Context, tx database.Tx, paymentID int64) error {
			return database.ErrNoEffect
		},
	}
	s := New(db, m)

	_, err := s.Confirm(context.Background(), 1, 10)
	require.Equal(t, ErrProcessed, Code(err))
	require.True(t, db.txs[0].rolledBack)
}

func TestConfirm_NotOwner(t *testing.T) {
	m := &repoMock{
		byIDFn: func(ctx context.Context, paymentID int64) (*model.Payment, error) {
			return &model.Payment{ID: paymentID, UserID: 10, Status: model.PaymentPending}, nil
		},
	}
	s := New(&fakeDB{}, m)

	_, err := s.Confirm(context.Background(), 1, 999)
	require.Equal(t, ErrNotOwner, Code(err))
}

func TestByID_NotFound(t *testing.T) {
	m := &repoMock{
		byIDFn: func(ctx context.Context, paymentID int64) (*model.Payment, error) {
			return nil, sql.ErrNoRows
		},
	}
	s := New(&fakeDB{}, m)

	_, err := s.ByID(context.Background(), 404, 10)
	require.Equal(t, ErrNotFound, Code(err))
}

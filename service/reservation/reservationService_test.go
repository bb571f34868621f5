package reservation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omaraymanatia/settle-library-management-system/model"
	"github.com/omaraymanatia/settle-library-management-system/util/database"
)

var now0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

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
	getBookFn           func(ctx context.Context, bookID int64) (*model.Book, error)
	lockAvailabilityFn  func(ctx context.Context, tx database.Tx, bookID int64) (int64, error)
	decrementFn         func(ctx context.Context, tx database.Tx, bookID int64) error
	incrementFn         func(ctx context.Context, tx database.Tx, bookID int64) error
	insertPaymentFn     func(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error)
	getPaymentFn        func(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error)
	setPaymentStatusFn  func(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error
	activeExistsFn      func(ctx context.Context, userID, bookID int64) (bool, error)
	insertFn            func(ctx context.Context, tx database.Tx, userID, bookID, paymentID int64, expiry time.Time) (*model.Reservation, error)
	getForUpdateFn      func(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error)
	markReservedFn      func(ctx context.Context, tx database.Tx, reservationID int64) error
	markExpiredFn       func(ctx context.Context, tx database.Tx, reservationID int64, reason model.CancelReason) error
	listExpiredFn       func(ctx context.Context, now time.Time) ([]model.Reservation, error)
	listByUserFn        func(ctx context.Context, userID int64) ([]model.Reservation, error)
	listByBookFn        func(ctx context.Context, bookID int64) ([]model.Reservation, error)
}

var _ Repo = (*repoMock)(nil)

func (m *repoMock) GetBook(ctx context.Context, bookID int64) (*model.Book, error) {
	return m.getBookFn(ctx, bookID)
}
func (m *repoMock) LockBookAvailability(ctx context.Context, tx database.Tx, bookID int64) (int64, error) {
	return m.lockAvailabilityFn(ctx, tx, bookID)
}
func (m *repoMock) DecrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error {
	return m.decrementFn(ctx, tx, bookID)
}
func (m *repoMock) IncrementAvailable(ctx context.Context, tx database.Tx, bookID int64) error {
	return m.incrementFn(ctx, tx, bookID)
}
func (m *repoMock) InsertPayment(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error) {
	return m.insertPaymentFn(ctx, tx, userID, amount, ptype)
}
func (m *repoMock) GetPayment(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error) {
	return m.getPaymentFn(ctx, tx, paymentID)
}
func (m *repoMock) SetPaymentStatus(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error {
	return m.setPaymentStatusFn(ctx, tx, paymentID, from, to)
}
func (m *repoMock) ActiveExists(ctx context.Context, userID, bookID int64) (bool, error) {
	return m.activeExistsFn(ctx, userID, bookID)
}
func (m *repoMock) Insert(ctx context.Context, tx database.Tx, userID, bookID, paymentID int64, expiry time.Time) (*model.Reservation, error) {
	return m.insertFn(ctx, tx, userID, bookID, paymentID, expiry)
}
func (m *repoMock) GetForUpdate(ctx context.Context, tx database.Tx, reservationID int64) (*model.Reservation, error) {
	return m.getForUpdateFn(ctx, tx, reservationID)
}
func (m *repoMock) MarkReserved(ctx context.Context, tx database.Tx, reservationID int64) error {
	return m.markReservedFn(ctx, tx, reservationID)
}
func (m *repoMock) MarkExpired(ctx context.Context, tx database.Tx, reservationID int64, reason model.CancelReason) error {
	return m.markExpiredFn(ctx, tx, reservationID, reason)
}
func (m *repoMock) ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	return m.listExpiredFn(ctx, now)
}
func (m *repoMock) ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	return m.listByUserFn(ctx, userID)
}
func (m *repoMock) ListByBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	return m.listByBookFn(ctx, bookID)
}

func newTestService(db *fakeDB, r Repo, cfg Config) *service {
	if cfg.ExpiryHours == 0 {
		cfg.ExpiryHours = 24
	}
	if cfg.DepositPercentage == 0 {
		cfg.DepositPercentage = 1.0
	}
	return &service{db: db, r: r, cfg: cfg, now: func() time.Time { return now0 }}
}

func tierBook(id int64, avail int64) *model.Book {
	return &model.Book{
		ID: id, ISBN: "978-1", Title: "SICP", Author: "Abelson",
		TotalQuantity: 5, AvailableQuantity: avail,
		BookClass: &model.BookClass{
			Name: model.ClassA, BorrowFee: 5, DepositAmount: 20, FinePerDay: 2,
		},
	}
}

func TestCreate_Success(t *testing.T) {
	db := &fakeDB{}
	var gotDeposit float64
	var gotExpiry time.Time
	m := &repoMock{
		getBookFn: func(ctx context.Context, bookID int64) (*model.Book, error) {
			return tierBook(bookID, 3), nil
		},
		activeExistsFn: func(ctx context.Context, userID, bookID int64) (bool, error) {
			return false, nil
		},
		insertPaymentFn: func(ctx context.Context, tx database.Tx, userID int64, amount float64, ptype model.PaymentType) (int64, error) {
			require.Equal(t, model.PaymentDeposit, ptype)
			gotDeposit = amount
			return 77, nil
		},
		insertFn: func(ctx context.Context, tx database.Tx, userID, bookID, paymentID int64, expiry time.Time) (*model.Reservation, error) {
			gotExpiry = expiry
			pid := paymentID
			return &model.Reservation{
				ID: 1, UserID: userID, BookID: bookID, PaymentID: &pid,
				ReservationDate: now0, ExpiryDate: expiry,
				Status: model.ReservationPending,
			}, nil
		},
	}
	s := newTestService(db, m, Config{ExpiryHours: 48, DepositPercentage: 0.5})

	out, err := s.Create(context.Background(), 10, 20, nil)
	require.NoError(t, err)
	require.Equal(t, int64(77), out.PaymentID)
	require.Equal(t, model.ReservationPending, out.Reservation.Status)
	require.Equal(t, 10.0, gotDeposit) // 20 * 0.5
	require.Equal(t, now0.Add(48*time.Hour), gotExpiry)
	require.Len(t, db.txs, 1)
	require.True(t, db.txs[0].committed)
}

func TestCreate_DepositOverrideAndDefault(t *testing.T) {
	s := newTestService(&fakeDB{}, &repoMock{}, Config{})

	override := 3.5
	require.Equal(t, 3.5, s.depositFor(tierBook(1, 1), &override))

	// No tier: flat default.
	require.Equal(t, defaultDeposit, s.depositFor(&model.Book{ID: 1}, nil))
}

func TestCreate_Duplicate(t *testing.T) {
	m := &repoMock{
		getBookFn: func(ctx context.Context, bookID int64) (*model.Book, error) {
			return tierBook(bookID, 3), nil
		},
		activeExistsFn: func(ctx context.Context, userID, bookID int64) (bool, error) {
			return true, nil
		},
	}
	s := newTestService(&fakeDB{}, m, Config{})

	_, err := s.Create(context.Background(), 10, 20, nil)
	require.Error(t, err)
	require.Equal(t, ErrDuplicateReservation, Code(err))
}

func TestCreate_BookGone(t *testing.T) {
	m := &repoMock{
		getBookFn: func(ctx context.Context, bookID int64) (*model.Book, error) {
			return nil, sql.ErrNoRows
		},
	}
	s := newTestService(&fakeDB{}, m, Config{})

	_, err := s.Create(context.Background(), 10, 20, nil)
	require.Equal(t, ErrBookNotFound, Code(err))
}

func TestCreate_NoCopies(t *testing.T) {
	m := &repoMock{
		getBookFn: func(ctx context.Context, bookID int64) (*model.Book, error) {
			return tierBook(bookID, 0), nil
		},
	}
	s := newTestService(&fakeDB{}, m, Config{})

	_, err := s.Create(context.Background(), 10, 20, nil)
	require.Equal(t, ErrBookUnavailable, Code(err))
}

func pendingReservation(id, userID, bookID, paymentID int64) *model.Reservation {
	pid := paymentID
	return &model.Reservation{
		ID: id, UserID: userID, BookID: bookID, PaymentID: &pid,
		ReservationDate: now0.Add(-time.Hour),
		ExpiryDate:      now0.Add(time.Hour),
		Status:          model.ReservationPending,
	}
}

func TestConfirmPayment_Success(t *testing.T) {
	db := &fakeDB{}
	var decremented, reserved, paid bool
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			return pendingReservation(id, 10, 20, 77), nil
		},
		getPaymentFn: func(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error) {
			return &model.Payment{ID: paymentID, UserID: 10, Amount: 10, PaymentType: model.PaymentDeposit, Status: model.PaymentPending}, nil
		},
		lockAvailabilityFn: func(ctx context.Context, tx database.Tx, bookID int64) (int64, error) {
			return 1, nil
		},
		setPaymentStatusFn: func(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error {
			require.Equal(t, model.PaymentPending, from)
			require.Equal(t, model.PaymentPaid, to)
			paid = true
			return nil
		},
		markReservedFn: func(ctx context.Context, tx database.Tx, id int64) error {
			reserved = true
			return nil
		},
		decrementFn: func(ctx context.Context, tx database.Tx, bookID int64) error {
			decremented = true
			return nil
		},
	}
	s := newTestService(db, m, Config{})

	res, err := s.ConfirmPayment(context.Background(), 1, 77)
	require.NoError(t, err)
	require.Equal(t, model.ReservationReserved, res.Status)
	require.True(t, paid)
	require.True(t, reserved)
	require.True(t, decremented)
	require.True(t, db.txs[0].committed)
}

func TestConfirmPayment_PaymentMismatch(t *testing.T) {
	db := &fakeDB{}
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			return pendingReservation(id, 10, 20, 77), nil
		},
	}
	s := newTestService(db, m, Config{})

	_, err := s.ConfirmPayment(context.Background(), 1, 999)
	require.Equal(t, ErrPaymentMismatch, Code(err))
	require.True(t, db.txs[0].rolledBack)
}

func TestConfirmPayment_Expired(t *testing.T) {
	db := &fakeDB{}
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			res := pendingReservation(id, 10, 20, 77)
			res.ExpiryDate = now0.Add(-time.Minute)
			return res, nil
		},
		getPaymentFn: func(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error) {
			return &model.Payment{ID: paymentID, Status: model.PaymentPending}, nil
		},
	}
	s := newTestService(db, m, Config{})

	_, err := s.ConfirmPayment(context.Background(), 1, 77)
	require.Equal(t, ErrExpired, Code(err))
	require.True(t, db.txs[0].rolledBack)
}

func TestConfirmPayment_LastCopyRace(t *testing.T) {
	db := &fakeDB{}
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			return pendingReservation(id, 10, 20, 77), nil
		},
		getPaymentFn: func(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error) {
			return &model.Payment{ID: paymentID, Status: model.PaymentPending}, nil
		},
		lockAvailabilityFn: func(ctx context.Context, tx database.Tx, bookID int64) (int64, error) {
			return 1, nil
		},
		setPaymentStatusFn: func(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error {
			return nil
		},
		markReservedFn: func(ctx context.Context, tx database.Tx, id int64) error { return nil },
		decrementFn: func(ctx context.Context, tx database.Tx, bookID int64) error {
			return database.ErrNoEffect
		},
	}
	s := newTestService(db, m, Config{})

	_, err := s.ConfirmPayment(context.Background(), 1, 77)
	require.Equal(t, ErrBookUnavailable, Code(err))
	require.True(t, db.txs[0].rolledBack)
	require.False(t, db.txs[0].committed)
}

func TestConfirmPayment_AlreadyConfirmed(t *testing.T) {
	db := &fakeDB{}
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			res := pendingReservation(id, 10, 20, 77)
			res.Status = model.ReservationReserved
			return res, nil
		},
	}
	s := newTestService(db, m, Config{})

	_, err := s.ConfirmPayment(context.Background(), 1, 77)
	require.Equal(t, ErrNotPending, Code(err))
}

func TestCancel_ReservedRestoresCopyAndFlagsRefund(t *testing.T) {
	db := &fakeDB{}
	var incremented bool
	var gotReason model.CancelReason
	var refundFrom, refundTo model.PaymentStatus
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			res := pendingReservation(id, 10, 20, 77)
			res.Status = model.ReservationReserved
			return res, nil
		},
		lockAvailabilityFn: func(ctx context.Context, tx database.Tx, bookID int64) (int64, error) {
			return 0, nil
		},
		incrementFn: func(ctx context.Context, tx database.Tx, bookID int64) error {
			incremented = true
			return nil
		},
		markExpiredFn: func(ctx context.Context, tx database.Tx, id int64, reason model.CancelReason) error {
			gotReason = reason
			return nil
		},
		getPaymentFn: func(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error) {
			return &model.Payment{ID: paymentID, Status: model.PaymentPaid}, nil
		},
		setPaymentStatusFn: func(ctx context.Context, tx database.Tx, paymentID int64, from, to model.PaymentStatus) error {
			refundFrom, refundTo = from, to
			return nil
		},
	}
	s := newTestService(db, m, Config{})

	require.NoError(t, s.Cancel(context.Background(), 1, 10))
	require.True(t, incremented)
	require.Equal(t, model.CancelUserCancelled, gotReason)
	require.Equal(t, model.PaymentPaid, refundFrom)
	require.Equal(t, model.PaymentFailed, refundTo)
	require.True(t, db.txs[0].committed)
}

func TestCancel_PaymentLookupErrorAborts(t *testing.T) {
	db := &fakeDB{}
	boom := errors.New("connection reset")
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			return pendingReservation(id, 10, 20, 77), nil
		},
		markExpiredFn: func(ctx context.Context, tx database.Tx, id int64, reason model.CancelReason) error {
			return nil
		},
		getPaymentFn: func(ctx context.Context, tx database.Tx, paymentID int64) (*model.Payment, error) {
			return nil, boom
		},
	}
	s := newTestService(db, m, Config{})

	err := s.Cancel(context.Background(), 1, 10)
	require.ErrorIs(t, err, boom)
	require.True(t, db.txs[0].rolledBack)
	require.False(t, db.txs[0].committed)
}

func TestCancel_NotOwner(t *testing.T) {
	db := &fakeDB{}
	m := &repoMock{
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			return pendingReservation(id, 10, 20, 77), nil
		},
	}
	s := newTestService(db, m, Config{})

	err := s.Cancel(context.Background(), 1, 999)
	require.Equal(t, ErrNotOwner, Code(err))
	require.True(t, db.txs[0].rolledBack)
}

func TestCancel_TerminalStates(t *testing.T) {
	for _, st := range []model.ReservationStatus{model.ReservationBorrowed, model.ReservationExpired} {
		db := &fakeDB{}
		m := &repoMock{
			getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
				res := pendingReservation(id, 10, 20, 77)
				res.Status = st
				return res, nil
			},
		}
		s := newTestService(db, m, Config{})

		err := s.Cancel(context.Background(), 1, 10)
		require.Equal(t, ErrNotCancellable, Code(err), "status %s", st)
	}
}

func TestExpireOld_SkipsMovedAndCountsExpired(t *testing.T) {
	db := &fakeDB{}
	latest := map[int64]model.ReservationStatus{
		1: model.ReservationPending,  // still stale, expires
		2: model.ReservationBorrowed, // confirmed meanwhile, skipped
		3: model.ReservationReserved, // stale RESERVED, restores a copy
	}
	var increments int
	var expired []int64
	m := &repoMock{
		listExpiredFn: func(ctx context.Context, now time.Time) ([]model.Reservation, error) {
			return []model.Reservation{
				*pendingReservation(1, 10, 20, 77),
				*pendingReservation(2, 11, 20, 78),
				*pendingReservation(3, 12, 21, 79),
			}, nil
		},
		getForUpdateFn: func(ctx context.Context, tx database.Tx, id int64) (*model.Reservation, error) {
			res := pendingReservation(id, 10, 20, 77)
			res.Status = latest[id]
			res.ExpiryDate = now0.Add(-time.Minute)
			return res, nil
		},
		lockAvailabilityFn: func(ctx context.Context, tx database.Tx, bookID int64) (int64, error) {
			return 0, nil
		},
		incrementFn: func(ctx context.Context, tx database.Tx, bookID int64) error {
			increments++
			return nil
		},
		markExpiredFn: func(ctx context.Context, tx database.Tx, id int64, reason model.CancelReason) error {
			require.Equal(t, model.CancelTimedOut, reason)
			expired = append(expired, id)
			return nil
		},
	}
	s := newTestService(db, m, Config{})

	count, err := s.ExpireOld(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.ElementsMatch(t, []int64{1, 3}, expired)
	require.Equal(t, 1, increments) // only the RESERVED one
	require.Len(t, db.txs, 3)      // one tx per item
	for _, tx := range db.txs {
		require.True(t, tx.committed)
	}
}

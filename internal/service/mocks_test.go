package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-booking/internal/model"
	"github.com/iliyamo/travel-booking/internal/queue"
)

// newMockDB returns a sqlx handle whose only job in these tests is to hand
// out transactions; the stores themselves are testify mocks.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

var anyTx = mock.Anything

type MockTourStore struct{ mock.Mock }

func (m *MockTourStore) GetByID(ctx context.Context, id uint64) (*model.Tour, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tour), args.Error(1)
}

func (m *MockTourStore) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Tour, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tour), args.Error(1)
}

func (m *MockTourStore) ReserveSeatsTx(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error {
	return m.Called(ctx, tx, tourID, n).Error(0)
}

func (m *MockTourStore) ReleaseSeatsTx(ctx context.Context, tx *sqlx.Tx, tourID uint64, n int) error {
	return m.Called(ctx, tx, tourID, n).Error(0)
}

type MockBookingStore struct{ mock.Mock }

func (m *MockBookingStore) CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking) error {
	return m.Called(ctx, tx, b).Error(0)
}

func (m *MockBookingStore) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingStore) GetByNumber(ctx context.Context, number string) (*model.Booking, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingStore) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Booking, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingStore) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, b *model.Booking, from model.BookingStatus) error {
	return m.Called(ctx, tx, b, from).Error(0)
}

func (m *MockBookingStore) ListOverdue(ctx context.Context, now time.Time, after model.OverdueRef, limit int) ([]model.OverdueRef, error) {
	args := m.Called(ctx, now, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OverdueRef), args.Error(1)
}

type MockPaymentStore struct{ mock.Mock }

func (m *MockPaymentStore) CreateTx(ctx context.Context, tx *sqlx.Tx, p *model.Payment) error {
	return m.Called(ctx, tx, p).Error(0)
}

func (m *MockPaymentStore) GetByBookingIDTx(ctx context.Context, tx *sqlx.Tx, bookingID uint64) (*model.Payment, error) {
	args := m.Called(ctx, tx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentStore) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

type MockUserStore struct{ mock.Mock }

func (m *MockUserStore) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserStore) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.User, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserStore) UpdateMileageTx(ctx context.Context, tx *sqlx.Tx, id uint64, mileage int64) error {
	return m.Called(ctx, tx, id, mileage).Error(0)
}

type MockMileageStore struct{ mock.Mock }

func (m *MockMileageStore) InsertTx(ctx context.Context, tx *sqlx.Tx, t *model.MileageTransaction) error {
	return m.Called(ctx, tx, t).Error(0)
}

func (m *MockMileageStore) List(ctx context.Context, userID uint64, f model.MileageFilter, limit, offset int) ([]model.MileageTransaction, int, error) {
	args := m.Called(ctx, userID, f, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.MileageTransaction), args.Int(1), args.Error(2)
}

func (m *MockMileageStore) ListAllForUser(ctx context.Context, userID uint64) ([]model.MileageTransaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MileageTransaction), args.Error(1)
}

type MockApplicationStore struct{ mock.Mock }

func (m *MockApplicationStore) CreateTx(ctx context.Context, tx *sqlx.Tx, a *model.Application) error {
	return m.Called(ctx, tx, a).Error(0)
}

func (m *MockApplicationStore) GetByID(ctx context.Context, t model.ApplicationType, id uint64) (*model.Application, error) {
	args := m.Called(ctx, t, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Application), args.Error(1)
}

func (m *MockApplicationStore) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, t model.ApplicationType, id uint64) (*model.Application, error) {
	args := m.Called(ctx, tx, t, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Application), args.Error(1)
}

func (m *MockApplicationStore) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, a *model.Application, from model.ApplicationStatus) error {
	return m.Called(ctx, tx, a, from).Error(0)
}

func (m *MockApplicationStore) List(ctx context.Context, t model.ApplicationType, status model.ApplicationStatus, limit, offset int) ([]model.Application, int, error) {
	args := m.Called(ctx, t, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.Application), args.Int(1), args.Error(2)
}

type MockAlertStore struct{ mock.Mock }

func (m *MockAlertStore) Insert(ctx context.Context, a *model.AdminAlert) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertStore) InsertTx(ctx context.Context, tx *sqlx.Tx, a *model.AdminAlert) (bool, error) {
	args := m.Called(ctx, tx, a)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertStore) UpsertRead(ctx context.Context, a *model.AdminAlert, adminID uint64, at time.Time) (bool, error) {
	args := m.Called(ctx, a, adminID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertStore) GetByKey(ctx context.Context, alertType, referenceID string) (*model.AdminAlert, error) {
	args := m.Called(ctx, alertType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminAlert), args.Error(1)
}

func (m *MockAlertStore) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]model.AdminAlert, int, error) {
	args := m.Called(ctx, unreadOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.AdminAlert), args.Int(1), args.Error(2)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) SendEvent(ctx context.Context, ev queue.Event) error {
	return m.Called(ctx, ev).Error(0)
}

type MockExpirer struct{ mock.Mock }

func (m *MockExpirer) Expire(ctx context.Context, bookingID uint64) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}

func u64(v uint64) *uint64 { return &v }

var (
	admin    = Actor{UserID: 1, Role: model.RoleAdmin}
	customer = Actor{UserID: 7, Role: model.RoleCustomer}
)

package booking

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"marketstall/internal/domain/reservation"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) ActiveBookings(ctx context.Context, date string, lockIDs []string) ([]reservation.Booking, error) {
	args := m.Called(ctx, date, lockIDs)
	rows, _ := args.Get(0).([]reservation.Booking)
	return rows, args.Error(1)
}

func (m *mockRepository) InsertBooking(ctx context.Context, b *reservation.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockRepository) DeleteOwnHolds(ctx context.Context, userID int64, date string, lockIDs []string) (int64, error) {
	args := m.Called(ctx, userID, date, lockIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) DeleteExpiredHolds(ctx context.Context, date string, lockIDs []string, now time.Time) (int64, error) {
	args := m.Called(ctx, date, lockIDs, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) MarkPending(ctx context.Context, id int64, upd reservation.PaymentUpdate) error {
	return m.Called(ctx, id, upd).Error(0)
}

func (m *mockRepository) UpsertQueueEntry(ctx context.Context, lockID, date string, userID int64, now, expiresAt time.Time) error {
	return m.Called(ctx, lockID, date, userID, now, expiresAt).Error(0)
}

func (m *mockRepository) QueueEntries(ctx context.Context, lockID, date string, now time.Time) ([]reservation.QueueEntry, error) {
	args := m.Called(ctx, lockID, date, now)
	rows, _ := args.Get(0).([]reservation.QueueEntry)
	return rows, args.Error(1)
}

func (m *mockRepository) DeleteQueueEntries(ctx context.Context, userID int64, date string, lockIDs []string) (int64, error) {
	args := m.Called(ctx, userID, date, lockIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*reservation.Booking, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*reservation.Booking)
	return b, args.Error(1)
}

func (m *mockRepository) GroupBookings(ctx context.Context, userID int64, groupID string) ([]reservation.Booking, error) {
	args := m.Called(ctx, userID, groupID)
	rows, _ := args.Get(0).([]reservation.Booking)
	return rows, args.Error(1)
}

func (m *mockRepository) ListByDate(ctx context.Context, date string) ([]reservation.Booking, error) {
	args := m.Called(ctx, date)
	rows, _ := args.Get(0).([]reservation.Booking)
	return rows, args.Error(1)
}

func (m *mockRepository) ListByUser(ctx context.Context, userID int64) ([]reservation.Booking, error) {
	args := m.Called(ctx, userID)
	rows, _ := args.Get(0).([]reservation.Booking)
	return rows, args.Error(1)
}

func (m *mockRepository) ListForReview(ctx context.Context, status reservation.Status) ([]reservation.Booking, error) {
	args := m.Called(ctx, status)
	rows, _ := args.Get(0).([]reservation.Booking)
	return rows, args.Error(1)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status reservation.Status, approvedAt *time.Time) error {
	return m.Called(ctx, id, status, approvedAt).Error(0)
}

func (m *mockRepository) ReapExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(tx reservation.Repository) error) error {
	return fn(m)
}

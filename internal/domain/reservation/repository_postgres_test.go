package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// These tests pin the postgres dialect paths that sqlite cannot exercise.
func setupPostgresMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewRepository(db), mock
}

func TestPostgres_InsertBookingUniqueViolation(t *testing.T) {
	repo, mock := setupPostgresMock(t)

	mock.ExpectQuery(`INSERT INTO "bookings"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_bookings_lock_date_active"})

	err := repo.InsertBooking(context.Background(), hold("B05", 1, t0.Add(5*time.Minute)))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertBookingOtherErrorPassesThrough(t *testing.T) {
	repo, mock := setupPostgresMock(t)

	mock.ExpectQuery(`INSERT INTO "bookings"`).
		WillReturnError(&pgconn.PgError{Code: "23502", Message: "null value"})

	err := repo.InsertBooking(context.Background(), hold("B05", 1, t0.Add(5*time.Minute)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ActiveBookingsLocksRowsInTx(t *testing.T) {
	repo, mock := setupPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lock_id", "date", "user_id", "status", "amount"}).
			AddRow(1, "A01", testDate, 5, "pending", "43.00"))
	mock.ExpectCommit()

	var rows []Booking
	err := repo.WithTx(context.Background(), func(tx Repository) error {
		var err error
		rows, err = tx.ActiveBookings(context.Background(), testDate, []string{"A01"})
		return err
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusPending, rows[0].Status)
	assert.Equal(t, "43", rows[0].Amount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertQueueEntry(t *testing.T) {
	repo, mock := setupPostgresMock(t)

	mock.ExpectExec(`DELETE FROM "lock_queue_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "lock_queue_entries" .* ON CONFLICT .* DO UPDATE SET "expires_at"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	err := repo.UpsertQueueEntry(context.Background(), "A01", testDate, 2, t0, t0.Add(20*time.Minute))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteExpiredHolds(t *testing.T) {
	repo, mock := setupPostgresMock(t)

	mock.ExpectExec(`DELETE FROM "bookings" WHERE .*payment_deadline`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpiredHolds(context.Background(), testDate, []string{"A01", "A02"}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

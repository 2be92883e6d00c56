package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketstall/internal/database"
)

const testDate = "2024-06-01"

var t0 = time.Date(2024, 5, 31, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:reservation_%s?mode=memory&cache=shared", name), database.Options{Silent: true})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func hold(lockID string, userID int64, deadline time.Time) *Booking {
	return &Booking{
		LockID:          lockID,
		Zone:            lockID[:1],
		Date:            testDate,
		UserID:          userID,
		Status:          StatusAwaitingPayment,
		Amount:          decimal.NewFromInt(43),
		PaymentDeadline: &deadline,
	}
}

func TestInsertBooking_OneActivePerStall(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := hold("A01", 1, t0.Add(5*time.Minute))
	require.NoError(t, repo.InsertBooking(ctx, first))

	err := repo.InsertBooking(ctx, hold("A01", 2, t0.Add(5*time.Minute)))
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same stall on another date is a different claim.
	other := hold("A01", 2, t0.Add(5*time.Minute))
	other.Date = "2024-06-02"
	require.NoError(t, repo.InsertBooking(ctx, other))

	require.NoError(t, repo.UpdateStatus(ctx, first.ID, StatusRejected, nil))
	require.NoError(t, repo.InsertBooking(ctx, hold("A01", 2, t0.Add(5*time.Minute))))
}

func TestUpdateStatus_ReactivatingTakenStall(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := hold("A02", 1, t0.Add(time.Minute))
	require.NoError(t, repo.InsertBooking(ctx, first))
	require.NoError(t, repo.UpdateStatus(ctx, first.ID, StatusRejected, nil))
	require.NoError(t, repo.InsertBooking(ctx, hold("A02", 2, t0.Add(time.Minute))))

	err := repo.UpdateStatus(ctx, first.ID, StatusApproved, &t0)
	assert.ErrorIs(t, err, ErrDuplicate)

	err = repo.UpdateStatus(ctx, 9999, StatusApproved, &t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveBookings_ExcludesRejected(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	a := hold("A01", 1, t0.Add(time.Minute))
	b := hold("A02", 1, t0.Add(time.Minute))
	require.NoError(t, repo.InsertBooking(ctx, a))
	require.NoError(t, repo.InsertBooking(ctx, b))
	require.NoError(t, repo.UpdateStatus(ctx, b.ID, StatusRejected, nil))

	rows, err := repo.ActiveBookings(ctx, testDate, []string{"A01", "A02", "A03"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A01", rows[0].LockID)

	rows, err = repo.ActiveBookings(ctx, testDate, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteHolds(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.InsertBooking(ctx, hold("A01", 1, t0.Add(-time.Second))))
	require.NoError(t, repo.InsertBooking(ctx, hold("A02", 2, t0.Add(time.Minute))))
	require.NoError(t, repo.InsertBooking(ctx, hold("A03", 1, t0.Add(time.Minute))))

	n, err := repo.DeleteExpiredHolds(ctx, testDate, []string{"A01", "A02", "A03"}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteOwnHolds(ctx, 1, testDate, []string{"A02", "A03"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the caller's own hold is removed")

	n, err = repo.DeleteOwnHolds(ctx, 1, testDate, []string{"A03"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	b := hold("B01", 7, t0.Add(time.Minute))
	require.NoError(t, repo.InsertBooking(ctx, b))

	meta := `{"source":"test"}`
	err := repo.MarkPending(ctx, b.ID, PaymentUpdate{
		Amount:         decimal.RequireFromString("30.00"),
		SlipImage:      "/static/slips/x.png",
		Metadata:       &meta,
		PaymentGroupID: "grp-1",
		ProductType:    "food",
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.PaymentDeadline)
	assert.True(t, got.InGroup("grp-1"))
	assert.Equal(t, "30", got.Amount.String())

	require.NoError(t, repo.UpdateStatus(ctx, b.ID, StatusApproved, &t0))
	err = repo.MarkPending(ctx, b.ID, PaymentUpdate{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound, "approved rows are never re-opened")
}

func TestQueue_FIFOAndRefresh(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ttl := 20 * time.Minute

	require.NoError(t, repo.UpsertQueueEntry(ctx, "A01", testDate, 1, t0, t0.Add(ttl)))
	require.NoError(t, repo.UpsertQueueEntry(ctx, "A01", testDate, 2, t0.Add(time.Second), t0.Add(time.Second+ttl)))
	require.NoError(t, repo.UpsertQueueEntry(ctx, "A01", testDate, 1, t0.Add(2*time.Second), t0.Add(2*time.Second+ttl)))

	entries, err := repo.QueueEntries(ctx, "A01", testDate, t0.Add(3*time.Second))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].UserID, "refresh keeps the original place")
	assert.Equal(t, int64(2), entries[1].UserID)
	assert.True(t, entries[0].ExpiresAt.Equal(t0.Add(2*time.Second+ttl)))
}

func TestQueue_ExpiredEntryLosesPlace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertQueueEntry(ctx, "A01", testDate, 1, t0, t0.Add(time.Minute)))

	later := t0.Add(2 * time.Minute)
	entries, err := repo.QueueEntries(ctx, "A01", testDate, later)
	require.NoError(t, err)
	assert.Empty(t, entries, "expired entries are invisible before any reaping")

	require.NoError(t, repo.UpsertQueueEntry(ctx, "A01", testDate, 2, later, later.Add(time.Minute)))
	require.NoError(t, repo.UpsertQueueEntry(ctx, "A01", testDate, 1, later.Add(time.Second), later.Add(time.Minute)))

	entries, err = repo.QueueEntries(ctx, "A01", testDate, later.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].UserID)
	assert.Equal(t, int64(1), entries[1].UserID)

	n, err := repo.DeleteQueueEntries(ctx, 1, testDate, []string{"A01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repo.DeleteQueueEntries(ctx, 1, testDate, []string{"A01"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	h := hold("A01", 1, t0.Add(time.Minute))
	p := hold("A02", 1, t0.Add(time.Minute))
	r := hold("A03", 2, t0.Add(time.Minute))
	require.NoError(t, repo.InsertBooking(ctx, h))
	require.NoError(t, repo.InsertBooking(ctx, p))
	require.NoError(t, repo.InsertBooking(ctx, r))
	require.NoError(t, repo.MarkPending(ctx, p.ID, PaymentUpdate{Amount: decimal.NewFromInt(43), SlipImage: "s", PaymentGroupID: "g"}))
	require.NoError(t, repo.UpdateStatus(ctx, r.ID, StatusRejected, nil))

	review, err := repo.ListForReview(ctx, "")
	require.NoError(t, err)
	assert.Len(t, review, 2)
	for _, b := range review {
		assert.NotEqual(t, StatusAwaitingPayment, b.Status)
	}

	pending, err := repo.ListForReview(ctx, StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "A02", pending[0].LockID)

	byDate, err := repo.ListByDate(ctx, testDate)
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	mine, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	group, err := repo.GroupBookings(ctx, 1, "g")
	require.NoError(t, err)
	require.Len(t, group, 1)
	assert.Equal(t, p.ID, group[0].ID)

	_, err = repo.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTx_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx Repository) error {
		require.NoError(t, tx.InsertBooking(ctx, hold("C01", 1, t0.Add(time.Minute))))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rows, err := repo.ActiveBookings(ctx, testDate, []string{"C01"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCleanupService_RunOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.InsertBooking(ctx, hold("A01", 1, t0.Add(-time.Minute))))
	require.NoError(t, repo.InsertBooking(ctx, hold("A02", 1, t0.Add(time.Hour))))
	require.NoError(t, repo.UpsertQueueEntry(ctx, "A02", testDate, 3, t0, t0.Add(time.Hour)))
	// Seeded directly: an upsert would already drop the expired entry.
	require.NoError(t, db.Create(&QueueEntry{
		LockID:    "A02",
		Date:      testDate,
		UserID:    2,
		CreatedAt: t0.Add(-time.Hour),
		ExpiresAt: t0.Add(-time.Minute),
	}).Error)

	svc := NewCleanupService(repo)
	svc.now = func() time.Time { return t0 }

	holds, entries, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), holds)
	assert.Equal(t, int64(1), entries)

	var count int64
	require.NoError(t, db.Model(&Booking{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var left []QueueEntry
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, int64(3), left[0].UserID)
}

func TestBookingPredicates(t *testing.T) {
	b := hold("A01", 1, t0.Add(time.Minute))
	assert.True(t, b.LiveHold(t0))
	assert.True(t, b.Blocks(t0))
	assert.False(t, b.LiveHold(t0.Add(time.Minute)), "deadline is exclusive")
	assert.False(t, b.Blocks(t0.Add(2*time.Minute)))

	b.Status = StatusApproved
	assert.True(t, b.Blocks(t0.Add(time.Hour)))
	assert.False(t, b.InGroup("x"))
}

package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository owns the bookings and lock_queue_entries tables. Every method is
// a single statement except WithTx; callers must not cache rows across requests.
type Repository interface {
	ActiveBookings(ctx context.Context, date string, lockIDs []string) ([]Booking, error)
	InsertBooking(ctx context.Context, b *Booking) error
	DeleteOwnHolds(ctx context.Context, userID int64, date string, lockIDs []string) (int64, error)
	DeleteExpiredHolds(ctx context.Context, date string, lockIDs []string, now time.Time) (int64, error)
	MarkPending(ctx context.Context, id int64, upd PaymentUpdate) error

	UpsertQueueEntry(ctx context.Context, lockID, date string, userID int64, now, expiresAt time.Time) error
	QueueEntries(ctx context.Context, lockID, date string, now time.Time) ([]QueueEntry, error)
	DeleteQueueEntries(ctx context.Context, userID int64, date string, lockIDs []string) (int64, error)

	GetByID(ctx context.Context, id int64) (*Booking, error)
	GroupBookings(ctx context.Context, userID int64, groupID string) ([]Booking, error)
	ListByDate(ctx context.Context, date string) ([]Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]Booking, error)
	ListForReview(ctx context.Context, status Status) ([]Booking, error)
	UpdateStatus(ctx context.Context, id int64, status Status, approvedAt *time.Time) error

	ReapExpired(ctx context.Context, now time.Time) (holds int64, entries int64, err error)
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

type repository struct {
	db   *gorm.DB
	inTx bool
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Migrate creates the tables and the partial unique index that arbitrates
// concurrent claims on a stall.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Booking{}, &QueueEntry{}); err != nil {
		return fmt.Errorf("migrate reservation tables: %w", err)
	}
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_lock_date_active
		ON bookings (lock_id, date) WHERE status <> 'rejected'`).Error
	if err != nil {
		return fmt.Errorf("create active booking index: %w", err)
	}
	return nil
}

func (r *repository) ActiveBookings(ctx context.Context, date string, lockIDs []string) ([]Booking, error) {
	if len(lockIDs) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx)
	if r.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var out []Booking
	err := q.
		Where("date = ? AND lock_id IN ? AND status <> ?", date, lockIDs, StatusRejected).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *repository) InsertBooking(ctx context.Context, b *Booking) error {
	err := r.db.WithContext(ctx).Create(b).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s on %s", ErrDuplicate, b.LockID, b.Date)
	}
	return err
}

func (r *repository) DeleteOwnHolds(ctx context.Context, userID int64, date string, lockIDs []string) (int64, error) {
	if len(lockIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ? AND lock_id IN ? AND status = ?", userID, date, lockIDs, StatusAwaitingPayment).
		Delete(&Booking{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteExpiredHolds(ctx context.Context, date string, lockIDs []string, now time.Time) (int64, error) {
	if len(lockIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("date = ? AND lock_id IN ? AND status = ? AND (payment_deadline IS NULL OR payment_deadline <= ?)",
			date, lockIDs, StatusAwaitingPayment, now).
		Delete(&Booking{})
	return res.RowsAffected, res.Error
}

// MarkPending moves a hold (or an already pending row being resubmitted) to pending.
func (r *repository) MarkPending(ctx context.Context, id int64, upd PaymentUpdate) error {
	res := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status IN ?", id, []Status{StatusAwaitingPayment, StatusPending}).
		Updates(map[string]any{
			"status":           StatusPending,
			"amount":           upd.Amount,
			"slip_image":       upd.SlipImage,
			"payment_metadata": upd.Metadata,
			"payment_deadline": nil,
			"payment_group_id": upd.PaymentGroupID,
			"product_type":     upd.ProductType,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertQueueEntry drops expired entries for the stall, then inserts the user's
// entry or refreshes its expiry. created_at of an existing entry is preserved,
// so re-polling never costs the user their place.
func (r *repository) UpsertQueueEntry(ctx context.Context, lockID, date string, userID int64, now, expiresAt time.Time) error {
	db := r.db.WithContext(ctx)

	err := db.Where("lock_id = ? AND date = ? AND expires_at <= ?", lockID, date, now).
		Delete(&QueueEntry{}).Error
	if err != nil {
		return fmt.Errorf("drop expired queue entries: %w", err)
	}

	entry := QueueEntry{
		LockID:    lockID,
		Date:      date,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lock_id"}, {Name: "date"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(&entry).Error
}

// QueueEntries returns the unexpired entries for a stall in FIFO order.
func (r *repository) QueueEntries(ctx context.Context, lockID, date string, now time.Time) ([]QueueEntry, error) {
	var out []QueueEntry
	err := r.db.WithContext(ctx).
		Where("lock_id = ? AND date = ? AND expires_at > ?", lockID, date, now).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *repository) DeleteQueueEntries(ctx context.Context, userID int64, date string, lockIDs []string) (int64, error) {
	if len(lockIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ? AND lock_id IN ?", userID, date, lockIDs).
		Delete(&QueueEntry{})
	return res.RowsAffected, res.Error
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) GroupBookings(ctx context.Context, userID int64, groupID string) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND payment_group_id = ? AND status IN ?", userID, groupID,
			[]Status{StatusAwaitingPayment, StatusPending}).
		Order("lock_id ASC").
		Find(&out).Error
	return out, err
}

func (r *repository) ListByDate(ctx context.Context, date string) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("date = ? AND status <> ?", date, StatusRejected).
		Order("lock_id ASC").
		Find(&out).Error
	return out, err
}

func (r *repository) ListByUser(ctx context.Context, userID int64) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// ListForReview lists submitted bookings, newest first. Holds are never shown.
func (r *repository) ListForReview(ctx context.Context, status Status) ([]Booking, error) {
	q := r.db.WithContext(ctx).Where("status <> ?", StatusAwaitingPayment)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var out []Booking
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, approvedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if approvedAt != nil {
		updates["approved_at"] = *approvedAt
	}

	res := r.db.WithContext(ctx).Model(&Booking{}).Where("id = ?", id).Updates(updates)
	if isUniqueViolation(res.Error) {
		return fmt.Errorf("%w: booking %d", ErrDuplicate, id)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ReapExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	db := r.db.WithContext(ctx)

	holds := db.Where("status = ? AND payment_deadline <= ?", StatusAwaitingPayment, now).Delete(&Booking{})
	if holds.Error != nil {
		return 0, 0, fmt.Errorf("reap holds: %w", holds.Error)
	}

	entries := db.Where("expires_at <= ?", now).Delete(&QueueEntry{})
	if entries.Error != nil {
		return holds.RowsAffected, 0, fmt.Errorf("reap queue entries: %w", entries.Error)
	}
	return holds.RowsAffected, entries.RowsAffected, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx, inTx: true})
	})
}

package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Booking is a claim on one stall for one market date.
// An awaiting_payment row doubles as the short-lived hold.
type Booking struct {
	ID              int64           `gorm:"column:id;primaryKey" json:"id"`
	LockID          string          `gorm:"column:lock_id;size:16;not null;index:idx_bookings_date_lock,priority:2" json:"lock_id"`
	Zone            string          `gorm:"column:zone;size:8;not null" json:"zone"`
	Date            string          `gorm:"column:date;size:10;not null;index:idx_bookings_date_lock,priority:1" json:"date"`
	UserID          int64           `gorm:"column:user_id;not null;index" json:"user_id"`
	Status          Status          `gorm:"column:status;size:32;not null;index" json:"status"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	SlipImage       *string         `gorm:"column:slip_image" json:"slip_image,omitempty"`
	PaymentMetadata *string         `gorm:"column:payment_metadata;type:text" json:"-"`
	PaymentDeadline *time.Time      `gorm:"column:payment_deadline" json:"payment_deadline,omitempty"`
	PaymentGroupID  *string         `gorm:"column:payment_group_id;size:64;index" json:"payment_group_id,omitempty"`
	ProductType     string          `gorm:"column:product_type;size:64" json:"product_type,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
	ApprovedAt      *time.Time      `gorm:"column:approved_at" json:"approved_at,omitempty"`
}

func (Booking) TableName() string { return "bookings" }

// LiveHold reports whether b is an awaiting_payment row whose deadline has not passed.
func (b *Booking) LiveHold(now time.Time) bool {
	return b.Status == StatusAwaitingPayment && b.PaymentDeadline != nil && b.PaymentDeadline.After(now)
}

// Committed reports whether b is past the hold stage and not rejected.
func (b *Booking) Committed() bool {
	return b.Status == StatusPending || b.Status == StatusApproved
}

// Blocks reports whether b keeps the stall unavailable to anybody else at now.
func (b *Booking) Blocks(now time.Time) bool {
	return b.Committed() || b.LiveHold(now)
}

func (b *Booking) InGroup(groupID string) bool {
	return groupID != "" && b.PaymentGroupID != nil && *b.PaymentGroupID == groupID
}

// QueueEntry is one user waiting for one contested stall.
type QueueEntry struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	LockID    string    `gorm:"column:lock_id;size:16;not null;uniqueIndex:ux_queue_lock_date_user,priority:1" json:"lock_id"`
	Date      string    `gorm:"column:date;size:10;not null;uniqueIndex:ux_queue_lock_date_user,priority:2" json:"date"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:ux_queue_lock_date_user,priority:3" json:"user_id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

func (QueueEntry) TableName() string { return "lock_queue_entries" }

func (e *QueueEntry) Live(now time.Time) bool {
	return e.ExpiresAt.After(now)
}

// PaymentUpdate is what the finalizer writes when a slip is accepted.
type PaymentUpdate struct {
	Amount         decimal.Decimal
	SlipImage      string
	Metadata       *string
	PaymentGroupID string
	ProductType    string
}

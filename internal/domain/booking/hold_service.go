package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"marketstall/internal/domain/reservation"
	"marketstall/internal/domain/stall"
)

const (
	DefaultHoldTTL  = 5 * time.Minute
	DefaultQueueTTL = 20 * time.Minute
)

type Outcome string

const (
	OutcomeGranted  Outcome = "granted"
	OutcomeQueued   Outcome = "queued"
	OutcomeConflict Outcome = "conflict"
)

type QueuePosition struct {
	LockID   string `json:"lock_id"`
	Position int    `json:"position"`
}

// HoldResult is the answer to a hold request. A conflict may still carry
// Granted stalls when some inserts lost a race and others did not.
type HoldResult struct {
	Outcome        Outcome         `json:"outcome"`
	Granted        []string        `json:"granted,omitempty"`
	Unavailable    []string        `json:"unavailable,omitempty"`
	Queue          []QueuePosition `json:"queue,omitempty"`
	Storage        bool            `json:"storage_conflict,omitempty"`
	PaymentGroupID string          `json:"payment_group_id,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
}

type HoldConfig struct {
	HoldTTL  time.Duration
	QueueTTL time.Duration
}

// HoldService arbitrates concurrent claims on stalls. It keeps no state
// between calls; the unique index in the store is the only serialization point.
type HoldService struct {
	store   reservation.Repository
	cfg     HoldConfig
	metrics MetricsRecorder
	now     func() time.Time
}

func NewHoldService(store reservation.Repository, cfg HoldConfig, metrics MetricsRecorder) *HoldService {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.QueueTTL <= 0 {
		cfg.QueueTTL = DefaultQueueTTL
	}
	return &HoldService{
		store:   store,
		cfg:     cfg,
		metrics: metricsOrNoop(metrics),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RequestHold tries to place a payment hold on every requested stall.
//
// The decision order is fixed: committed bookings are a hard conflict; live
// holds of other users queue the requester; a free stall whose queue is
// headed by somebody else also queues the requester; only then are holds
// written.
func (s *HoldService) RequestHold(ctx context.Context, userID int64, date string, lockIDs []string) (*HoldResult, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	ids, stalls, err := resolveStalls(date, lockIDs)
	if err != nil {
		return nil, err
	}
	now := s.now()

	existing, err := s.store.ActiveBookings(ctx, date, ids)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	var hard, soft []string
	own := make(map[string]*reservation.Booking)
	for i := range existing {
		b := &existing[i]
		switch {
		case b.Committed():
			hard = append(hard, b.LockID)
		case b.UserID != userID && b.LiveHold(now):
			soft = append(soft, b.LockID)
		case b.UserID == userID && b.LiveHold(now):
			own[b.LockID] = b
		}
	}

	if len(hard) > 0 {
		s.metrics.HoldOutcome(string(OutcomeConflict), len(ids))
		return &HoldResult{Outcome: OutcomeConflict, Unavailable: ordered(ids, hard)}, nil
	}
	if len(soft) > 0 {
		return s.enqueue(ctx, userID, date, ordered(ids, soft), now)
	}

	// A holder is never queued behind their own hold. When somebody waits for
	// a stall the caller already holds, that hold is kept untouched.
	var behind []string
	var kept []*reservation.Booking
	for _, id := range ids {
		head, err := s.queueHead(ctx, id, date, now)
		if err != nil {
			return nil, err
		}
		if head == nil || head.UserID == userID {
			continue
		}
		if b, ok := own[id]; ok {
			kept = append(kept, b)
			continue
		}
		behind = append(behind, id)
	}
	if len(behind) > 0 {
		return s.enqueue(ctx, userID, date, behind, now)
	}

	return s.grant(ctx, userID, date, ids, stalls, kept, now)
}

// grant writes fresh holds for ids. Stalls in kept keep their row; the new
// rows join the first kept group and never outlive the earliest kept deadline.
func (s *HoldService) grant(ctx context.Context, userID int64, date string, ids []string, stalls map[string]stall.Stall, kept []*reservation.Booking, now time.Time) (*HoldResult, error) {
	groupID := uuid.NewString()
	deadline := now.Add(s.cfg.HoldTTL)

	keptIDs := make([]string, 0, len(kept))
	for i, b := range kept {
		keptIDs = append(keptIDs, b.LockID)
		if i == 0 && b.PaymentGroupID != nil {
			groupID = *b.PaymentGroupID
		}
		if b.PaymentDeadline.Before(deadline) {
			deadline = *b.PaymentDeadline
		}
	}

	write := ids
	if len(kept) > 0 {
		write = without(ids, keptIDs)
	}
	if len(write) > 0 {
		if _, err := s.store.DeleteOwnHolds(ctx, userID, date, write); err != nil {
			return nil, fmt.Errorf("clear own holds: %w", err)
		}
		if _, err := s.store.DeleteExpiredHolds(ctx, date, write, now); err != nil {
			return nil, fmt.Errorf("clear expired holds: %w", err)
		}
	}

	granted := append([]string(nil), keptIDs...)
	var lost []string
	for _, id := range write {
		st := stalls[id]
		b := &reservation.Booking{
			LockID:          id,
			Zone:            st.Zone,
			Date:            date,
			UserID:          userID,
			Status:          reservation.StatusAwaitingPayment,
			Amount:          st.Price,
			PaymentDeadline: &deadline,
			PaymentGroupID:  &groupID,
		}
		err := s.store.InsertBooking(ctx, b)
		switch {
		case err == nil:
			granted = append(granted, id)
		case errors.Is(err, reservation.ErrDuplicate):
			lost = append(lost, id)
		default:
			return nil, fmt.Errorf("insert hold %s: %w", id, err)
		}
	}

	if _, err := s.store.DeleteQueueEntries(ctx, userID, date, granted); err != nil {
		return nil, fmt.Errorf("clear queue entries: %w", err)
	}

	granted = ordered(ids, granted)
	res := &HoldResult{Outcome: OutcomeGranted, Granted: granted}
	if len(granted) > 0 {
		res.PaymentGroupID = groupID
		res.ExpiresAt = &deadline
	}
	if len(lost) > 0 {
		res.Outcome = OutcomeConflict
		res.Unavailable = lost
		res.Storage = true
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"date":     date,
		"granted":  granted,
		"lost":     lost,
		"group_id": groupID,
		"kept":     keptIDs,
	}).Info("hold placed")
	s.metrics.HoldOutcome(string(res.Outcome), len(ids))
	return res, nil
}

func (s *HoldService) enqueue(ctx context.Context, userID int64, date string, ids []string, now time.Time) (*HoldResult, error) {
	expiresAt := now.Add(s.cfg.QueueTTL)
	res := &HoldResult{Outcome: OutcomeQueued, Unavailable: ids}

	for _, id := range ids {
		if err := s.store.UpsertQueueEntry(ctx, id, date, userID, now, expiresAt); err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", id, err)
		}
		pos, err := s.position(ctx, id, date, userID, now)
		if err != nil {
			return nil, err
		}
		res.Queue = append(res.Queue, QueuePosition{LockID: id, Position: pos})
	}

	log.WithFields(log.Fields{"user_id": userID, "date": date, "queue": res.Queue}).Info("hold queued")
	s.metrics.HoldOutcome(string(OutcomeQueued), len(ids))
	return res, nil
}

// ReleaseHold drops the caller's own holds. Releasing nothing is not an error.
func (s *HoldService) ReleaseHold(ctx context.Context, userID int64, date string, lockIDs []string) (int64, error) {
	if userID <= 0 {
		return 0, ErrUnauthenticated
	}
	ids, err := normalizeIDs(lockIDs)
	if err != nil {
		return 0, err
	}
	if _, err := stall.DayTypeOf(date); err != nil {
		return 0, invalidf("%v", err)
	}

	n, err := s.store.DeleteOwnHolds(ctx, userID, date, ids)
	if err != nil {
		return 0, fmt.Errorf("release holds: %w", err)
	}
	log.WithFields(log.Fields{"user_id": userID, "date": date, "lock_ids": ids, "released": n}).Info("hold released")
	return n, nil
}

// LeaveQueue removes the caller from one stall's queue. Idempotent.
func (s *HoldService) LeaveQueue(ctx context.Context, userID int64, date, lockID string) error {
	if userID <= 0 {
		return ErrUnauthenticated
	}
	ids, err := normalizeIDs([]string{lockID})
	if err != nil {
		return err
	}
	if _, err := stall.DayTypeOf(date); err != nil {
		return invalidf("%v", err)
	}

	if _, err := s.store.DeleteQueueEntries(ctx, userID, date, ids); err != nil {
		return fmt.Errorf("leave queue: %w", err)
	}
	return nil
}

// QueueStatus reports the caller's current positions. Position 0 means not queued.
func (s *HoldService) QueueStatus(ctx context.Context, userID int64, date string, lockIDs []string) ([]QueuePosition, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	ids, err := normalizeIDs(lockIDs)
	if err != nil {
		return nil, err
	}
	if _, err := stall.DayTypeOf(date); err != nil {
		return nil, invalidf("%v", err)
	}
	now := s.now()

	out := make([]QueuePosition, 0, len(ids))
	for _, id := range ids {
		pos, err := s.position(ctx, id, date, userID, now)
		if err != nil {
			return nil, err
		}
		out = append(out, QueuePosition{LockID: id, Position: pos})
	}
	return out, nil
}

func (s *HoldService) position(ctx context.Context, lockID, date string, userID int64, now time.Time) (int, error) {
	entries, err := s.store.QueueEntries(ctx, lockID, date, now)
	if err != nil {
		return 0, fmt.Errorf("load queue %s: %w", lockID, err)
	}
	pos := 0
	for i := range entries {
		if !entries[i].Live(now) {
			continue
		}
		pos++
		if entries[i].UserID == userID {
			return pos, nil
		}
	}
	return 0, nil
}

func (s *HoldService) queueHead(ctx context.Context, lockID, date string, now time.Time) (*reservation.QueueEntry, error) {
	entries, err := s.store.QueueEntries(ctx, lockID, date, now)
	if err != nil {
		return nil, fmt.Errorf("load queue %s: %w", lockID, err)
	}
	for i := range entries {
		if entries[i].Live(now) {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// resolveStalls validates the date and ids against the day's catalog.
func resolveStalls(date string, lockIDs []string) ([]string, map[string]stall.Stall, error) {
	ids, err := normalizeIDs(lockIDs)
	if err != nil {
		return nil, nil, err
	}
	dayType, err := stall.DayTypeOf(date)
	if err != nil {
		return nil, nil, invalidf("%v", err)
	}
	found, unknown := stall.Lookup(dayType, ids)
	if len(unknown) > 0 {
		return nil, nil, invalidf("stalls not sold on %s: %s", date, strings.Join(unknown, ", "))
	}
	return ids, found, nil
}

// normalizeIDs trims, upper-cases and de-duplicates ids, keeping first-seen order.
func normalizeIDs(lockIDs []string) ([]string, error) {
	seen := make(map[string]bool, len(lockIDs))
	out := make([]string, 0, len(lockIDs))
	for _, raw := range lockIDs {
		id := strings.ToUpper(strings.TrimSpace(raw))
		if id == "" {
			return nil, invalidf("empty stall id")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, invalidf("at least one stall is required")
	}
	return out, nil
}

// ordered returns the members of subset in the order they appear in ids.
func ordered(ids, subset []string) []string {
	in := make(map[string]bool, len(subset))
	for _, id := range subset {
		in[id] = true
	}
	out := make([]string, 0, len(subset))
	for _, id := range ids {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}

// without returns ids minus the members of drop, keeping order.
func without(ids, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, id := range drop {
		skip[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

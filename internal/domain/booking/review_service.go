package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"marketstall/internal/domain/reservation"
)

// ReviewService is the admin side: approve or reject submitted bookings.
type ReviewService struct {
	store   reservation.Repository
	metrics MetricsRecorder
	now     func() time.Time
}

func NewReviewService(store reservation.Repository, metrics MetricsRecorder) *ReviewService {
	return &ReviewService{
		store:   store,
		metrics: metricsOrNoop(metrics),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReviewService) Approve(ctx context.Context, id int64) (*reservation.Booking, error) {
	now := s.now()
	return s.transition(ctx, id, reservation.StatusApproved, &now)
}

// Reject frees the stall: rejected rows are ignored by every availability check.
func (s *ReviewService) Reject(ctx context.Context, id int64) (*reservation.Booking, error) {
	return s.transition(ctx, id, reservation.StatusRejected, nil)
}

// Review dispatches on the requested status.
func (s *ReviewService) Review(ctx context.Context, id int64, status reservation.Status) (*reservation.Booking, error) {
	switch status {
	case reservation.StatusApproved:
		return s.Approve(ctx, id)
	case reservation.StatusRejected:
		return s.Reject(ctx, id)
	default:
		return nil, invalidf("status must be approved or rejected, got %q", status)
	}
}

func (s *ReviewService) ListForReview(ctx context.Context, status reservation.Status) ([]reservation.Booking, error) {
	if status != "" && (!status.Valid() || status == reservation.StatusAwaitingPayment) {
		return nil, invalidf("unknown status filter %q", status)
	}
	return s.store.ListForReview(ctx, status)
}

func (s *ReviewService) transition(ctx context.Context, id int64, status reservation.Status, approvedAt *time.Time) (*reservation.Booking, error) {
	if id <= 0 {
		return nil, invalidf("booking id is required")
	}

	err := s.store.UpdateStatus(ctx, id, status, approvedAt)
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, reservation.ErrDuplicate):
		b, getErr := s.store.GetByID(ctx, id)
		if getErr != nil {
			return nil, &ConflictError{Storage: true}
		}
		return nil, &ConflictError{LockIDs: []string{b.LockID}, Storage: true}
	case err != nil:
		return nil, fmt.Errorf("update booking %d: %w", id, err)
	}

	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload booking %d: %w", id, err)
	}

	log.WithFields(log.Fields{"booking_id": id, "lock_id": b.LockID, "date": b.Date, "status": status}).Info("booking reviewed")
	s.metrics.ReviewDecision(string(status))
	return b, nil
}

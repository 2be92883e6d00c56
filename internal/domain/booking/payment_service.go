package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"marketstall/internal/domain/reservation"
	"marketstall/internal/domain/slip"
	"marketstall/internal/domain/stall"
)

type SubmitPaymentInput struct {
	UserID         int64
	PaymentGroupID string
	LockIDs        []string
	Date           string
	Amount         decimal.Decimal
	SlipImage      string
	Metadata       map[string]any
	ProductType    string
}

type FinalizeResult struct {
	PaymentGroupID string                `json:"payment_group_id"`
	SlipURL        string                `json:"slip_url"`
	Bookings       []reservation.Booking `json:"bookings"`
	Updated        int                   `json:"updated"`
	Created        int                   `json:"created"`
}

// errInsertRace marks a unique violation inside the finalizer transaction.
// The transaction is already unusable on postgres, so the caller re-derives
// the lost stalls after rollback.
var errInsertRace = errors.New("insert lost race")

// PaymentService turns holds plus a verified slip into pending bookings.
type PaymentService struct {
	store     reservation.Repository
	reader    slip.Reader
	slips     SlipStore
	tolerance decimal.Decimal
	metrics   MetricsRecorder
	now       func() time.Time
}

func NewPaymentService(store reservation.Repository, reader slip.Reader, slips SlipStore, tolerance decimal.Decimal, metrics MetricsRecorder) *PaymentService {
	if reader == nil {
		reader = slip.NewMetadataReader()
	}
	return &PaymentService{
		store:     store,
		reader:    reader,
		slips:     slips,
		tolerance: tolerance,
		metrics:   metricsOrNoop(metrics),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitPayment verifies the slip and finalizes every targeted stall in one
// transaction. Resubmitting the same payment group updates the same rows.
func (s *PaymentService) SubmitPayment(ctx context.Context, in SubmitPaymentInput) (*FinalizeResult, error) {
	if in.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	dayType, err := stall.DayTypeOf(in.Date)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	if !in.Amount.IsPositive() {
		return nil, invalidf("amount must be positive")
	}
	image, err := slip.Decode(in.SlipImage)
	if err != nil {
		return nil, invalidf("%v", err)
	}

	reading, err := s.reader.Read(ctx, slip.Slip{Image: image, Metadata: in.Metadata})
	if err != nil {
		return nil, fmt.Errorf("read slip: %w", err)
	}
	if err := slip.Verify(reading, in.Amount, s.tolerance); err != nil {
		s.metrics.PaymentOutcome("unverified")
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnverified, err)
	}

	metadata, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, invalidf("metadata: %v", err)
	}

	targets, err := s.targets(ctx, in)
	if err != nil {
		return nil, err
	}
	stalls, unknown := stall.Lookup(dayType, targets)
	if len(unknown) > 0 {
		return nil, invalidf("stalls not sold on %s: %v", in.Date, unknown)
	}

	upload, err := s.slips.Save(ctx, in.UserID, image)
	if err != nil {
		if errors.Is(err, slip.ErrInvalidMimeType) || errors.Is(err, slip.ErrImageTooLarge) || errors.Is(err, slip.ErrEmptyImage) {
			return nil, invalidf("%v", err)
		}
		return nil, fmt.Errorf("store slip: %w", err)
	}

	groupID := in.PaymentGroupID
	if groupID == "" {
		groupID = uuid.NewString()
	}
	upd := reservation.PaymentUpdate{
		Amount:         in.Amount.DivRound(decimal.NewFromInt(int64(len(targets))), 2),
		SlipImage:      upload.FileURL,
		Metadata:       metadata,
		PaymentGroupID: groupID,
		ProductType:    in.ProductType,
	}
	now := s.now()

	result := &FinalizeResult{PaymentGroupID: groupID, SlipURL: upload.FileURL}
	var missing []string
	err = s.store.WithTx(ctx, func(tx reservation.Repository) error {
		existing, err := tx.ActiveBookings(ctx, in.Date, targets)
		if err != nil {
			return err
		}
		byLock := make(map[string]*reservation.Booking, len(existing))
		for i := range existing {
			byLock[existing[i].LockID] = &existing[i]
		}

		var taken []string
		var updates []*reservation.Booking
		missing = missing[:0]
		for _, id := range targets {
			b, ok := byLock[id]
			switch {
			case !ok:
				missing = append(missing, id)
			case b.UserID == in.UserID && b.LiveHold(now):
				updates = append(updates, b)
			case b.UserID == in.UserID && b.Status == reservation.StatusPending && b.InGroup(groupID):
				updates = append(updates, b)
			case b.Status == reservation.StatusAwaitingPayment && !b.LiveHold(now):
				missing = append(missing, id)
			default:
				taken = append(taken, id)
			}
		}
		if len(taken) > 0 {
			return &ConflictError{LockIDs: taken}
		}

		for _, b := range updates {
			if err := tx.MarkPending(ctx, b.ID, upd); err != nil {
				return fmt.Errorf("finalize %s: %w", b.LockID, err)
			}
			result.Updated++
		}

		if len(missing) > 0 {
			if _, err := tx.DeleteExpiredHolds(ctx, in.Date, missing, now); err != nil {
				return err
			}
			for _, id := range missing {
				st := stalls[id]
				b := &reservation.Booking{
					LockID:          id,
					Zone:            st.Zone,
					Date:            in.Date,
					UserID:          in.UserID,
					Status:          reservation.StatusPending,
					Amount:          upd.Amount,
					SlipImage:       &upd.SlipImage,
					PaymentMetadata: metadata,
					PaymentGroupID:  &groupID,
					ProductType:     in.ProductType,
				}
				if err := tx.InsertBooking(ctx, b); err != nil {
					if errors.Is(err, reservation.ErrDuplicate) {
						return fmt.Errorf("%w: %s", errInsertRace, id)
					}
					return fmt.Errorf("insert %s: %w", id, err)
				}
				result.Created++
			}
		}

		_, err = tx.DeleteQueueEntries(ctx, in.UserID, in.Date, targets)
		return err
	})
	if err != nil {
		s.discardSlip(ctx, upload.ID)
		if errors.Is(err, errInsertRace) {
			err = s.lostStalls(ctx, in.UserID, in.Date, missing)
		}
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.metrics.PaymentOutcome("conflict")
			return nil, err
		}
		return nil, fmt.Errorf("finalize payment: %w", err)
	}

	bookings, err := s.store.GroupBookings(ctx, in.UserID, groupID)
	if err != nil {
		return nil, fmt.Errorf("load finalized bookings: %w", err)
	}
	result.Bookings = bookings

	log.WithFields(log.Fields{
		"user_id":  in.UserID,
		"date":     in.Date,
		"group_id": groupID,
		"updated":  result.Updated,
		"created":  result.Created,
	}).Info("payment submitted")
	s.metrics.PaymentOutcome("pending")
	return result, nil
}

// targets is the union of the caller's rows in the payment group and the explicit ids.
func (s *PaymentService) targets(ctx context.Context, in SubmitPaymentInput) ([]string, error) {
	var ids []string
	if in.PaymentGroupID != "" {
		rows, err := s.store.GroupBookings(ctx, in.UserID, in.PaymentGroupID)
		if err != nil {
			return nil, fmt.Errorf("load payment group: %w", err)
		}
		for _, b := range rows {
			if b.Date == in.Date {
				ids = append(ids, b.LockID)
			}
		}
	}
	ids = append(ids, in.LockIDs...)
	if len(ids) == 0 {
		return nil, invalidf("no stalls to pay for")
	}
	return normalizeIDs(ids)
}

// lostStalls re-reads the store after a rolled back insert race to name the
// stalls that somebody else now holds.
func (s *PaymentService) lostStalls(ctx context.Context, userID int64, date string, candidates []string) error {
	now := s.now()
	rows, err := s.store.ActiveBookings(ctx, date, candidates)
	if err != nil {
		return fmt.Errorf("re-derive conflict: %w", err)
	}
	var taken []string
	for i := range rows {
		if rows[i].UserID != userID && rows[i].Blocks(now) {
			taken = append(taken, rows[i].LockID)
		}
	}
	if len(taken) == 0 {
		taken = candidates
	}
	return &ConflictError{LockIDs: ordered(candidates, taken), Storage: true}
}

func (s *PaymentService) discardSlip(ctx context.Context, id string) {
	if err := s.slips.Discard(ctx, id); err != nil {
		log.WithError(err).WithField("upload_id", id).Warn("failed to discard slip")
	}
}

func encodeMetadata(m map[string]any) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

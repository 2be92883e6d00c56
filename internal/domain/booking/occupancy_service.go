package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketstall/internal/domain/reservation"
	"marketstall/internal/domain/stall"
)

const (
	SlotAvailable = "available"
	SlotHolding   = "holding"
)

type Slot struct {
	LockID    string          `json:"lock_id"`
	Zone      string          `json:"zone"`
	Price     decimal.Decimal `json:"price"`
	Status    string          `json:"status"`
	BookingID int64           `json:"booking_id,omitempty"`
	Mine      bool            `json:"mine,omitempty"`
}

type Occupancy struct {
	Date    string `json:"date"`
	DayType string `json:"day_type"`
	Slots   []Slot `json:"slots"`
	Free    int    `json:"free"`
}

type OccupancyService struct {
	store reservation.Repository
	now   func() time.Time
}

func NewOccupancyService(store reservation.Repository) *OccupancyService {
	return &OccupancyService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Catalog returns the stalls sold on date without touching the store.
func (s *OccupancyService) Catalog(date string) (stall.DayType, []stall.Stall, error) {
	dt, stalls, err := stall.ForDate(date)
	if err != nil {
		return "", nil, invalidf("%v", err)
	}
	return dt, stalls, nil
}

// Occupancy merges the day's catalog with bookings. Live holds show as
// "holding"; expired holds show as available even before they are reaped.
// viewerID may be 0 for anonymous visitors.
func (s *OccupancyService) Occupancy(ctx context.Context, date string, viewerID int64) (*Occupancy, error) {
	dt, stalls, err := s.Catalog(date)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	now := s.now()

	byLock := make(map[string]*reservation.Booking, len(rows))
	for i := range rows {
		if rows[i].Blocks(now) {
			byLock[rows[i].LockID] = &rows[i]
		}
	}

	out := &Occupancy{Date: date, DayType: string(dt), Slots: make([]Slot, 0, len(stalls))}
	for _, st := range stalls {
		slot := Slot{LockID: st.ID, Zone: st.Zone, Price: st.Price, Status: SlotAvailable}
		if b, ok := byLock[st.ID]; ok {
			slot.BookingID = b.ID
			slot.Mine = viewerID > 0 && b.UserID == viewerID
			if b.Status == reservation.StatusAwaitingPayment {
				slot.Status = SlotHolding
			} else {
				slot.Status = string(b.Status)
			}
		} else {
			out.Free++
		}
		out.Slots = append(out.Slots, slot)
	}
	return out, nil
}

func (s *OccupancyService) MyBookings(ctx context.Context, userID int64) ([]reservation.Booking, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	return s.store.ListByUser(ctx, userID)
}

package booking

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"marketstall/internal/domain/reservation"
)

type HoldRequest struct {
	LockIDs []string `json:"lock_ids" form:"lock_ids" binding:"required,min=1,dive,required"`
	Date    string   `json:"date" form:"date" binding:"required,market_date"`
}

type LeaveQueueRequest struct {
	LockID string `json:"lock_id" binding:"required"`
	Date   string `json:"date" binding:"required,market_date"`
}

type SubmitPaymentRequest struct {
	LockIDs        []string        `json:"lock_ids"`
	PaymentGroupID string          `json:"payment_group_id"`
	Date           string          `json:"date" binding:"required,market_date"`
	Amount         decimal.Decimal `json:"amount"`
	SlipImage      string          `json:"slip_image" binding:"required"`
	Metadata       map[string]any  `json:"metadata"`
	ProductType    string          `json:"product_type" binding:"max=64"`
}

type ReviewRequest struct {
	ID     int64  `json:"id" binding:"required,gt=0"`
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// BookingView is the wire shape of a booking; metadata is emitted as raw JSON.
type BookingView struct {
	reservation.Booking
	PaymentMetadata json.RawMessage `json:"payment_metadata,omitempty"`
}

func toView(b reservation.Booking) BookingView {
	v := BookingView{Booking: b}
	if b.PaymentMetadata != nil && json.Valid([]byte(*b.PaymentMetadata)) {
		v.PaymentMetadata = json.RawMessage(*b.PaymentMetadata)
	}
	return v
}

func toViews(list []reservation.Booking) []BookingView {
	out := make([]BookingView, 0, len(list))
	for _, b := range list {
		out = append(out, toView(b))
	}
	return out
}

// splitIDs accepts "A01,A02" as well as repeated query parameters.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

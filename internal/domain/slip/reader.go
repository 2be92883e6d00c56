package slip

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Slip is what the customer uploads: the image plus whatever the client
// already decoded from it (QR payload, OCR fields).
type Slip struct {
	Image    []byte
	Metadata map[string]any
}

// Reading is the result of interpreting a slip. Amount is nil when nothing usable was found.
type Reading struct {
	Amount    *decimal.Decimal
	Reference string
	Source    string
	PromptPay *PromptPay
}

// Reader extracts the transferred amount from a slip.
type Reader interface {
	Read(ctx context.Context, s Slip) (*Reading, error)
}

// MetadataReader reads the amount from client-supplied metadata: a raw
// PromptPay payload first, then decoded QR fields, then OCR fields.
type MetadataReader struct{}

func NewMetadataReader() *MetadataReader { return &MetadataReader{} }

func (MetadataReader) Read(_ context.Context, s Slip) (*Reading, error) {
	r := &Reading{}
	if s.Metadata == nil {
		return r, nil
	}

	if payload, ok := s.Metadata["qr_payload"].(string); ok && payload != "" {
		pp, err := ParsePromptPay(payload)
		if err == nil {
			r.PromptPay = pp
			r.Reference = pp.Reference
			if amt, ok := parseAmount(pp.Amount); ok {
				r.Amount = &amt
				r.Source = "promptpay"
				return r, nil
			}
		}
	}

	for _, key := range []string{"qrData", "ocrData"} {
		fields, ok := s.Metadata[key].(map[string]any)
		if !ok {
			continue
		}
		if r.Reference == "" {
			if ref, ok := fields["reference"].(string); ok {
				r.Reference = ref
			}
		}
		if amt, ok := parseAmount(fields["amount"]); ok {
			r.Amount = &amt
			r.Source = key
			return r, nil
		}
	}
	return r, nil
}

func parseAmount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	}
	return decimal.Zero, false
}

// Verify checks that the slip shows expected within tolerance.
func Verify(r *Reading, expected, tolerance decimal.Decimal) error {
	if r == nil || r.Amount == nil {
		return ErrAmountNotFound
	}
	if r.Amount.Sub(expected).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: slip shows %s, expected %s", ErrAmountMismatch, r.Amount.StringFixed(2), expected.StringFixed(2))
	}
	return nil
}

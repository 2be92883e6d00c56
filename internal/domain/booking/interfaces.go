package booking

import (
	"context"

	"marketstall/internal/domain/slip"
)

// SlipStore persists uploaded slip images.
type SlipStore interface {
	Save(ctx context.Context, userID int64, data []byte) (*slip.Upload, error)
	Discard(ctx context.Context, id string) error
}

// MetricsRecorder receives outcome counts. A nil recorder is allowed.
type MetricsRecorder interface {
	HoldOutcome(outcome string, stalls int)
	PaymentOutcome(result string)
	ReviewDecision(status string)
}

type noopMetrics struct{}

func (noopMetrics) HoldOutcome(string, int) {}
func (noopMetrics) PaymentOutcome(string)   {}
func (noopMetrics) ReviewDecision(string)   {}

func metricsOrNoop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

package reservation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// CleanupService physically removes expired holds and queue entries.
// Readers already ignore expired rows, so this only keeps the tables small.
type CleanupService struct {
	repo    Repository
	now     func() time.Time
	observe func(holds, entries int64)
}

func NewCleanupService(repo Repository) *CleanupService {
	return &CleanupService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// OnReap registers fn to be told how many rows each successful run removed.
func (c *CleanupService) OnReap(fn func(holds, entries int64)) {
	c.observe = fn
}

// RunOnce reaps everything that expired before now.
func (c *CleanupService) RunOnce(ctx context.Context) (holds int64, entries int64, err error) {
	startTime := time.Now()

	holds, entries, err = c.repo.ReapExpired(ctx, c.now())
	if err != nil {
		log.WithError(err).Error("reservation cleanup failed")
		return holds, entries, err
	}

	if c.observe != nil {
		c.observe(holds, entries)
	}

	log.WithFields(log.Fields{
		"expired_holds":   holds,
		"expired_entries": entries,
		"duration":        time.Since(startTime).String(),
	}).Debug("reservation cleanup completed")
	return holds, entries, nil
}

// Schedule runs RunOnce every interval until ctx is done or the returned channel is closed.
func (c *CleanupService) Schedule(ctx context.Context, interval time.Duration) chan struct{} {
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _, _ = c.RunOnce(ctx)
			case <-stopCh:
				log.Info("reservation cleanup stopped")
				return
			case <-ctx.Done():
				log.Info("reservation cleanup stopped (context done)")
				return
			}
		}
	}()

	log.WithField("interval", interval.String()).Info("reservation cleanup scheduled")
	return stopCh
}

package retention

import (
	"context"
	"log"
	"time"
)

// Store is the part of the persistence layer the sweeper needs.
type Store interface {
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper deletes audit log rows older than a fixed horizon.
type Sweeper struct {
	store    Store
	horizon  time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a sweeper keeping horizon worth of logs and running
// every interval.
func NewSweeper(store Store, horizon, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		horizon:  horizon,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps immediately and then on every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Println("Starting log retention sweeper...")
	s.sweepAndLog(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Log retention sweeper shutting down.")
			return
		case <-timer.C:
			s.sweepAndLog(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	deleted, err := s.SweepOnce(ctx, s.now())
	if err != nil {
		log.Printf("Error cleaning up old logs: %v", err)
		return
	}
	log.Printf("Cleaned up %d old log rows (keeping %s)", deleted, s.horizon)
}

// SweepOnce deletes every row older than now minus the horizon.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteLogsBefore(ctx, now.Add(-s.horizon))
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

// Advancer performs the transition for one order. It must be a no-op for orders no longer
// in paid.
type Advancer interface {
	AdvanceToProcessing(ctx context.Context, orderID string) error
}

// PaidFinder lets the sweeper catch orders whose queue entry was lost.
type PaidFinder interface {
	FindPaidOrdersBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type Result struct {
	Claimed     int
	Advanced    int
	Failed      int
	CaughtUp    int
	Rescheduled int
}

type Sweeper struct {
	Queue    Queue
	Advancer Advancer
	Finder   PaidFinder
	Delay    time.Duration
	Batch    int
	Logger   *logger.Logger
	Now      func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Schedule queues orderID to advance after the configured delay.
func (s *Sweeper) Schedule(ctx context.Context, orderID string) error {
	return s.Queue.Schedule(ctx, orderID, s.now().Add(s.Delay))
}

// RunOnce drains due queue entries, then advances paid orders older than the delay that the
// queue no longer knows about.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}

	now := s.now()
	ids, err := s.Queue.Claim(ctx, now, batch)
	if err != nil {
		return res, fmt.Errorf("claim due transitions: %w", err)
	}
	res.Claimed = len(ids)

	for _, id := range ids {
		if err := s.Advancer.AdvanceToProcessing(ctx, id); err != nil {
			res.Failed++
			s.Logger.Error("SCHEDULER", fmt.Sprintf("Advance %s failed: %v", id, err))
			if err := s.Queue.Schedule(ctx, id, now.Add(s.retryDelay())); err != nil {
				s.Logger.Error("SCHEDULER", fmt.Sprintf("Reschedule %s failed: %v", id, err))
			} else {
				res.Rescheduled++
			}
			continue
		}
		res.Advanced++
	}

	if s.Finder != nil {
		stale, err := s.Finder.FindPaidOrdersBefore(ctx, now.Add(-s.Delay), batch)
		if err != nil {
			return res, fmt.Errorf("find stale paid orders: %w", err)
		}
		for _, o := range stale {
			if err := s.Advancer.AdvanceToProcessing(ctx, o.ID); err != nil {
				res.Failed++
				s.Logger.Error("SCHEDULER", fmt.Sprintf("Catch-up advance %s failed: %v", o.ID, err))
				continue
			}
			res.CaughtUp++
		}
	}

	if res.Claimed > 0 || res.CaughtUp > 0 || res.Failed > 0 {
		s.Logger.Info("SCHEDULER", fmt.Sprintf("Sweep: claimed=%d advanced=%d caught_up=%d failed=%d", res.Claimed, res.Advanced, res.CaughtUp, res.Failed))
	}
	return res, nil
}

func (s *Sweeper) retryDelay() time.Duration {
	if s.Delay > 0 {
		return s.Delay
	}
	return 30 * time.Second
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Logger.Info("SCHEDULER", fmt.Sprintf("Sweeper started (interval %s, delay %s)", interval, s.Delay))
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("SCHEDULER", "Sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.Logger.Error("SCHEDULER", err.Error())
			}
		}
	}
}

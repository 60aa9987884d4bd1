package orders

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper reconciles orders stranded in PENDING, e.g. after a crash between
// order creation and reservation resolution. Stale orders are promoted to
// REJECTED so every order still reaches a terminal status.
type Sweeper struct {
	Store    Store
	Interval time.Duration
	MaxAge   time.Duration
	Log      *zap.Logger
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Store.SweepStalePending(ctx, s.MaxAge)
	if err != nil {
		s.logger().Error("pending sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger().Warn("rejected stale pending orders", zap.Int("count", n))
	}
}

func (s *Sweeper) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

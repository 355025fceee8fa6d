package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/campusride/rideshare/internal/domain"
)

type Expirer interface {
	ExpireDeparted(ctx context.Context) ([]domain.JoinRequest, error)
}

// Sweeper periodically rejects pending requests on rides that have left.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(expirer Expirer, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{expirer: expirer, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.expirer.ExpireDeparted(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "expire requests", "error", err)
		}
		return
	}
	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "expired pending requests", "count", len(expired))
	}
}

package workers

import (
	"context"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/repo/postgres"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// Sweeper periodically clears lapsed pending claims and stale signups so
// expired holds never block a domain indefinitely.
type Sweeper struct {
	claims   postgres.ClaimRepo
	signups  postgres.SignupRepo
	interval time.Duration
}

func NewSweeper(claims postgres.ClaimRepo, signups postgres.SignupRepo, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{claims: claims, signups: signups, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled. One sweep runs
// immediately on start.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	claimsSwept, err := s.claims.SweepExpired(ctx)
	if err != nil {
		logger.Error("Claim sweep failed", "error", err)
	}
	signupsSwept, err := s.signups.SweepExpired(ctx)
	if err != nil {
		logger.Error("Signup sweep failed", "error", err)
	}
	if claimsSwept > 0 || signupsSwept > 0 {
		logger.Info("Sweep completed", "claims", claimsSwept, "signups", signupsSwept)
	}
}

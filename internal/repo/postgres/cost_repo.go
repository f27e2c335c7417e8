package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// CostRepo is the append-only spend ledger. Writes are fire-and-forget from
// the caller's perspective: a failed insert is logged and never fails the
// operation being metered.
type CostRepo interface {
	Append(ctx context.Context, e *domain.CostLogEntry) error
	Stats(ctx context.Context, operation string, from, to time.Time) (*domain.CostStats, error)
}

type costRepo struct {
	pool *pgxpool.Pool
}

func NewCostRepo(pool *pgxpool.Pool) CostRepo {
	return &costRepo{pool: pool}
}

func (r *costRepo) Append(ctx context.Context, e *domain.CostLogEntry) error {
	const q = `
		INSERT INTO cost_log (operation, tier, outcome, cost, elapsed_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.pool.Exec(ctx, q, e.Operation, e.Tier, e.Outcome, e.Cost, e.ElapsedMs, ts)
	return err
}

// Stats aggregates spend for one operation over a window, grouped by tier.
func (r *costRepo) Stats(ctx context.Context, operation string, from, to time.Time) (*domain.CostStats, error) {
	const q = `
		SELECT tier,
		       count(*),
		       coalesce(sum(cost), 0),
		       count(*) FILTER (WHERE outcome = 'PASS'),
		       count(*) FILTER (WHERE outcome = 'FAIL'),
		       coalesce(avg(elapsed_ms), 0)
		FROM cost_log
		WHERE operation = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY tier`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, operation, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.CostStats{Operation: operation, ByTier: make(map[domain.Tier]domain.TierStats)}
	var elapsedSum float64
	for rows.Next() {
		var tier domain.Tier
		var ts domain.TierStats
		var avgElapsed float64
		if err := rows.Scan(&tier, &ts.Count, &ts.Cost, &ts.Pass, &ts.Fail, &avgElapsed); err != nil {
			return nil, err
		}
		stats.ByTier[tier] = ts
		stats.TotalRequests += ts.Count
		stats.TotalCost += ts.Cost
		elapsedSum += avgElapsed * float64(ts.Count)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TotalRequests > 0 {
		stats.AvgElapsedMs = elapsedSum / float64(stats.TotalRequests)
	}
	return stats, nil
}

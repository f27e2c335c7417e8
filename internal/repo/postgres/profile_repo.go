package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// ProfileRepo stores company profile snapshots. Snapshots are append-only;
// re-extraction writes a new row and LatestByDomain picks the freshest.
type ProfileRepo interface {
	Create(ctx context.Context, p *domain.CompanyProfile) error
	LatestByDomain(ctx context.Context, dom string) (*domain.CompanyProfile, error)
}

type profileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) ProfileRepo {
	return &profileRepo{pool: pool}
}

func (r *profileRepo) Create(ctx context.Context, p *domain.CompanyProfile) error {
	const q = `
		INSERT INTO company_profiles
			(domain, name, industry, size, location, products, confidence, extraction_method, extraction_cost, extraction_time_ms, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	extractedAt := p.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, q,
		p.Domain, p.Name, p.Industry, p.Size, p.Location, p.Products,
		p.Confidence, p.ExtractionMethod, p.ExtractionCost,
		p.ExtractionTime.Milliseconds(), extractedAt)
	return err
}

func (r *profileRepo) LatestByDomain(ctx context.Context, dom string) (*domain.CompanyProfile, error) {
	const q = `
		SELECT domain, name, industry, size, location, products, confidence, extraction_method, extraction_cost, extraction_time_ms, extracted_at
		FROM company_profiles
		WHERE domain = $1
		ORDER BY extracted_at DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p domain.CompanyProfile
	var elapsedMs int64
	err := r.pool.QueryRow(ctx, q, dom).Scan(
		&p.Domain, &p.Name, &p.Industry, &p.Size, &p.Location, &p.Products,
		&p.Confidence, &p.ExtractionMethod, &p.ExtractionCost, &elapsedMs, &p.ExtractedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.ExtractionTime = time.Duration(elapsedMs) * time.Millisecond
	return &p, nil
}

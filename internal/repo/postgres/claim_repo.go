package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// ClaimRepo reads the domain claim ledger. Claim mutations happen inside
// the signup repo's transactions so a claim is never written without its
// signup record; see SignupRepo.
type ClaimRepo interface {
	Get(ctx context.Context, dom string) (*domain.DomainClaim, error)
	// Availability applies the claim decision table read-only: it reports
	// whether a new claim on dom would be acquired right now, and the
	// conflict reason if not.
	Availability(ctx context.Context, dom string) (domain.ClaimOutcome, error)
	SweepExpired(ctx context.Context) (int64, error)
}

type claimRepo struct {
	pool *pgxpool.Pool
}

func NewClaimRepo(pool *pgxpool.Pool) ClaimRepo {
	return &claimRepo{pool: pool}
}

const claimCols = `domain, status, pending_id, pending_owner, pending_expires_at, verified_owner, verified_at, updated_at`

func scanClaim(row pgx.Row) (*domain.DomainClaim, error) {
	var c domain.DomainClaim
	var pendingID, pendingOwner, verifiedOwner *string
	var pendingExpires, verifiedAt *time.Time
	err := row.Scan(&c.Domain, &c.Status, &pendingID, &pendingOwner, &pendingExpires, &verifiedOwner, &verifiedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if pendingID != nil {
		c.PendingID = *pendingID
	}
	if pendingOwner != nil {
		c.PendingOwner = *pendingOwner
	}
	if pendingExpires != nil {
		c.PendingExpiresAt = *pendingExpires
	}
	if verifiedOwner != nil {
		c.VerifiedOwner = *verifiedOwner
	}
	if verifiedAt != nil {
		c.VerifiedAt = *verifiedAt
	}
	return &c, nil
}

func (r *claimRepo) Get(ctx context.Context, dom string) (*domain.DomainClaim, error) {
	const q = `SELECT ` + claimCols + ` FROM domain_claims WHERE domain = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	claim, err := scanClaim(r.pool.QueryRow(ctx, q, dom))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return claim, err
}

func (r *claimRepo) Availability(ctx context.Context, dom string) (domain.ClaimOutcome, error) {
	claim, err := r.Get(ctx, dom)
	if err != nil {
		return domain.ClaimOutcome{}, err
	}
	return decideClaim(claim, time.Now()), nil
}

// decideClaim is the claim decision table. Shared by the read-only
// availability check and by the transactional TryClaim in SignupRepo.
func decideClaim(existing *domain.DomainClaim, now time.Time) domain.ClaimOutcome {
	if existing == nil || existing.Status == domain.ClaimNone {
		return domain.ClaimOutcome{Acquired: true}
	}
	switch existing.Status {
	case domain.ClaimVerified:
		return domain.ClaimOutcome{Acquired: false, Reason: domain.ConflictDomainTaken}
	case domain.ClaimPending:
		if existing.Expired(now) {
			return domain.ClaimOutcome{Acquired: true}
		}
		return domain.ClaimOutcome{Acquired: false, Reason: domain.ConflictPending}
	}
	return domain.ClaimOutcome{Acquired: true}
}

// decideConfirm applies the confirmation-time checks: a claim already
// verified by the same owner makes redemption an idempotent no-op, a claim
// verified by anyone else is a hard conflict, and a rival's live pending
// claim (this signup's own hold lapsed and was overwritten) must not be
// verified over. The second return reports whether the decision is final;
// false means the confirmation transaction proceeds.
func decideConfirm(existing *domain.DomainClaim, s *domain.PendingSignup, now time.Time) (domain.ClaimOutcome, bool) {
	if existing == nil {
		return domain.ClaimOutcome{}, false
	}
	switch existing.Status {
	case domain.ClaimVerified:
		if existing.VerifiedOwner == s.Email {
			return domain.ClaimOutcome{Acquired: true}, true
		}
		return domain.ClaimOutcome{Acquired: false, Reason: domain.ConflictDomainTaken}, true
	case domain.ClaimPending:
		if existing.PendingID != s.ID && !existing.Expired(now) {
			return domain.ClaimOutcome{Acquired: false, Reason: domain.ConflictDomainTaken}, true
		}
	}
	return domain.ClaimOutcome{}, false
}

// SweepExpired drops pending claims whose hold lapsed more than a day ago.
// Expired claims are already treated as absent by the decision table, so
// this is pure housekeeping and safe to run at any cadence.
func (r *claimRepo) SweepExpired(ctx context.Context) (int64, error) {
	const q = `
		DELETE FROM domain_claims
		WHERE status = 'pending'
		  AND pending_expires_at < now() - interval '1 day'`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

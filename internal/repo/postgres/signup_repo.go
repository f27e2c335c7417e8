package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// SignupRepo persists pending signups and owns the two multi-record
// transactions of the flow: claim acquisition (claim + signup written
// together) and confirmation (signup + claim + account flipped together).
// Either transaction commits fully or leaves the ledger untouched.
type SignupRepo interface {
	CreateWithClaim(ctx context.Context, s *domain.PendingSignup) (domain.ClaimOutcome, error)
	GetByID(ctx context.Context, id string) (*domain.PendingSignup, error)
	GetByTokenDigest(ctx context.Context, digest string) (*domain.PendingSignup, error)
	RecordResend(ctx context.Context, id, tokenDigest string, tokenExpires time.Time) error
	ConfirmWithClaim(ctx context.Context, s *domain.PendingSignup, acct *domain.Account) (domain.ClaimOutcome, error)
	SetState(ctx context.Context, id string, state domain.SignupState) error
	SweepExpired(ctx context.Context) (int64, error)
}

type signupRepo struct {
	pool *pgxpool.Pool
}

func NewSignupRepo(pool *pgxpool.Pool) SignupRepo {
	return &signupRepo{pool: pool}
}

const signupCols = `id, email, domain, provider, password_hash, token_digest, token_expires_at, state, resend_count, last_resend_at, created_at, updated_at`

// CreateWithClaim atomically applies the claim decision table and, on
// acquisition, writes the new pending claim and the pending signup in one
// transaction. Concurrent attempts on the same domain serialize on an
// advisory lock keyed by the domain, so exactly one of two racing signups
// acquires the claim.
func (r *signupRepo) CreateWithClaim(ctx context.Context, s *domain.PendingSignup) (domain.ClaimOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.Domain); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("lock domain key: %w", err)
	}

	existing, err := scanClaim(tx.QueryRow(ctx, `SELECT `+claimCols+` FROM domain_claims WHERE domain = $1`, s.Domain))
	if err == pgx.ErrNoRows {
		existing = nil
	} else if err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("read claim: %w", err)
	}

	outcome := decideClaim(existing, time.Now())
	if !outcome.Acquired {
		return outcome, nil
	}

	const insertSignup = `
		INSERT INTO pending_signups (id, email, domain, provider, password_hash, token_digest, token_expires_at, state, resend_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)`
	if _, err := tx.Exec(ctx, insertSignup,
		s.ID, s.Email, s.Domain, s.Provider, s.PasswordHash, s.TokenDigest, s.TokenExpires, s.State); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("insert pending signup: %w", err)
	}

	const upsertClaim = `
		INSERT INTO domain_claims (domain, status, pending_id, pending_owner, pending_expires_at, updated_at)
		VALUES ($1, 'pending', $2, $3, $4, now())
		ON CONFLICT (domain) DO UPDATE SET
			status = 'pending',
			pending_id = EXCLUDED.pending_id,
			pending_owner = EXCLUDED.pending_owner,
			pending_expires_at = EXCLUDED.pending_expires_at,
			verified_owner = NULL,
			verified_at = NULL,
			updated_at = now()`
	if _, err := tx.Exec(ctx, upsertClaim, s.Domain, s.ID, s.Email, s.TokenExpires); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("upsert claim: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("commit claim tx: %w", err)
	}
	return outcome, nil
}

func (r *signupRepo) GetByID(ctx context.Context, id string) (*domain.PendingSignup, error) {
	const q = `SELECT ` + signupCols + ` FROM pending_signups WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s, err := scanSignup(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *signupRepo) GetByTokenDigest(ctx context.Context, digest string) (*domain.PendingSignup, error) {
	const q = `SELECT ` + signupCols + ` FROM pending_signups WHERE token_digest = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s, err := scanSignup(r.pool.QueryRow(ctx, q, digest))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func scanSignup(row pgx.Row) (*domain.PendingSignup, error) {
	var s domain.PendingSignup
	var lastResend *time.Time
	err := row.Scan(&s.ID, &s.Email, &s.Domain, &s.Provider, &s.PasswordHash,
		&s.TokenDigest, &s.TokenExpires, &s.State, &s.ResendCount, &lastResend,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastResend != nil {
		s.LastResendAt = *lastResend
	}
	return &s, nil
}

// RecordResend rotates the token, bumps the resend counters, and keeps the
// domain claim's hold alive at least as long as the fresh token, so a
// late-resent token never outlives the claim backing it. The cooldown and
// max-resend policy is enforced by the service before calling.
func (r *signupRepo) RecordResend(ctx context.Context, id, tokenDigest string, tokenExpires time.Time) error {
	const rotateToken = `
		UPDATE pending_signups
		SET token_digest = $2,
		    token_expires_at = $3,
		    resend_count = resend_count + 1,
		    last_resend_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND state = 'awaiting_confirmation'`

	const extendClaim = `
		UPDATE domain_claims
		SET pending_expires_at = GREATEST(pending_expires_at, $2),
		    updated_at = now()
		WHERE pending_id = $1
		  AND status = 'pending'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin resend tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, rotateToken, id, tokenDigest, tokenExpires)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if _, err := tx.Exec(ctx, extendClaim, id, tokenExpires); err != nil {
		return fmt.Errorf("extend claim hold: %w", err)
	}
	return tx.Commit(ctx)
}

// ConfirmWithClaim flips the pending signup to confirmed, the domain claim
// to verified, and provisions the account, all in one transaction.
// Idempotent under retry: a claim already verified by the same owner is a
// no-op, by a different owner a DOMAIN_TAKEN conflict. A rival's live
// pending claim also blocks confirmation.
func (r *signupRepo) ConfirmWithClaim(ctx context.Context, s *domain.PendingSignup, acct *domain.Account) (domain.ClaimOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.Domain); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("lock domain key: %w", err)
	}

	existing, err := scanClaim(tx.QueryRow(ctx, `SELECT `+claimCols+` FROM domain_claims WHERE domain = $1`, s.Domain))
	if err == pgx.ErrNoRows {
		existing = nil
	} else if err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("read claim: %w", err)
	}

	if outcome, done := decideConfirm(existing, s, time.Now()); done {
		return outcome, nil
	}

	const confirmSignup = `
		UPDATE pending_signups
		SET state = 'confirmed', updated_at = now()
		WHERE id = $1 AND state = 'awaiting_confirmation'`
	result, err := tx.Exec(ctx, confirmSignup, s.ID)
	if err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("confirm signup: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ClaimOutcome{}, pgx.ErrNoRows
	}

	const verifyClaim = `
		INSERT INTO domain_claims (domain, status, verified_owner, verified_at, updated_at)
		VALUES ($1, 'verified', $2, now(), now())
		ON CONFLICT (domain) DO UPDATE SET
			status = 'verified',
			verified_owner = EXCLUDED.verified_owner,
			verified_at = now(),
			pending_id = NULL,
			pending_owner = NULL,
			pending_expires_at = NULL,
			updated_at = now()`
	if _, err := tx.Exec(ctx, verifyClaim, s.Domain, s.Email); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("verify claim: %w", err)
	}

	const insertAccount = `
		INSERT INTO accounts (id, email, domain, provider, password_hash, verified_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (email) DO UPDATE SET verified_at = accounts.verified_at`
	if _, err := tx.Exec(ctx, insertAccount,
		acct.ID, acct.Email, acct.Domain, acct.Provider, acct.PasswordHash); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("insert account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ClaimOutcome{}, fmt.Errorf("commit confirm tx: %w", err)
	}
	return domain.ClaimOutcome{Acquired: true}, nil
}

func (r *signupRepo) SetState(ctx context.Context, id string, state domain.SignupState) error {
	const q = `UPDATE pending_signups SET state = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, state)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SweepExpired removes stale signups: awaiting ones whose token lapsed over
// a week ago and finalized ones older than thirty days.
func (r *signupRepo) SweepExpired(ctx context.Context) (int64, error) {
	const q = `
		DELETE FROM pending_signups
		WHERE (state = 'awaiting_confirmation' AND token_expires_at < now() - interval '7 days')
		   OR (state IN ('finalized', 'expired') AND updated_at < now() - interval '30 days')`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

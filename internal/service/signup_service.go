package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/mailer"
	"github.com/gatehouse-io/gatehouse/internal/repo/postgres"
	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/config"
	"github.com/gatehouse-io/gatehouse/pkg/events"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// ProbeRunner is the deliverability cascade surface the service depends on.
type ProbeRunner interface {
	Probe(ctx context.Context, email domain.EmailCandidate) ([]domain.ProbeResult, domain.Verdict)
}

// RateLimiter caps signup attempts per client key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedeemGuard deduplicates concurrent redemptions of one token digest.
type RedeemGuard interface {
	Claim(ctx context.Context, digest, pendingID string) (bool, string, error)
	Release(ctx context.Context, digest string) error
}

// SignupService drives the verification cascade: probe, claim, token
// dispatch, confirmation, account provisioning. Extraction runs
// asynchronously off the verified event, not here.
type SignupService struct {
	signups  postgres.SignupRepo
	claims   postgres.ClaimRepo
	accounts postgres.AccountRepo
	profiles postgres.ProfileRepo
	costs    postgres.CostRepo
	prober   ProbeRunner
	mail     mailer.Service
	bus      events.Publisher
	limiter  RateLimiter
	guard    RedeemGuard
	cfg      *config.Config
}

func NewSignupService(
	signups postgres.SignupRepo,
	claims postgres.ClaimRepo,
	accounts postgres.AccountRepo,
	profiles postgres.ProfileRepo,
	costs postgres.CostRepo,
	prober ProbeRunner,
	mail mailer.Service,
	bus events.Publisher,
	limiter RateLimiter,
	guard RedeemGuard,
	cfg *config.Config,
) *SignupService {
	return &SignupService{
		signups:  signups,
		claims:   claims,
		accounts: accounts,
		profiles: profiles,
		costs:    costs,
		prober:   prober,
		mail:     mail,
		bus:      bus,
		limiter:  limiter,
		guard:    guard,
		cfg:      cfg,
	}
}

// StartResult is returned when a signup passes probing and acquires its
// domain claim.
type StartResult struct {
	PendingID string    `json:"pending_id"`
	Email     string    `json:"email"`
	Domain    string    `json:"domain"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StartSignup runs the front half of the cascade. It returns the pending id
// on success; domain sentinel errors otherwise. Probe spend is recorded in
// the cost ledger no matter the outcome.
func (s *SignupService) StartSignup(ctx context.Context, req domain.SignupRequest, clientKey string) (*StartResult, error) {
	req.Normalize()
	if req.Email == "" {
		return nil, domain.ErrEmailRequired
	}

	if s.limiter != nil && clientKey != "" {
		allowed, err := s.limiter.Allow(ctx, clientKey)
		if err != nil {
			logger.WarnContext(ctx, "Rate limiter unavailable, allowing request", "error", err)
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	candidate := domain.NewEmailCandidate(req.Email)

	if req.Provider == domain.ProviderPassword && len(req.Password) < s.cfg.Signup.MinPasswordLen {
		return nil, domain.ErrInvalidPassword
	}

	pending := &domain.PendingSignup{
		ID:       uuid.New().String(),
		Email:    candidate.Address,
		Domain:   candidate.Domain,
		Provider: req.Provider,
		State:    domain.StateStarted,
	}
	if err := pending.Transition(domain.StateEmailProbing); err != nil {
		return nil, err
	}

	results, verdict := s.prober.Probe(ctx, candidate)
	for _, r := range results {
		s.logCost(ctx, &domain.CostLogEntry{
			Operation: domain.OpEmailValidation,
			Tier:      r.Tier,
			Outcome:   r.Verdict,
			Cost:      r.Cost,
			ElapsedMs: r.Elapsed.Milliseconds(),
		})
	}
	if verdict == domain.VerdictFail {
		if err := pending.Transition(domain.StateRejected); err != nil {
			return nil, err
		}
		s.publish(ctx, events.SignupRejected, events.SignupRejectedEvent{
			Email:      pending.Email,
			Domain:     pending.Domain,
			Code:       domain.CodeInvalidEmail,
			RejectedAt: time.Now(),
		})
		return nil, domain.ErrInvalidEmail
	}

	if req.Provider == domain.ProviderPassword {
		hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
		if err != nil {
			return nil, err
		}
		pending.PasswordHash = hash
	}

	rawToken, digest, err := mintToken()
	if err != nil {
		return nil, err
	}
	pending.TokenDigest = digest
	pending.TokenExpires = time.Now().Add(s.cfg.Signup.TokenTTL)
	if err := pending.Transition(domain.StateAwaitingConfirmation); err != nil {
		return nil, err
	}

	outcome, err := s.signups.CreateWithClaim(ctx, pending)
	if err != nil {
		return nil, err
	}
	if !outcome.Acquired {
		switch outcome.Reason {
		case domain.ConflictDomainTaken:
			return nil, domain.ErrDomainTaken
		default:
			return nil, domain.ErrClaimPending
		}
	}

	verifyURL := s.cfg.Server.BaseURL + "/verify?token=" + rawToken
	sendStart := time.Now()
	sendErr := s.mail.SendVerificationEmail(pending.Email, pending.Domain, verifyURL)
	sendOutcome := domain.VerdictPass
	if sendErr != nil {
		sendOutcome = domain.VerdictIndeterminate
	}
	// Token dispatch is the cascade's EXPENSIVE tier; its spend is metered
	// like any probe.
	s.logCost(ctx, &domain.CostLogEntry{
		Operation: domain.OpEmailValidation,
		Tier:      domain.TierExpensive,
		Outcome:   sendOutcome,
		Cost:      domain.ProbeCostSend,
		ElapsedMs: time.Since(sendStart).Milliseconds(),
	})
	if sendErr != nil {
		// The claim and pending record stay committed so the user can
		// recover via resend.
		logger.ErrorContext(ctx, "Failed to send verification email",
			"pending_id", pending.ID, "error", sendErr)
		return nil, sendErr
	}

	s.publish(ctx, events.SignupStarted, events.SignupStartedEvent{
		PendingID: pending.ID,
		Email:     pending.Email,
		Domain:    pending.Domain,
		StartedAt: time.Now(),
	})

	logger.InfoContext(ctx, "Signup started",
		"pending_id", pending.ID, "domain", pending.Domain)

	return &StartResult{
		PendingID: pending.ID,
		Email:     pending.Email,
		Domain:    pending.Domain,
		ExpiresAt: pending.TokenExpires,
	}, nil
}

// VerifyResult is returned on token redemption.
type VerifyResult struct {
	AccountID       string `json:"account_id"`
	Email           string `json:"email"`
	Domain          string `json:"domain"`
	AlreadyVerified bool   `json:"already_verified,omitempty"`
}

// Verify redeems a verification token, flips the claim to verified and
// provisions the account. Redemption is idempotent: replaying a redeemed
// token reports the existing account instead of failing.
func (s *SignupService) Verify(ctx context.Context, rawToken string) (*VerifyResult, error) {
	if rawToken == "" {
		return nil, domain.ErrTokenInvalid
	}
	digest := digestToken(rawToken)

	pending, err := s.signups.GetByTokenDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, domain.ErrTokenInvalid
	}

	switch pending.State {
	case domain.StateConfirmed, domain.StateExtracting, domain.StateFinalized:
		acct, err := s.accounts.FindByEmail(ctx, pending.Email)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			return nil, domain.ErrNotFound
		}
		return &VerifyResult{
			AccountID:       acct.ID,
			Email:           acct.Email,
			Domain:          acct.Domain,
			AlreadyVerified: true,
		}, nil
	case domain.StateAwaitingConfirmation:
		// proceed
	default:
		return nil, domain.ErrTokenInvalid
	}

	if pending.TokenExpired(time.Now()) {
		if err := s.signups.SetState(ctx, pending.ID, domain.StateExpired); err != nil {
			logger.ErrorContext(ctx, "Failed to mark signup expired",
				"pending_id", pending.ID, "error", err)
		}
		s.publish(ctx, events.SignupExpired, events.SignupExpiredEvent{
			PendingID: pending.ID,
			Email:     pending.Email,
			Domain:    pending.Domain,
			ExpiredAt: time.Now(),
		})
		return nil, domain.ErrTokenExpired
	}

	if s.guard != nil {
		first, _, err := s.guard.Claim(ctx, digest, pending.ID)
		if err != nil {
			logger.WarnContext(ctx, "Redeem guard unavailable, relying on transaction",
				"pending_id", pending.ID, "error", err)
		} else if !first {
			return nil, domain.ErrAlreadyVerified
		}
	}

	acct := &domain.Account{
		ID:           uuid.New().String(),
		Email:        pending.Email,
		Domain:       pending.Domain,
		Provider:     pending.Provider,
		PasswordHash: pending.PasswordHash,
	}

	outcome, err := s.signups.ConfirmWithClaim(ctx, pending, acct)
	if err != nil {
		if s.guard != nil {
			_ = s.guard.Release(ctx, digest)
		}
		return nil, err
	}
	if !outcome.Acquired {
		if s.guard != nil {
			_ = s.guard.Release(ctx, digest)
		}
		return nil, domain.ErrDomainTaken
	}

	s.publish(ctx, events.SignupVerified, events.SignupVerifiedEvent{
		PendingID:  pending.ID,
		AccountID:  acct.ID,
		Email:      acct.Email,
		Domain:     acct.Domain,
		VerifiedAt: time.Now(),
	})

	logger.InfoContext(ctx, "Signup verified",
		"pending_id", pending.ID, "domain", pending.Domain)

	return &VerifyResult{
		AccountID: acct.ID,
		Email:     acct.Email,
		Domain:    acct.Domain,
	}, nil
}

// Resend rotates the verification token and re-sends the email, subject to
// the cooldown and the lifetime resend cap.
func (s *SignupService) Resend(ctx context.Context, pendingID string) error {
	if pendingID == "" {
		return domain.ErrNotFound
	}

	pending, err := s.signups.GetByID(ctx, pendingID)
	if err != nil {
		return err
	}
	if pending == nil {
		return domain.ErrNotFound
	}
	if pending.State != domain.StateAwaitingConfirmation {
		return domain.ErrAlreadyVerified
	}
	if pending.ResendCount >= s.cfg.Signup.MaxResends {
		return domain.ErrMaxResends
	}
	if !pending.LastResendAt.IsZero() && time.Since(pending.LastResendAt) < s.cfg.Signup.ResendCooldown {
		return domain.ErrRateLimited
	}

	rawToken, digest, err := mintToken()
	if err != nil {
		return err
	}
	expires := time.Now().Add(s.cfg.Signup.TokenTTL)
	if err := s.signups.RecordResend(ctx, pending.ID, digest, expires); err != nil {
		return err
	}

	verifyURL := s.cfg.Server.BaseURL + "/verify?token=" + rawToken
	if err := s.mail.SendVerificationEmail(pending.Email, pending.Domain, verifyURL); err != nil {
		logger.ErrorContext(ctx, "Failed to resend verification email",
			"pending_id", pending.ID, "error", err)
		return err
	}

	logger.InfoContext(ctx, "Verification email resent",
		"pending_id", pending.ID, "count", pending.ResendCount+1)
	return nil
}

// DomainAvailability is the read-only claim check exposed before signup.
type DomainAvailability struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// CheckDomain reports whether a claim on dom would succeed right now. It is
// advisory: the authoritative decision happens inside the signup
// transaction.
func (s *SignupService) CheckDomain(ctx context.Context, dom string) (*DomainAvailability, error) {
	if dom == "" {
		return nil, domain.ErrEmailRequired
	}
	outcome, err := s.claims.Availability(ctx, dom)
	if err != nil {
		return nil, err
	}
	return &DomainAvailability{
		Domain:    dom,
		Available: outcome.Acquired,
		Reason:    string(outcome.Reason),
	}, nil
}

// SignupStatus is the polling read model for a pending signup.
type SignupStatus struct {
	PendingID string                 `json:"pending_id"`
	State     domain.SignupState     `json:"state"`
	Domain    string                 `json:"domain"`
	Profile   *domain.CompanyProfile `json:"profile,omitempty"`
}

// Status reports where a signup sits in the cascade. Once extraction has
// finished the latest company profile rides along.
func (s *SignupService) Status(ctx context.Context, pendingID string) (*SignupStatus, error) {
	pending, err := s.signups.GetByID(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, domain.ErrNotFound
	}

	status := &SignupStatus{
		PendingID: pending.ID,
		State:     pending.State,
		Domain:    pending.Domain,
	}
	if pending.State == domain.StateFinalized {
		profile, err := s.profiles.LatestByDomain(ctx, pending.Domain)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load profile for status",
				"pending_id", pending.ID, "error", err)
		} else {
			status.Profile = profile
		}
	}
	return status, nil
}

// LoginResult carries the issued token pair.
type LoginResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccountID    string    `json:"account_id"`
	Domain       string    `json:"domain"`
}

// Login authenticates a password account and issues a JWT. Federated
// accounts have no password hash and cannot log in here.
func (s *SignupService) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	req.Normalize()
	if req.Email == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	acct, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Provider != domain.ProviderPassword || acct.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, acct.PasswordHash)
	if err != nil || !match {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(acct.ID, acct.Email, acct.Domain, "member",
		s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.NewRefreshToken(acct.ID, s.cfg.Auth.JWTSecret, s.cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(s.cfg.Auth.AccessTokenTTL),
		AccountID:    acct.ID,
		Domain:       acct.Domain,
	}, nil
}

// CostStats surfaces the admin spend aggregation.
func (s *SignupService) CostStats(ctx context.Context, operation string, from, to time.Time) (*domain.CostStats, error) {
	return s.costs.Stats(ctx, operation, from, to)
}

func (s *SignupService) logCost(ctx context.Context, e *domain.CostLogEntry) {
	if err := s.costs.Append(ctx, e); err != nil {
		logger.ErrorContext(ctx, "Failed to append cost ledger entry",
			"operation", e.Operation, "tier", string(e.Tier), "error", err)
	}
}

func (s *SignupService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event",
			"subject", subject, "error", err)
	}
}

// mintToken produces a 32-byte random bearer token and its sha256 digest.
// Only the digest is persisted.
func mintToken() (raw, digest string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, digestToken(raw), nil
}

func digestToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

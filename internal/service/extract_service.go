package service

import (
	"context"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/extract"
	"github.com/gatehouse-io/gatehouse/internal/repo/postgres"
	"github.com/gatehouse-io/gatehouse/pkg/events"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// ProfileExtractor is the cascade surface the extraction service runs.
type ProfileExtractor interface {
	Extract(ctx context.Context, dom string) (*domain.CompanyProfile, []extract.Attempt, error)
}

// ExtractService runs profile extraction for verified signups. It is
// invoked by the extraction worker off the verified event, never inline
// with an HTTP request.
type ExtractService struct {
	signups  postgres.SignupRepo
	profiles postgres.ProfileRepo
	costs    postgres.CostRepo
	cascade  ProfileExtractor
	bus      events.Publisher
}

func NewExtractService(
	signups postgres.SignupRepo,
	profiles postgres.ProfileRepo,
	costs postgres.CostRepo,
	cascade ProfileExtractor,
	bus events.Publisher,
) *ExtractService {
	return &ExtractService{
		signups:  signups,
		profiles: profiles,
		costs:    costs,
		cascade:  cascade,
		bus:      bus,
	}
}

// ExtractForSignup moves a confirmed signup through extracting to
// finalized. Extraction failure still finalizes the signup: the account is
// verified either way, the profile is best-effort enrichment.
func (s *ExtractService) ExtractForSignup(ctx context.Context, pendingID, accountID, dom string) error {
	if err := s.signups.SetState(ctx, pendingID, domain.StateExtracting); err != nil {
		logger.ErrorContext(ctx, "Failed to mark signup extracting",
			"pending_id", pendingID, "error", err)
	}
	s.publish(ctx, events.ProfileExtractRequested, events.ProfileExtractRequestedEvent{
		PendingID:   pendingID,
		AccountID:   accountID,
		Domain:      dom,
		RequestedAt: time.Now(),
	})

	profile, attempts, err := s.cascade.Extract(ctx, dom)
	for _, a := range attempts {
		s.logCost(ctx, &domain.CostLogEntry{
			Operation: domain.OpDomainVerification,
			Tier:      a.Tier,
			Outcome:   a.Outcome,
			Cost:      a.Cost,
			ElapsedMs: a.Elapsed.Milliseconds(),
		})
	}

	if err != nil {
		logger.WarnContext(ctx, "Profile extraction exhausted",
			"domain", dom, "pending_id", pendingID, "error", err)
		s.publish(ctx, events.ProfileExtractFailed, events.ProfileExtractFailedEvent{
			AccountID: accountID,
			Domain:    dom,
			Reason:    err.Error(),
			FailedAt:  time.Now(),
		})
	} else {
		if err := s.profiles.Create(ctx, profile); err != nil {
			logger.ErrorContext(ctx, "Failed to persist company profile",
				"domain", dom, "error", err)
			return err
		}
		s.publish(ctx, events.ProfileExtracted, events.ProfileExtractedEvent{
			AccountID:   accountID,
			Domain:      dom,
			Tier:        string(profile.ExtractionMethod),
			Confidence:  profile.Confidence,
			Cost:        profile.ExtractionCost,
			ExtractedAt: time.Now(),
		})
		logger.InfoContext(ctx, "Company profile extracted",
			"domain", dom,
			"tier", string(profile.ExtractionMethod),
			"confidence", profile.Confidence,
			"cost", profile.ExtractionCost)
	}

	if err := s.signups.SetState(ctx, pendingID, domain.StateFinalized); err != nil {
		logger.ErrorContext(ctx, "Failed to finalize signup",
			"pending_id", pendingID, "error", err)
		return err
	}
	return nil
}

func (s *ExtractService) logCost(ctx context.Context, e *domain.CostLogEntry) {
	if err := s.costs.Append(ctx, e); err != nil {
		logger.ErrorContext(ctx, "Failed to append cost ledger entry",
			"operation", e.Operation, "tier", string(e.Tier), "error", err)
	}
}

func (s *ExtractService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event",
			"subject", subject, "error", err)
	}
}

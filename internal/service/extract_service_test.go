package service_test

import (
	"context"
	"testing"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/extract"
	"github.com/gatehouse-io/gatehouse/internal/service"
)

// ---------- Mocks ----------

type mockCascade struct {
	profile  *domain.CompanyProfile
	attempts []extract.Attempt
	err      error
}

func (m *mockCascade) Extract(_ context.Context, dom string) (*domain.CompanyProfile, []extract.Attempt, error) {
	return m.profile, m.attempts, m.err
}

// ---------- Tests ----------

func TestExtractForSignupSuccess(t *testing.T) {
	signups := newMockSignupRepo()
	signups.add(&domain.PendingSignup{ID: "pending-1", Domain: "acme.io", State: domain.StateConfirmed})
	profiles := newMockProfileRepo()
	costs := &mockCostRepo{}
	bus := &mockBus{}
	cascade := &mockCascade{
		profile: &domain.CompanyProfile{
			Domain:           "acme.io",
			Name:             "Acme",
			Confidence:       0.9,
			ExtractionMethod: domain.TierCheap,
			ExtractionCost:   domain.ExtractCostCrawl,
		},
		attempts: []extract.Attempt{
			{Tier: domain.TierFree, Outcome: domain.VerdictFail},
			{Tier: domain.TierCheap, Outcome: domain.VerdictPass, Cost: domain.ExtractCostCrawl},
		},
	}

	svc := service.NewExtractService(signups, profiles, costs, cascade, bus)
	if err := svc.ExtractForSignup(context.Background(), "pending-1", "acct-1", "acme.io"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if profiles.profiles["acme.io"] == nil {
		t.Fatal("profile not persisted")
	}
	if signups.states["pending-1"] != domain.StateFinalized {
		t.Errorf("signup not finalized, state=%s", signups.states["pending-1"])
	}
	if len(costs.entries) != 2 {
		t.Errorf("every extraction attempt must hit the cost ledger, got %d", len(costs.entries))
	}
	for _, e := range costs.entries {
		if e.Operation != domain.OpDomainVerification {
			t.Errorf("wrong ledger operation: %s", e.Operation)
		}
	}
	if !bus.published("profile.extract.requested") {
		t.Error("profile.extract.requested event not published")
	}
	if !bus.published("profile.extracted") {
		t.Error("profile.extracted event not published")
	}
}

func TestExtractForSignupExhaustedStillFinalizes(t *testing.T) {
	signups := newMockSignupRepo()
	signups.add(&domain.PendingSignup{ID: "pending-1", Domain: "acme.io", State: domain.StateConfirmed})
	profiles := newMockProfileRepo()
	costs := &mockCostRepo{}
	bus := &mockBus{}
	cascade := &mockCascade{
		err: extract.ErrExhausted,
		attempts: []extract.Attempt{
			{Tier: domain.TierFree, Outcome: domain.VerdictFail},
			{Tier: domain.TierCheap, Outcome: domain.VerdictFail},
			{Tier: domain.TierExpensive, Outcome: domain.VerdictFail, Cost: domain.ExtractCostAnalyze},
		},
	}

	svc := service.NewExtractService(signups, profiles, costs, cascade, bus)
	if err := svc.ExtractForSignup(context.Background(), "pending-1", "acct-1", "acme.io"); err != nil {
		t.Fatalf("extraction failure must not fail the job: %v", err)
	}

	// The account is verified either way; the profile is best-effort.
	if signups.states["pending-1"] != domain.StateFinalized {
		t.Errorf("signup must finalize even without a profile, state=%s", signups.states["pending-1"])
	}
	if len(profiles.profiles) != 0 {
		t.Error("no profile should be stored on exhaustion")
	}
	if len(costs.entries) != 3 {
		t.Errorf("spend is recorded even on failure, got %d entries", len(costs.entries))
	}
	if !bus.published("profile.extract.failed") {
		t.Error("profile.extract.failed event not published")
	}
}

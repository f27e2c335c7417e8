package extract_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/extract"
)

// ---------- Mocks ----------

type stubExtractor struct {
	tier       domain.Tier
	cost       float64
	floor      float64
	confidence float64
	err        error
	calls      int
}

func (s *stubExtractor) Tier() domain.Tier { return s.tier }
func (s *stubExtractor) Cost() float64     { return s.cost }
func (s *stubExtractor) Floor() float64    { return s.floor }

func (s *stubExtractor) Extract(_ context.Context, dom string) (*domain.CompanyProfile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.CompanyProfile{
		Domain:     dom,
		Name:       "Stub Co",
		Confidence: s.confidence,
	}, nil
}

// ---------- Tests ----------

func TestCascadeAcceptsFirstTierMeetingFloor(t *testing.T) {
	free := &stubExtractor{tier: domain.TierFree, floor: domain.FreeConfidenceFloor, confidence: 0.8}
	cheap := &stubExtractor{tier: domain.TierCheap, floor: domain.CheapConfidenceFloor, confidence: 0.9}

	c := extract.NewCascade(time.Minute, free, cheap)
	profile, attempts, err := c.Extract(context.Background(), "acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ExtractionMethod != domain.TierFree {
		t.Fatalf("expected FREE tier result, got %s", profile.ExtractionMethod)
	}
	if cheap.calls != 0 {
		t.Fatal("cheaper tier sufficed; CHEAP must not run")
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
}

func TestCascadeFallsThroughBelowFloor(t *testing.T) {
	// 0.65 clears the CHEAP floor (0.6) but not the FREE floor (0.7).
	free := &stubExtractor{tier: domain.TierFree, floor: domain.FreeConfidenceFloor, confidence: 0.65}
	cheap := &stubExtractor{tier: domain.TierCheap, floor: domain.CheapConfidenceFloor, confidence: 0.65}

	c := extract.NewCascade(time.Minute, free, cheap)
	profile, attempts, err := c.Extract(context.Background(), "acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ExtractionMethod != domain.TierCheap {
		t.Fatalf("expected CHEAP tier result, got %s", profile.ExtractionMethod)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].Outcome != domain.VerdictFail {
		t.Errorf("below-floor attempt should be recorded as FAIL, got %s", attempts[0].Outcome)
	}
}

func TestCascadeNegativeFloorAcceptsAnything(t *testing.T) {
	free := &stubExtractor{tier: domain.TierFree, floor: domain.FreeConfidenceFloor, err: errors.New("search down")}
	expensive := &stubExtractor{tier: domain.TierExpensive, floor: -1, confidence: 0.1}

	c := extract.NewCascade(time.Minute, free, expensive)
	profile, _, err := c.Extract(context.Background(), "acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ExtractionMethod != domain.TierExpensive {
		t.Fatalf("expected EXPENSIVE result, got %s", profile.ExtractionMethod)
	}
	if profile.Confidence != 0.1 {
		t.Errorf("last-resort tier accepts any confidence, got %f", profile.Confidence)
	}
}

func TestCascadeExhausted(t *testing.T) {
	free := &stubExtractor{tier: domain.TierFree, floor: domain.FreeConfidenceFloor, err: errors.New("search down")}
	cheap := &stubExtractor{tier: domain.TierCheap, floor: domain.CheapConfidenceFloor, err: errors.New("site unreachable")}

	c := extract.NewCascade(time.Minute, free, cheap)
	profile, attempts, err := c.Extract(context.Background(), "acme.io")
	if !errors.Is(err, extract.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if profile != nil {
		t.Fatal("no profile should be returned on exhaustion")
	}
	if len(attempts) != 2 {
		t.Fatalf("every attempt must be recorded, got %d", len(attempts))
	}
}

func TestCascadeStampsCostAndTier(t *testing.T) {
	cheap := &stubExtractor{tier: domain.TierCheap, cost: domain.ExtractCostCrawl, floor: domain.CheapConfidenceFloor, confidence: 0.9}

	c := extract.NewCascade(time.Minute, cheap)
	profile, _, err := c.Extract(context.Background(), "acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ExtractionCost != domain.ExtractCostCrawl {
		t.Errorf("extraction cost not stamped: %f", profile.ExtractionCost)
	}
	if profile.Domain != "acme.io" {
		t.Errorf("domain not stamped: %s", profile.Domain)
	}
	if profile.ExtractedAt.IsZero() {
		t.Error("extraction timestamp not stamped")
	}
}

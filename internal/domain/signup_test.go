package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

func TestSignupStateTransitions(t *testing.T) {
	legal := []struct {
		from, to domain.SignupState
	}{
		{domain.StateStarted, domain.StateEmailProbing},
		{domain.StateEmailProbing, domain.StateRejected},
		{domain.StateEmailProbing, domain.StateAwaitingConfirmation},
		{domain.StateAwaitingConfirmation, domain.StateExpired},
		{domain.StateAwaitingConfirmation, domain.StateConfirmed},
		{domain.StateConfirmed, domain.StateExtracting},
		{domain.StateConfirmed, domain.StateFinalized},
		{domain.StateExtracting, domain.StateFinalized},
	}
	for _, tc := range legal {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct {
		from, to domain.SignupState
	}{
		{domain.StateStarted, domain.StateConfirmed},
		{domain.StateRejected, domain.StateAwaitingConfirmation},
		{domain.StateExpired, domain.StateConfirmed},
		{domain.StateFinalized, domain.StateExtracting},
		{domain.StateConfirmed, domain.StateAwaitingConfirmation},
	}
	for _, tc := range illegal {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestPendingSignupTransitionRejectsIllegal(t *testing.T) {
	p := &domain.PendingSignup{State: domain.StateStarted}

	if err := p.Transition(domain.StateEmailProbing); err != nil {
		t.Fatalf("legal transition failed: %v", err)
	}
	if p.State != domain.StateEmailProbing {
		t.Fatalf("state not applied, got %s", p.State)
	}

	err := p.Transition(domain.StateFinalized)
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if p.State != domain.StateEmailProbing {
		t.Fatalf("state mutated on rejected transition: %s", p.State)
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []domain.SignupState{domain.StateRejected, domain.StateExpired, domain.StateFinalized} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	if domain.StateAwaitingConfirmation.Terminal() {
		t.Error("awaiting_confirmation must not be terminal")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	p := &domain.PendingSignup{TokenExpires: now.Add(time.Hour)}
	if p.TokenExpired(now) {
		t.Error("token should not be expired an hour early")
	}
	if !p.TokenExpired(now.Add(2 * time.Hour)) {
		t.Error("token should be expired after TTL")
	}
}

func TestClaimExpired(t *testing.T) {
	now := time.Now()
	pending := &domain.DomainClaim{Status: domain.ClaimPending, PendingExpiresAt: now.Add(-time.Minute)}
	if !pending.Expired(now) {
		t.Error("lapsed pending claim should be expired")
	}

	verified := &domain.DomainClaim{Status: domain.ClaimVerified, PendingExpiresAt: now.Add(-time.Minute)}
	if verified.Expired(now) {
		t.Error("verified claims never expire")
	}
}

func TestNewEmailCandidate(t *testing.T) {
	c := domain.NewEmailCandidate("  Alice@ACME.io ")
	if c.Address != "alice@acme.io" {
		t.Errorf("address not normalized: %q", c.Address)
	}
	if c.Domain != "acme.io" {
		t.Errorf("domain not parsed: %q", c.Domain)
	}
	if !c.IsWellFormed() {
		t.Error("expected well-formed address")
	}

	for _, raw := range []string{"", "no-at-sign", "two@@ats.io", "nodot@host"} {
		if domain.NewEmailCandidate(raw).IsWellFormed() {
			t.Errorf("expected %q to be malformed", raw)
		}
	}
}

func TestDenyLists(t *testing.T) {
	lists := domain.NewDenyLists([]string{"corp-webmail.example"}, []string{"burner.example"})

	if !lists.IsPersonalProvider("gmail.com") {
		t.Error("gmail.com should be a personal provider")
	}
	if !lists.IsPersonalProvider("corp-webmail.example") {
		t.Error("extra personal domain not merged")
	}
	if !lists.IsDisposable("mailinator.com") {
		t.Error("mailinator.com should be disposable")
	}
	if !lists.IsDisposable("burner.example") {
		t.Error("extra disposable domain not merged")
	}
	if lists.IsPersonalProvider("acme.io") {
		t.Error("acme.io should not be flagged")
	}
}

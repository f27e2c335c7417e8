package probe_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/probe"
)

// ---------- Mocks ----------

type fakeResolver struct {
	records []*net.MX
	err     error
	calls   int
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	f.calls++
	return f.records, f.err
}

func fixedCheck(tier domain.Tier, name string, verdict domain.Verdict, ran *[]string) probe.Check {
	return probe.Check{
		Tier: tier,
		Name: name,
		Run: func(_ context.Context, _ domain.EmailCandidate) (domain.Verdict, string) {
			if ran != nil {
				*ran = append(*ran, name)
			}
			return verdict, ""
		},
	}
}

// ---------- Tests ----------

func TestCascadeHaltsOnDefinitiveFail(t *testing.T) {
	var ran []string
	p := probe.NewWithChecks(
		fixedCheck(domain.TierFree, "first", domain.VerdictFail, &ran),
		fixedCheck(domain.TierCheap, "second", domain.VerdictPass, &ran),
	)

	results, verdict := p.Probe(context.Background(), domain.NewEmailCandidate("a@b.co"))

	if verdict != domain.VerdictFail {
		t.Fatalf("expected FAIL, got %s", verdict)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(ran) != 1 || ran[0] != "first" {
		t.Fatalf("later tiers must not run after a FAIL, ran=%v", ran)
	}
}

func TestCascadeIndeterminateFallsThrough(t *testing.T) {
	var ran []string
	p := probe.NewWithChecks(
		fixedCheck(domain.TierFree, "first", domain.VerdictIndeterminate, &ran),
		fixedCheck(domain.TierCheap, "second", domain.VerdictPass, &ran),
	)

	results, verdict := p.Probe(context.Background(), domain.NewEmailCandidate("a@b.co"))

	if verdict != domain.VerdictPass {
		t.Fatalf("expected PASS, got %s", verdict)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Verdict != domain.VerdictIndeterminate {
		t.Errorf("first tier verdict not recorded: %s", results[0].Verdict)
	}
	if len(ran) != 2 {
		t.Fatalf("indeterminate must fall through to the next tier, ran=%v", ran)
	}
}

func TestCascadeAllIndeterminateIsPass(t *testing.T) {
	p := probe.NewWithChecks(
		fixedCheck(domain.TierFree, "first", domain.VerdictIndeterminate, nil),
		fixedCheck(domain.TierCheap, "second", domain.VerdictIndeterminate, nil),
	)

	_, verdict := p.Probe(context.Background(), domain.NewEmailCandidate("a@b.co"))

	// Prober unavailability is never conflated with address invalidity.
	if verdict != domain.VerdictPass {
		t.Fatalf("expected PASS, got %s", verdict)
	}
}

func TestPersonalProviderFailsWithoutDNS(t *testing.T) {
	resolver := &fakeResolver{}
	p := probe.New(domain.NewDenyLists(nil, nil), resolver, probe.Config{})

	results, verdict := p.Probe(context.Background(), domain.NewEmailCandidate("someone@gmail.com"))

	if verdict != domain.VerdictFail {
		t.Fatalf("expected FAIL for personal provider, got %s", verdict)
	}
	if len(results) != 1 || results[0].Tier != domain.TierFree {
		t.Fatalf("expected a single FREE tier result, got %+v", results)
	}
	if resolver.calls != 0 {
		t.Fatalf("DNS must not be consulted after a syntax-tier FAIL, calls=%d", resolver.calls)
	}
}

func TestDisposableDomainFails(t *testing.T) {
	p := probe.New(domain.NewDenyLists(nil, nil), &fakeResolver{}, probe.Config{})

	_, verdict := p.Probe(context.Background(), domain.NewEmailCandidate("x@mailinator.com"))
	if verdict != domain.VerdictFail {
		t.Fatalf("expected FAIL for disposable domain, got %s", verdict)
	}
}

func TestMXDomainNotFoundFails(t *testing.T) {
	resolver := &fakeResolver{
		err: &net.DNSError{Err: "no such host", Name: "ghost.example", IsNotFound: true},
	}
	p := probe.New(domain.NewDenyLists(nil, nil), resolver, probe.Config{
		MXTimeout: time.Second,
	})

	results, verdict := p.Probe(context.Background(), domain.NewEmailCandidate("ceo@ghost.example"))

	if verdict != domain.VerdictFail {
		t.Fatalf("expected FAIL for NXDOMAIN, got %s", verdict)
	}
	last := results[len(results)-1]
	if last.Tier != domain.TierFree {
		t.Fatalf("MX check is a FREE tier, got %s", last.Tier)
	}
}

func TestMXTransientErrorIsIndeterminate(t *testing.T) {
	resolver := &fakeResolver{
		err: &net.DNSError{Err: "i/o timeout", Name: "slow.example", IsTimeout: true, IsTemporary: true},
	}
	p := probe.New(domain.NewDenyLists(nil, nil), resolver, probe.Config{
		MXTimeout:   time.Second,
		SMTPTimeout: time.Second,
	})

	results, verdict := p.Probe(context.Background(), domain.NewEmailCandidate("ceo@slow.example"))

	if verdict != domain.VerdictPass {
		t.Fatalf("transient DNS failure must not reject the address, got %s", verdict)
	}
	var sawIndeterminateMX bool
	for _, r := range results {
		if r.Tier == domain.TierFree && r.Verdict == domain.VerdictIndeterminate {
			sawIndeterminateMX = true
		}
	}
	if !sawIndeterminateMX {
		t.Fatalf("expected an INDETERMINATE FREE tier result, got %+v", results)
	}
}

// Package probe implements the email deliverability cascade: an ordered
// list of tier checks, each returning PASS, FAIL, or INDETERMINATE. A
// definitive FAIL halts the cascade; INDETERMINATE falls through so that
// prober availability is never conflated with address invalidity.
package probe

import (
	"context"
	"net"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// Check is one tier of the cascade.
type Check struct {
	Tier    domain.Tier
	Name    string
	Cost    float64
	Timeout time.Duration
	Run     func(ctx context.Context, email domain.EmailCandidate) (domain.Verdict, string)
}

// Resolver is the DNS surface the MX check needs. *net.Resolver satisfies it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

type Config struct {
	MXTimeout   time.Duration
	SMTPTimeout time.Duration
	HeloDomain  string
	ProbeSender string
}

// Prober runs the deliverability cascade over a fixed tier order.
type Prober struct {
	checks []Check
}

// New wires the standard three-tier cascade: syntax/provider class, DNS MX
// existence, SMTP handshake. Deny-lists and the resolver are injected for
// testing and tenant policy.
func New(lists domain.DenyLists, resolver Resolver, cfg Config) *Prober {
	if cfg.MXTimeout == 0 {
		cfg.MXTimeout = 5 * time.Second
	}
	if cfg.SMTPTimeout == 0 {
		cfg.SMTPTimeout = 10 * time.Second
	}
	return &Prober{
		checks: []Check{
			syntaxCheck(lists),
			mxCheck(resolver, cfg.MXTimeout),
			smtpCheck(resolver, cfg),
		},
	}
}

// NewWithChecks builds a prober over an explicit check list. Used by tests
// to exercise cascade policy without real I/O.
func NewWithChecks(checks ...Check) *Prober {
	return &Prober{checks: checks}
}

// Probe runs tiers strictly in ascending cost order. It returns one result
// per attempted tier plus the final verdict: FAIL if any tier failed
// definitively, PASS otherwise (INDETERMINATE tiers fall through).
func (p *Prober) Probe(ctx context.Context, email domain.EmailCandidate) ([]domain.ProbeResult, domain.Verdict) {
	results := make([]domain.ProbeResult, 0, len(p.checks))

	for _, check := range p.checks {
		runCtx := ctx
		var cancel context.CancelFunc
		if check.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, check.Timeout)
		}

		start := time.Now()
		verdict, detail := check.Run(runCtx, email)
		elapsed := time.Since(start)
		if cancel != nil {
			cancel()
		}

		results = append(results, domain.ProbeResult{
			Tier:    check.Tier,
			Verdict: verdict,
			Cost:    check.Cost,
			Elapsed: elapsed,
			Detail:  detail,
		})

		if verdict == domain.VerdictFail {
			logger.DebugContext(ctx, "Probe tier failed definitively",
				"check", check.Name, "tier", string(check.Tier), "detail", detail)
			return results, domain.VerdictFail
		}
	}

	return results, domain.VerdictPass
}

package probe

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// mxCheck resolves mail-exchange records for the address's domain. A
// successful resolution with zero usable records is a definitive FAIL; a
// nonexistent domain likewise. Timeouts and other resolver trouble are
// INDETERMINATE so the cascade can fall through to the SMTP tier.
func mxCheck(resolver Resolver, timeout time.Duration) Check {
	return Check{
		Tier:    domain.TierFree,
		Name:    "mx",
		Cost:    domain.ProbeCostMX,
		Timeout: timeout,
		Run: func(ctx context.Context, email domain.EmailCandidate) (domain.Verdict, string) {
			records, err := resolver.LookupMX(ctx, email.Domain)
			if err != nil {
				var dnsErr *net.DNSError
				if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
					return domain.VerdictFail, "domain does not exist"
				}
				return domain.VerdictIndeterminate, "mx lookup error: " + err.Error()
			}
			if len(usableMX(records)) == 0 {
				return domain.VerdictFail, "no mail server for domain"
			}
			return domain.VerdictPass, ""
		},
	}
}

// usableMX filters out null-MX style records ("." hosts) which advertise
// that the domain accepts no mail.
func usableMX(records []*net.MX) []*net.MX {
	out := records[:0]
	for _, mx := range records {
		if mx.Host != "" && mx.Host != "." {
			out = append(out, mx)
		}
	}
	return out
}

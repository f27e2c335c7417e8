package probe

import (
	"context"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// syntaxCheck validates format and provider class. Deterministic, no I/O.
func syntaxCheck(lists domain.DenyLists) Check {
	return Check{
		Tier: domain.TierFree,
		Name: "syntax",
		Cost: domain.ProbeCostSyntax,
		Run: func(_ context.Context, email domain.EmailCandidate) (domain.Verdict, string) {
			if !email.IsWellFormed() {
				return domain.VerdictFail, "malformed address"
			}
			if lists.IsPersonalProvider(email.Domain) {
				return domain.VerdictFail, "personal mail provider"
			}
			if lists.IsDisposable(email.Domain) {
				return domain.VerdictFail, "disposable mail provider"
			}
			return domain.VerdictPass, ""
		},
	}
}

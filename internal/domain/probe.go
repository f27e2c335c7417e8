package domain

import "time"

// Tier is one step of a cost-ordered cascade.
type Tier string

const (
	TierFree      Tier = "FREE"
	TierCheap     Tier = "CHEAP"
	TierExpensive Tier = "EXPENSIVE"
)

// Verdict is the outcome of a single probe tier. A definitive FAIL halts the
// cascade; INDETERMINATE permits fallthrough to the next tier.
type Verdict string

const (
	VerdictPass          Verdict = "PASS"
	VerdictFail          Verdict = "FAIL"
	VerdictIndeterminate Verdict = "INDETERMINATE"
)

// ProbeResult records one attempted tier of the deliverability cascade.
// Produced once per tier, never mutated, appended to the cost ledger.
type ProbeResult struct {
	Tier    Tier
	Verdict Verdict
	Cost    float64
	Elapsed time.Duration
	Detail  string
}

// Unit costs per probe tier, in dollars. The FREE tiers are genuinely free;
// the SMTP handshake burns connection quota on our outbound IPs.
const (
	ProbeCostSyntax = 0.0
	ProbeCostMX     = 0.0
	ProbeCostSMTP   = 0.0001
	ProbeCostSend   = 0.001
)

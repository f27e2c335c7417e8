package domain

import "time"

// Operation names recorded in the cost ledger.
const (
	OpEmailValidation    = "email_validation"
	OpDomainVerification = "domain_verification"
)

// CostLogEntry is an append-only record of one probe or extraction attempt.
// Never mutated or deleted by the core.
type CostLogEntry struct {
	Operation string
	Tier      Tier
	Outcome   Verdict
	Cost      float64
	ElapsedMs int64
	Timestamp time.Time
}

// TierStats aggregates ledger entries for one tier of one operation.
type TierStats struct {
	Count int     `json:"count"`
	Cost  float64 `json:"cost"`
	Pass  int     `json:"pass"`
	Fail  int     `json:"fail"`
}

// CostStats is the analytics read model over the cost ledger.
type CostStats struct {
	Operation     string             `json:"operation"`
	TotalRequests int                `json:"total_requests"`
	TotalCost     float64            `json:"total_cost"`
	ByTier        map[Tier]TierStats `json:"by_tier"`
	AvgElapsedMs  float64            `json:"avg_elapsed_ms"`
}

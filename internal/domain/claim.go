package domain

import "time"

// ClaimStatus is the closed set of domain claim states.
type ClaimStatus string

const (
	ClaimNone     ClaimStatus = "none"
	ClaimPending  ClaimStatus = "pending"
	ClaimVerified ClaimStatus = "verified"
)

// DomainClaim is a lock-like record asserting ownership of a company's email
// domain by one signup. Invariant: at most one non-expired pending or one
// verified claim per domain, enforced by the claim ledger's transaction.
type DomainClaim struct {
	Domain           string
	Status           ClaimStatus
	PendingID        string
	PendingOwner     string
	PendingExpiresAt time.Time
	VerifiedOwner    string
	VerifiedAt       time.Time
	UpdatedAt        time.Time
}

// Expired reports whether a pending claim's hold has lapsed. An expired
// pending claim is treated as absent and may be overwritten.
func (c *DomainClaim) Expired(now time.Time) bool {
	return c.Status == ClaimPending && now.After(c.PendingExpiresAt)
}

// ConflictReason explains a rejected claim attempt.
type ConflictReason string

const (
	ConflictPending     ConflictReason = "PENDING"
	ConflictDomainTaken ConflictReason = "DOMAIN_TAKEN"
)

// ClaimOutcome is the result of a TryClaim transaction.
type ClaimOutcome struct {
	Acquired bool
	Reason   ConflictReason
}

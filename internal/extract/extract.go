// Package extract implements the company profile extraction cascade:
// ordered tiers of increasing cost, each accepted only if its result meets
// the tier's confidence floor. An extractor error and a low-confidence
// result are treated the same way: fall through to the next tier.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// ErrExhausted is returned when every tier failed or fell through.
var ErrExhausted = errors.New("all extraction tiers exhausted")

// Extractor is one tier of the cascade.
type Extractor interface {
	Tier() domain.Tier
	// Cost is the cumulative spend of running this tier once, in dollars.
	Cost() float64
	// Floor is the minimum confidence for acceptance. A negative floor
	// accepts unconditionally (last resort tier).
	Floor() float64
	Extract(ctx context.Context, dom string) (*domain.CompanyProfile, error)
}

// Attempt records one tier try, whether accepted or superseded.
type Attempt struct {
	Tier    domain.Tier
	Outcome domain.Verdict
	Cost    float64
	Elapsed time.Duration
	Err     string
}

// Cascade runs extractors strictly in ascending cost order.
type Cascade struct {
	extractors []Extractor
	timeout    time.Duration
}

func NewCascade(timeout time.Duration, extractors ...Extractor) *Cascade {
	return &Cascade{extractors: extractors, timeout: timeout}
}

// Extract returns the first tier result meeting its confidence floor, along
// with a record of every attempt. If all tiers fail it returns nil and
// ErrExhausted; the caller reports a terminal extraction failure and does
// not retry.
func (c *Cascade) Extract(ctx context.Context, dom string) (*domain.CompanyProfile, []Attempt, error) {
	attempts := make([]Attempt, 0, len(c.extractors))

	for _, ex := range c.extractors {
		runCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}

		start := time.Now()
		profile, err := ex.Extract(runCtx, dom)
		elapsed := time.Since(start)
		if cancel != nil {
			cancel()
		}

		attempt := Attempt{
			Tier:    ex.Tier(),
			Cost:    ex.Cost(),
			Elapsed: elapsed,
		}

		switch {
		case err != nil:
			attempt.Outcome = domain.VerdictFail
			attempt.Err = err.Error()
			logger.DebugContext(ctx, "Extraction tier errored",
				"tier", string(ex.Tier()), "domain", dom, "error", err)
		case profile == nil || (ex.Floor() >= 0 && profile.Confidence < ex.Floor()):
			attempt.Outcome = domain.VerdictFail
			attempt.Err = "confidence below floor"
		default:
			attempt.Outcome = domain.VerdictPass
			attempts = append(attempts, attempt)

			profile.Domain = dom
			profile.ExtractionMethod = ex.Tier()
			profile.ExtractionCost = ex.Cost()
			profile.ExtractionTime = elapsed
			profile.ExtractedAt = time.Now()
			return profile, attempts, nil
		}

		attempts = append(attempts, attempt)
	}

	return nil, attempts, ErrExhausted
}

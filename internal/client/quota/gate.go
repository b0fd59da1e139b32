package quota

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// Gate is the orchestration layer in front of quota-gated actions: Ensure
// raises a structured ExceededError before the action runs, Consume
// records the action afterwards and collapses the status cache window.
type Gate struct {
	provider Provider

	// counters is set for guest-backed providers, whose consumption is
	// tracked locally. Authenticated usage is recorded by the backend's
	// event log instead.
	counters *Counters
}

func NewGate(provider Provider, counters *Counters) *Gate {
	return &Gate{provider: provider, counters: counters}
}

func (g *Gate) Provider() Provider { return g.provider }

// Ensure returns nil when the action is allowed, an *ExceededError when
// quota denies it, or a plain error when the check itself failed (which
// also denies: fail closed).
func (g *Gate) Ensure(ctx context.Context, d Dimension, target *models.Record) error {
	ok, err := g.provider.CanPerform(ctx, d, target)
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if ok {
		return nil
	}
	return &ExceededError{Dimension: d, Reason: g.denyReason(ctx, d, target)}
}

// Consume records one unit of the dimension after the action succeeded
// and invalidates the provider cache so the next status read is fresh.
func (g *Gate) Consume(ctx context.Context, d Dimension) error {
	defer g.provider.Invalidate()

	if g.counters == nil {
		return nil
	}
	switch d {
	case DimensionAnalysis:
		_, err := g.counters.Analysis.Increment(ctx)
		return err
	case DimensionExploration:
		_, err := g.counters.Exploration.Increment(ctx)
		return err
	default:
		return nil
	}
}

func (g *Gate) denyReason(ctx context.Context, d Dimension, target *models.Record) string {
	st, err := g.provider.Status(ctx, target)
	if err != nil || st == nil {
		return reasonFor(models.TierGuest, d)
	}
	for _, r := range st.Reasons {
		if r == ReasonTierResolving {
			return r
		}
	}
	return reasonFor(st.Tier, d)
}

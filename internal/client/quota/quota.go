// Package quota computes per-tier usage quotas for the three gated
// dimensions: dream analysis (primary), dream exploration (secondary) and
// exploration messages per dream (per-item).
//
// Three provider variants share one interface: Guest (local anti-bypass
// counters), RemoteGuest (guest merged with the fingerprint-keyed remote
// endpoint) and Authenticated (remote event log with a record-derived
// fallback). The variant is selected once per session, not re-branched
// inside every call.
package quota

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// Dimension is one of the three independently limited action types.
type Dimension string

const (
	DimensionAnalysis    Dimension = "analysis"
	DimensionExploration Dimension = "exploration"
	DimensionMessage     Dimension = "message"
)

// Provider is the common quota contract. The target record is only
// consulted for the per-message dimension. Callers invoke Invalidate
// immediately after any quota-consuming action so the next Status read is
// fresh.
type Provider interface {
	UsedCount(ctx context.Context, d Dimension, target *models.Record) (int, error)
	// CanPerform re-validates against the authoritative count path; it
	// never trusts a cached status alone, because quota is a gate, not a
	// display optimization.
	CanPerform(ctx context.Context, d Dimension, target *models.Record) (bool, error)
	Status(ctx context.Context, target *models.Record) (*models.QuotaStatus, error)
	Invalidate()
}

// Limits is the static per-tier limit table. Nil means unlimited.
type Limits struct {
	Analyses     *int
	Explorations *int
	Messages     *int
}

func limit(n int) *int { return &n }

// LimitsFor returns the limit table for a tier. Unknown tiers get guest
// limits: fail closed.
func LimitsFor(tier models.Tier) Limits {
	switch tier {
	case models.TierPremium:
		return Limits{}
	case models.TierFree:
		return Limits{Analyses: limit(10), Explorations: limit(5), Messages: limit(20)}
	default:
		return Limits{Analyses: limit(2), Explorations: limit(1), Messages: limit(5)}
	}
}

// For returns the limit for one dimension.
func (l Limits) For(d Dimension) *int {
	switch d {
	case DimensionAnalysis:
		return l.Analyses
	case DimensionExploration:
		return l.Explorations
	case DimensionMessage:
		return l.Messages
	default:
		return limit(0)
	}
}

// Machine-readable reason codes carried by ExceededError and QuotaStatus.
const (
	ReasonGuestLimitReached = "guest_limit_reached"
	ReasonFreeLimitReached  = "free_limit_reached"
	ReasonMessageLimit      = "message_limit_reached"
	ReasonTierResolving     = "tier_resolving"
)

// ExceededError is raised before a quota-gated action when the quota does
// not allow it. Reason is a machine-readable code for UI translation.
type ExceededError struct {
	Dimension Dimension
	Reason    string
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %s", e.Dimension, e.Reason)
}

func reasonFor(tier models.Tier, d Dimension) string {
	if d == DimensionMessage {
		return ReasonMessageLimit
	}
	switch tier {
	case models.TierFree:
		return ReasonFreeLimitReached
	default:
		return ReasonGuestLimitReached
	}
}

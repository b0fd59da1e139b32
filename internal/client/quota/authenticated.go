package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/session"
	"github.com/dmitrijs2005/dreamkeeper/internal/logging"
)

// RecordSource supplies the current in-memory record set. The
// reconciliation engine satisfies this.
type RecordSource interface {
	Records() []*models.Record
}

// AuthenticatedProvider computes usage for logged-in accounts. The
// preferred source is the backend's usage-event log scoped to the current
// billing period; as a defensive fallback it also derives counts from
// record timestamps and trusts the higher value. An empty event log (for
// example after a backend misconfiguration) therefore cannot under-report
// usage, and deleting records cannot lower the event-log count.
//
// Tier is always read live from the billing source. A cached tier label
// can lag a just-completed upgrade or downgrade, so it is never consulted.
type AuthenticatedProvider struct {
	gw      gateway.Gateway
	billing session.BillingSource
	records RecordSource
	logger  logging.Logger
	cache   *statusCache[*models.QuotaStatus]
	now     func() time.Time
}

func NewAuthenticatedProvider(gw gateway.Gateway, billing session.BillingSource, records RecordSource, logger logging.Logger) *AuthenticatedProvider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthenticatedProvider{
		gw:      gw,
		billing: billing,
		records: records,
		logger:  logger,
		cache:   newStatusCache[*models.QuotaStatus](statusCacheTTL),
		now:     time.Now,
	}
}

func (p *AuthenticatedProvider) UsedCount(ctx context.Context, d Dimension, target *models.Record) (int, error) {
	from, to := p.currentPeriod()
	switch d {
	case DimensionAnalysis:
		return p.maxOfSources(ctx, gateway.EventAnalysis, from, to, func(r *models.Record) *int64 {
			return r.AnalyzedAt
		}), nil
	case DimensionExploration:
		return p.maxOfSources(ctx, gateway.EventExploration, from, to, func(r *models.Record) *int64 {
			return r.ExplorationStartedAt
		}), nil
	case DimensionMessage:
		if target == nil {
			return 0, nil
		}
		return target.UserMessageCount(), nil
	default:
		return 0, fmt.Errorf("unknown quota dimension %q", d)
	}
}

func (p *AuthenticatedProvider) CanPerform(ctx context.Context, d Dimension, target *models.Record) (bool, error) {
	limits, gated, err := p.resolveLimits(ctx)
	if err != nil {
		return false, err
	}
	if gated {
		// Entitlement still resolving for a free account: fail closed.
		return false, nil
	}
	lim := limits.For(d)
	if lim == nil {
		return true, nil
	}
	used, err := p.UsedCount(ctx, d, target)
	if err != nil {
		return false, err
	}
	return used < *lim, nil
}

func (p *AuthenticatedProvider) Status(ctx context.Context, target *models.Record) (*models.QuotaStatus, error) {
	return p.cache.get(statusKey(target), func() (*models.QuotaStatus, error) {
		return p.buildStatus(ctx, target)
	})
}

func (p *AuthenticatedProvider) Invalidate() {
	p.cache.invalidate()
}

func (p *AuthenticatedProvider) buildStatus(ctx context.Context, target *models.Record) (*models.QuotaStatus, error) {
	billing, err := p.billing.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve billing status: %w", err)
	}

	analyses, err := p.UsedCount(ctx, DimensionAnalysis, nil)
	if err != nil {
		return nil, err
	}
	explorations, err := p.UsedCount(ctx, DimensionExploration, nil)
	if err != nil {
		return nil, err
	}
	messages := 0
	if target != nil {
		messages = target.UserMessageCount()
	}

	limits, gated := applyBillingGate(billing)
	st := buildStatus(billing.Tier, limits, analyses, explorations, messages)
	if gated {
		st.CanAnalyze = false
		st.CanExplore = false
		st.Reasons = append(st.Reasons, ReasonTierResolving)
	}
	return st, nil
}

func (p *AuthenticatedProvider) resolveLimits(ctx context.Context) (Limits, bool, error) {
	billing, err := p.billing.Status(ctx)
	if err != nil {
		return Limits{}, false, fmt.Errorf("failed to resolve billing status: %w", err)
	}
	limits, gated := applyBillingGate(billing)
	return limits, gated, nil
}

// applyBillingGate implements the asymmetric optimism rule: while the
// billing status is still loading, a known paid tier is trusted (the gate
// only relaxes in the user's favor), but a free tier blocks gated actions
// until resolution completes.
func applyBillingGate(billing models.BillingStatus) (Limits, bool) {
	if billing.Loading {
		if billing.Tier != models.TierFree && billing.Tier != "" && billing.Tier != models.TierGuest {
			return LimitsFor(models.TierPremium), false
		}
		return LimitsFor(models.TierFree), true
	}
	return LimitsFor(billing.Tier), false
}

// maxOfSources reads the event log and the record-derived count for the
// period and trusts the higher value.
func (p *AuthenticatedProvider) maxOfSources(ctx context.Context, event gateway.EventType, from, to int64, stamp func(*models.Record) *int64) int {
	derived := 0
	for _, r := range p.records.Records() {
		if at := stamp(r); at != nil && *at >= from && *at < to {
			derived++
		}
	}

	logged, err := p.gw.CountEvents(ctx, event, from, to)
	if err != nil {
		p.logger.Warn(ctx, "event count unavailable, using record-derived usage", "event", event, "error", err)
		return derived
	}
	if logged > derived {
		return logged
	}
	return derived
}

// currentPeriod returns the UTC calendar month as [from, to) unix millis.
func (p *AuthenticatedProvider) currentPeriod() (int64, int64) {
	now := p.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start.UnixMilli(), start.AddDate(0, 1, 0).UnixMilli()
}

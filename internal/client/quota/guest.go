package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// statusCacheTTL throttles repeated status reads between invalidations.
const statusCacheTTL = 20 * time.Second

// GuestProvider serves unauthenticated sessions from the local anti-bypass
// counters. Counting current records would let a user reset their quota by
// deleting them; the counters cannot decrease. The per-message dimension
// is counted from the target record directly, since deleting the parent
// record also forfeits its conversation.
type GuestProvider struct {
	counters *Counters
	limits   Limits
	cache    *statusCache[*models.QuotaStatus]
}

func NewGuestProvider(counters *Counters) *GuestProvider {
	return &GuestProvider{
		counters: counters,
		limits:   LimitsFor(models.TierGuest),
		cache:    newStatusCache[*models.QuotaStatus](statusCacheTTL),
	}
}

func (p *GuestProvider) UsedCount(ctx context.Context, d Dimension, target *models.Record) (int, error) {
	switch d {
	case DimensionAnalysis:
		return p.counters.Analysis.Get(ctx), nil
	case DimensionExploration:
		return p.counters.Exploration.Get(ctx), nil
	case DimensionMessage:
		if target == nil {
			return 0, nil
		}
		return target.UserMessageCount(), nil
	default:
		return 0, fmt.Errorf("unknown quota dimension %q", d)
	}
}

func (p *GuestProvider) CanPerform(ctx context.Context, d Dimension, target *models.Record) (bool, error) {
	lim := p.limits.For(d)
	if lim == nil {
		return true, nil
	}
	used, err := p.UsedCount(ctx, d, target)
	if err != nil {
		// Fail closed: an unknown usage count never grants the action.
		return false, err
	}
	return used < *lim, nil
}

func (p *GuestProvider) Status(ctx context.Context, target *models.Record) (*models.QuotaStatus, error) {
	key := statusKey(target)
	return p.cache.get(key, func() (*models.QuotaStatus, error) {
		return p.buildStatus(ctx, target)
	})
}

func (p *GuestProvider) Invalidate() {
	p.cache.invalidate()
}

func (p *GuestProvider) buildStatus(ctx context.Context, target *models.Record) (*models.QuotaStatus, error) {
	analyses := p.counters.Analysis.Get(ctx)
	explorations := p.counters.Exploration.Get(ctx)
	messages := 0
	if target != nil {
		messages = target.UserMessageCount()
	}
	return buildStatus(models.TierGuest, p.limits, analyses, explorations, messages), nil
}

// buildStatus assembles a QuotaStatus from raw counts and a limit table.
func buildStatus(tier models.Tier, limits Limits, analyses, explorations, messages int) *models.QuotaStatus {
	st := &models.QuotaStatus{
		Tier:         tier,
		Analyses:     models.NewQuotaUsage(analyses, limits.Analyses),
		Explorations: models.NewQuotaUsage(explorations, limits.Explorations),
		Messages:     models.NewQuotaUsage(messages, limits.Messages),
	}
	st.CanAnalyze = limits.Analyses == nil || analyses < *limits.Analyses
	st.CanExplore = limits.Explorations == nil || explorations < *limits.Explorations
	if !st.CanAnalyze {
		st.Reasons = append(st.Reasons, reasonFor(tier, DimensionAnalysis))
	}
	if !st.CanExplore {
		st.Reasons = append(st.Reasons, reasonFor(tier, DimensionExploration))
	}
	return st
}

func statusKey(target *models.Record) string {
	if target == nil {
		return "status"
	}
	return fmt.Sprintf("status:%d", target.Id)
}

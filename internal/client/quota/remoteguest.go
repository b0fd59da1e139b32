package quota

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/dmitrijs2005/dreamkeeper/internal/logging"
)

// RemoteGuestProvider decorates a GuestProvider with the remote
// quota-status endpoint, keyed by device fingerprint. Remote and local
// counts are merged by max per dimension, and the merged value is written
// back into the local counters so local-only reads stay in sync.
//
// A 401/403/404 from the endpoint means it does not exist for this client;
// the provider then latches into local-only mode for its remaining
// lifetime instead of hammering a dead endpoint. Timeouts and 5xx are
// transient and retried on the next call.
type RemoteGuestProvider struct {
	guest       *GuestProvider
	gw          gateway.Gateway
	fingerprint *Fingerprint
	logger      logging.Logger

	cache *statusCache[*models.QuotaStatus]

	// remoteGone is the permanent local-only latch.
	remoteGone bool
}

func NewRemoteGuestProvider(guest *GuestProvider, gw gateway.Gateway, fingerprint *Fingerprint, logger logging.Logger) *RemoteGuestProvider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RemoteGuestProvider{
		guest:       guest,
		gw:          gw,
		fingerprint: fingerprint,
		logger:      logger,
		cache:       newStatusCache[*models.QuotaStatus](statusCacheTTL),
	}
}

func (p *RemoteGuestProvider) UsedCount(ctx context.Context, d Dimension, target *models.Record) (int, error) {
	if d == DimensionMessage {
		return p.guest.UsedCount(ctx, d, target)
	}
	// mergeRemote has already folded any remote counts into the local
	// counters, so the counter value is the merged one.
	p.mergeRemote(ctx, target)
	return p.guest.UsedCount(ctx, d, target)
}

func (p *RemoteGuestProvider) CanPerform(ctx context.Context, d Dimension, target *models.Record) (bool, error) {
	p.mergeRemote(ctx, target)
	return p.guest.CanPerform(ctx, d, target)
}

func (p *RemoteGuestProvider) Status(ctx context.Context, target *models.Record) (*models.QuotaStatus, error) {
	return p.cache.get(statusKey(target), func() (*models.QuotaStatus, error) {
		p.mergeRemote(ctx, target)
		return p.guest.buildStatus(ctx, target)
	})
}

func (p *RemoteGuestProvider) Invalidate() {
	p.cache.invalidate()
	p.guest.Invalidate()
}

// mergeRemote fetches the remote guest quota and folds it into the local
// counters. All failures degrade to local-only behavior; only rejections
// latch permanently.
func (p *RemoteGuestProvider) mergeRemote(ctx context.Context, target *models.Record) {
	if p.remoteGone {
		return
	}

	fp, err := p.fingerprint.Get(ctx)
	if err != nil {
		p.logger.Warn(ctx, "no device fingerprint, skipping remote quota", "error", err)
		return
	}

	var targetID int64
	if target != nil {
		targetID = target.Id
	}

	remote, err := p.gw.QuotaStatus(ctx, fp, targetID)
	if err != nil {
		if errors.Is(err, common.ErrRemoteRejected) {
			p.logger.Info(ctx, "guest quota endpoint unavailable for this client, using local counters from now on")
			p.remoteGone = true
			return
		}
		p.logger.Warn(ctx, "guest quota endpoint unreachable, using local counters", "error", err)
		return
	}

	if _, err := p.guest.counters.Analysis.SyncWithServer(ctx, remote.Analyses.Used); err != nil {
		p.logger.Warn(ctx, "failed to merge remote analysis count", "error", err)
	}
	if _, err := p.guest.counters.Exploration.SyncWithServer(ctx, remote.Explorations.Used); err != nil {
		p.logger.Warn(ctx, "failed to merge remote exploration count", "error", err)
	}
}

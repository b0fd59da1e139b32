package quota

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/metadata"
)

// Metadata keys owned by this package.
const (
	counterKeyAnalysis    = "usage_counter_analysis"
	counterKeyExploration = "usage_counter_exploration"
	guestSeededKey        = "guest_quota_migrated"
	fingerprintKey        = "device_fingerprint"
)

// Counter is a monotonic persistent usage counter. It is incremented when
// an action is consumed and never decremented, so deleting records cannot
// reset guest quota. Server counts are merged in with max.
type Counter struct {
	meta metadata.Repository
	key  string
}

func NewCounter(meta metadata.Repository, key string) *Counter {
	return &Counter{meta: meta, key: key}
}

// Get returns the persisted count. Anything missing or unparsable counts
// as 0; Get never fails.
func (c *Counter) Get(ctx context.Context) int {
	raw, ok, err := c.meta.Get(ctx, c.key)
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Increment bumps the counter by one and returns the new value.
func (c *Counter) Increment(ctx context.Context) (int, error) {
	n := c.Get(ctx) + 1
	if err := c.meta.Set(ctx, c.key, strconv.Itoa(n)); err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", c.key, err)
	}
	return n, nil
}

// SyncWithServer merges a server-reported count, keeping the maximum so
// usage never appears to decrease.
func (c *Counter) SyncWithServer(ctx context.Context, serverCount int) (int, error) {
	n := c.Get(ctx)
	if serverCount > n {
		n = serverCount
	}
	if err := c.meta.Set(ctx, c.key, strconv.Itoa(n)); err != nil {
		return 0, fmt.Errorf("failed to sync counter %s: %w", c.key, err)
	}
	return n, nil
}

// Counters bundles the two anti-bypass counters.
type Counters struct {
	Analysis    *Counter
	Exploration *Counter
	meta        metadata.Repository
}

func NewCounters(meta metadata.Repository) *Counters {
	return &Counters{
		Analysis:    NewCounter(meta, counterKeyAnalysis),
		Exploration: NewCounter(meta, counterKeyExploration),
		meta:        meta,
	}
}

// EnsureSeeded initializes the counters from record-derived counts, once.
// Installations that predate the counters would otherwise start at zero
// and grant their existing usage back as free quota.
func (c *Counters) EnsureSeeded(ctx context.Context, recs []*models.Record) error {
	if _, done, err := c.meta.Get(ctx, guestSeededKey); err != nil {
		return err
	} else if done {
		return nil
	}

	analyzed, explored := 0, 0
	for _, r := range recs {
		if r.IsAnalyzed() {
			analyzed++
		}
		if r.IsExplored() {
			explored++
		}
	}
	if _, err := c.Analysis.SyncWithServer(ctx, analyzed); err != nil {
		return err
	}
	if _, err := c.Exploration.SyncWithServer(ctx, explored); err != nil {
		return err
	}
	return c.meta.Set(ctx, guestSeededKey, "1")
}

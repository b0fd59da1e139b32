package quota

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/metadata"
	"github.com/google/uuid"
)

// Fingerprint identifies this installation to the guest quota endpoint,
// which has no account id to key on. Generated once, then persisted.
type Fingerprint struct {
	meta metadata.Repository
}

func NewFingerprint(meta metadata.Repository) *Fingerprint {
	return &Fingerprint{meta: meta}
}

func (f *Fingerprint) Get(ctx context.Context) (string, error) {
	v, ok, err := f.meta.Get(ctx, fingerprintKey)
	if err != nil {
		return "", fmt.Errorf("failed to read device fingerprint: %w", err)
	}
	if ok && v != "" {
		return v, nil
	}
	v = uuid.NewString()
	if err := f.meta.Set(ctx, fingerprintKey, v); err != nil {
		return "", fmt.Errorf("failed to persist device fingerprint: %w", err)
	}
	return v, nil
}

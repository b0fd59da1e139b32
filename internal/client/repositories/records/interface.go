package records

import (
	"context"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// Repository persists a full record set. The same implementation backs the
// user's local records and the cached remote snapshot, bound to different
// tables. Ordering is not guaranteed here; callers sort by id.
type Repository interface {
	GetAll(ctx context.Context) ([]*models.Record, error)
	// ReplaceAll atomically swaps the stored set for the given one.
	ReplaceAll(ctx context.Context, recs []*models.Record) error
}

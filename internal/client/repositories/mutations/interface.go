package mutations

import (
	"context"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// Repository is the durable pending-mutation queue. GetAll returns
// mutations in enqueue order; replay and flushing depend on that order.
type Repository interface {
	GetAll(ctx context.Context) ([]*models.Mutation, error)
	Append(ctx context.Context, m *models.Mutation) error
	// ReplaceAll atomically swaps the queue content, preserving the order
	// of the given slice.
	ReplaceAll(ctx context.Context, ms []*models.Mutation) error
	DeleteByID(ctx context.Context, id string) error
}

// Package store exposes the client persistence surface used by the
// reconciliation engine: the local record set, the cached remote snapshot
// and the pending-mutation queue.
//
// Local data is best-effort: a failed read degrades to an empty result and
// is only logged, never surfaced. Write failures are returned but callers
// treat them as non-fatal.
package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/mutations"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/dmitrijs2005/dreamkeeper/internal/logging"
)

type Store interface {
	Load(ctx context.Context) []*models.Record
	Save(ctx context.Context, recs []*models.Record) error

	LoadCachedRemote(ctx context.Context) []*models.Record
	SaveCachedRemote(ctx context.Context, recs []*models.Record) error

	LoadPendingMutations(ctx context.Context) []*models.Mutation
	SavePendingMutations(ctx context.Context, ms []*models.Mutation) error
}

type SQLiteStore struct {
	local  records.Repository
	cache  records.Repository
	queue  mutations.Repository
	logger logging.Logger
}

func NewSQLiteStore(local, cache records.Repository, queue mutations.Repository, logger logging.Logger) *SQLiteStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SQLiteStore{local: local, cache: cache, queue: queue, logger: logger}
}

func (s *SQLiteStore) Load(ctx context.Context) []*models.Record {
	recs, err := s.local.GetAll(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to load local records, treating as empty", "error", err)
		return nil
	}
	return recs
}

func (s *SQLiteStore) Save(ctx context.Context, recs []*models.Record) error {
	if err := s.local.ReplaceAll(ctx, recs); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) LoadCachedRemote(ctx context.Context) []*models.Record {
	recs, err := s.cache.GetAll(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to load cached remote snapshot, treating as empty", "error", err)
		return nil
	}
	return recs
}

func (s *SQLiteStore) SaveCachedRemote(ctx context.Context, recs []*models.Record) error {
	if err := s.cache.ReplaceAll(ctx, recs); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) LoadPendingMutations(ctx context.Context) []*models.Mutation {
	ms, err := s.queue.GetAll(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to load pending mutations, treating as empty", "error", err)
		return nil
	}
	return ms
}

func (s *SQLiteStore) SavePendingMutations(ctx context.Context, ms []*models.Mutation) error {
	if err := s.queue.ReplaceAll(ctx, ms); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return nil
}

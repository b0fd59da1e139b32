// Package services contains the client-side application services: the
// record reconciliation engine and the narrow contracts for external
// collaborators (analysis, billing).
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/session"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/store"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/dmitrijs2005/dreamkeeper/internal/logging"
	"github.com/google/uuid"
)

// State is the engine's load lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
)

const migratedKeyPrefix = "dreams_migrated:"

// LoadResult reports the outcome of a Load.
type LoadResult struct {
	Records []*models.Record

	// Offline is set when the remote list failed and the cached snapshot
	// was used instead (always false in guest mode, which never goes out).
	Offline bool

	// Rejected lists queued mutations the backend refused (401/403/404).
	// They have been dropped from the queue and will never be retried;
	// the caller should inform the user.
	Rejected []*models.Mutation
}

// RecordService is the reconciliation engine: it merges the remote
// snapshot, the cached remote snapshot and the pending-mutation queue into
// one in-memory record set, and applies local mutations optimistically
// with a best-effort remote side effect.
//
// Methods are not safe for concurrent use; the caller serializes access
// (the REPL naturally does).
type RecordService struct {
	store  store.Store
	meta   metadata.Repository
	gw     gateway.Gateway
	sess   *session.Session
	logger logging.Logger

	// remoteTimeout bounds each remote call made during a mutation.
	remoteTimeout time.Duration
	now           func() time.Time

	state   State
	records map[int64]*models.Record
	lastID  int64
}

func NewRecordService(st store.Store, meta metadata.Repository, gw gateway.Gateway, sess *session.Session, logger logging.Logger) *RecordService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RecordService{
		store:         st,
		meta:          meta,
		gw:            gw,
		sess:          sess,
		logger:        logger,
		remoteTimeout: 10 * time.Second,
		now:           time.Now,
		state:         StateIdle,
		records:       make(map[int64]*models.Record),
	}
}

func (s *RecordService) State() State { return s.state }

// Records returns the in-memory set sorted by id (creation order).
func (s *RecordService) Records() []*models.Record {
	out := make([]*models.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// Get returns the record with the given id, or nil.
func (s *RecordService) Get(id int64) *models.Record {
	return s.records[id]
}

// Load (re)builds the in-memory record set. In guest mode it reads the
// local store only. In authenticated mode it runs the one-time guest
// migration, lists the backend (falling back to the cached snapshot),
// flushes the pending-mutation queue and replays whatever remains on top.
func (s *RecordService) Load(ctx context.Context) (*LoadResult, error) {
	s.state = StateLoading

	if !s.sess.Authenticated() {
		s.setRecords(s.store.Load(ctx))
		s.state = StateLoaded
		return &LoadResult{Records: s.Records()}, nil
	}

	if err := s.migrateGuestRecords(ctx); err != nil {
		s.logger.Warn(ctx, "guest record migration postponed", "error", err)
	}

	res := &LoadResult{}

	base, err := s.gw.List(ctx)
	if err != nil {
		s.logger.Warn(ctx, "remote list failed, using cached snapshot", "error", err)
		base = s.store.LoadCachedRemote(ctx)
		res.Offline = true
	} else {
		if err := s.store.SaveCachedRemote(ctx, base); err != nil {
			s.logger.Warn(ctx, "failed to persist remote snapshot", "error", err)
		}
	}

	queue := s.store.LoadPendingMutations(ctx)

	if !res.Offline {
		var applied int
		base, queue, res.Rejected, applied = s.flushQueue(ctx, queue, base)
		if err := s.store.SavePendingMutations(ctx, queue); err != nil {
			s.logger.Warn(ctx, "failed to persist mutation queue", "error", err)
		}
		if applied > 0 || len(res.Rejected) > 0 {
			s.logger.Info(ctx, "flushed mutation queue", "applied", applied, "rejected", len(res.Rejected), "remaining", len(queue))
		}
	}

	s.setRecords(replay(base, queue))
	s.state = StateLoaded
	res.Records = s.Records()
	return res, nil
}

// Create inserts a new record. The id is assigned here: the creation time
// in unix millis, bumped if needed to stay strictly increasing.
func (s *RecordService) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	rec = rec.Clone()
	rec.Id = s.nextID()
	if rec.AnalysisStatus == "" {
		rec.AnalysisStatus = models.AnalysisStatusNone
	}
	s.records[rec.Id] = rec

	if !s.sess.Authenticated() {
		s.persistGuest(ctx)
		return rec, nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	remoteID, err := s.gw.Create(rctx, rec)
	switch {
	case err == nil:
		rec.RemoteId = remoteID
		rec.PendingSync = false
		s.updateRemoteCache(ctx)
		return rec, nil
	case errors.Is(err, common.ErrRemoteRejected):
		// The backend will never accept this record; keep it locally but
		// do not queue it, and tell the caller.
		return rec, fmt.Errorf("record kept locally only: %w", err)
	default:
		rec.PendingSync = true
		s.enqueue(ctx, &models.Mutation{
			Id:        uuid.NewString(),
			Kind:      models.MutationCreate,
			CreatedAt: s.now().UnixMilli(),
			Record:    rec.Clone(),
		})
		return rec, nil
	}
}

// Update replaces the record with rec.Id. The in-memory apply is
// unconditional; the remote apply is attempted exactly once and queued on
// transient failure.
func (s *RecordService) Update(ctx context.Context, rec *models.Record) error {
	current, ok := s.records[rec.Id]
	if !ok {
		return common.ErrNotFound
	}
	rec = rec.Clone()
	if rec.RemoteId == "" {
		rec.RemoteId = current.RemoteId
	}
	s.records[rec.Id] = rec

	if !s.sess.Authenticated() {
		s.persistGuest(ctx)
		return nil
	}

	if rec.RemoteId == "" {
		// The create has not been acknowledged yet; fold this edit into
		// the queue so replay order keeps the latest state.
		rec.PendingSync = true
		s.enqueue(ctx, &models.Mutation{
			Id:        uuid.NewString(),
			Kind:      models.MutationUpdate,
			CreatedAt: s.now().UnixMilli(),
			Record:    rec.Clone(),
		})
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	err := s.gw.Update(rctx, rec)
	switch {
	case err == nil:
		rec.PendingSync = false
		s.updateRemoteCache(ctx)
		return nil
	case errors.Is(err, common.ErrRemoteRejected):
		return fmt.Errorf("update kept locally only: %w", err)
	default:
		rec.PendingSync = true
		s.enqueue(ctx, &models.Mutation{
			Id:        uuid.NewString(),
			Kind:      models.MutationUpdate,
			CreatedAt: s.now().UnixMilli(),
			Record:    rec.Clone(),
		})
		return nil
	}
}

// Delete removes the record locally and best-effort remotely. Deleting a
// record whose create is still queued just drops the queued mutations; no
// remote call is needed.
func (s *RecordService) Delete(ctx context.Context, id int64) error {
	rec, ok := s.records[id]
	if !ok {
		return common.ErrNotFound
	}
	delete(s.records, id)

	if !s.sess.Authenticated() {
		s.persistGuest(ctx)
		return nil
	}

	// Drop queued create/update mutations for this record; they are now
	// pointless.
	queue := s.store.LoadPendingMutations(ctx)
	kept := queue[:0]
	hadPendingCreate := false
	for _, m := range queue {
		if m.TargetId() == id && (m.Kind == models.MutationCreate || m.Kind == models.MutationUpdate) {
			if m.Kind == models.MutationCreate {
				hadPendingCreate = true
			}
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) != len(queue) {
		if err := s.store.SavePendingMutations(ctx, kept); err != nil {
			s.logger.Warn(ctx, "failed to persist mutation queue", "error", err)
		}
	}

	if rec.RemoteId == "" {
		if hadPendingCreate {
			return nil
		}
		// Never reached the backend and nothing queued: local-only record.
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	err := s.gw.Delete(rctx, rec.RemoteId)
	switch {
	case err == nil:
		s.updateRemoteCache(ctx)
		return nil
	case errors.Is(err, common.ErrRemoteRejected):
		return fmt.Errorf("delete kept locally only: %w", err)
	default:
		s.enqueue(ctx, &models.Mutation{
			Id:        uuid.NewString(),
			Kind:      models.MutationDelete,
			CreatedAt: s.now().UnixMilli(),
			RecordId:  id,
			RemoteId:  rec.RemoteId,
		})
		return nil
	}
}

// migrateGuestRecords pushes records created before the first login to the
// backend, once. Records that already carry a remote id are skipped, which
// keeps the migration idempotent across restarts.
func (s *RecordService) migrateGuestRecords(ctx context.Context) error {
	key := migratedKeyPrefix + s.sess.AccountID()
	if _, done, err := s.meta.Get(ctx, key); err != nil {
		return err
	} else if done {
		return nil
	}

	local := s.store.Load(ctx)
	var remaining []*models.Record
	migrated := 0

	for _, rec := range local {
		if rec.RemoteId != "" {
			continue
		}
		remoteID, err := s.gw.Create(ctx, rec)
		if err != nil {
			if errors.Is(err, common.ErrRemoteRejected) {
				s.logger.Warn(ctx, "backend rejected guest record during migration, keeping it local", "record", rec.Id, "error", err)
				remaining = append(remaining, rec)
				continue
			}
			// Transient: keep everything not yet pushed and retry on the
			// next load. Already-pushed records got their remote id
			// persisted below, so they will be skipped then.
			remaining = append(remaining, rec)
			if err := s.store.Save(ctx, remaining); err != nil {
				s.logger.Warn(ctx, "failed to persist partial migration", "error", err)
			}
			return err
		}
		rec.RemoteId = remoteID
		migrated++
	}

	if err := s.store.Save(ctx, remaining); err != nil {
		s.logger.Warn(ctx, "failed to clear local store after migration", "error", err)
	}
	if err := s.meta.Set(ctx, key, "1"); err != nil {
		return err
	}
	s.logger.Info(ctx, "migrated guest records", "count", migrated, "kept_local", len(remaining))
	return nil
}

// flushQueue applies pending mutations against the backend in order. It
// stops at the first transient failure (the rest stays queued), drops
// rejected mutations and mirrors successful ones into base.
func (s *RecordService) flushQueue(ctx context.Context, queue []*models.Mutation, base []*models.Record) (newBase []*models.Record, remaining []*models.Mutation, rejected []*models.Mutation, applied int) {
	for i, m := range queue {
		err := s.applyRemote(ctx, m, base)
		if err == nil {
			base = applyMutation(base, m, false)
			applied++
			continue
		}
		if errors.Is(err, common.ErrRemoteRejected) {
			s.logger.Warn(ctx, "backend rejected queued mutation, dropping it", "mutation", m.Id, "kind", m.Kind, "error", err)
			rejected = append(rejected, m)
			continue
		}
		// Transient: keep this mutation and everything after it.
		remaining = append(remaining, queue[i:]...)
		return base, remaining, rejected, applied
	}
	return base, nil, rejected, applied
}

func (s *RecordService) applyRemote(ctx context.Context, m *models.Mutation, base []*models.Record) error {
	switch m.Kind {
	case models.MutationCreate:
		remoteID, err := s.gw.Create(ctx, m.Record)
		if err != nil {
			return err
		}
		m.Record.RemoteId = remoteID
		m.Record.PendingSync = false
		return nil
	case models.MutationUpdate:
		rec := m.Record
		if rec.RemoteId == "" {
			// The original create may have been flushed earlier or by a
			// previous session; recover the remote id from the base set.
			for _, b := range base {
				if b.Id == rec.Id && b.RemoteId != "" {
					rec.RemoteId = b.RemoteId
					break
				}
			}
		}
		if rec.RemoteId == "" {
			// No remote counterpart: the record only exists locally, so
			// the update becomes a create.
			remoteID, err := s.gw.Create(ctx, rec)
			if err != nil {
				return err
			}
			rec.RemoteId = remoteID
			rec.PendingSync = false
			return nil
		}
		if err := s.gw.Update(ctx, rec); err != nil {
			return err
		}
		rec.PendingSync = false
		return nil
	case models.MutationDelete:
		if m.RemoteId == "" {
			return nil
		}
		return s.gw.Delete(ctx, m.RemoteId)
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}

// replay applies pending mutations on top of a base snapshot in queue
// order: create inserts (or replaces on id collision, which makes replay
// idempotent), update replaces, delete removes.
func replay(base []*models.Record, queue []*models.Mutation) []*models.Record {
	out := base
	for _, m := range queue {
		out = applyMutation(out, m, true)
	}
	return out
}

func applyMutation(recs []*models.Record, m *models.Mutation, markPending bool) []*models.Record {
	switch m.Kind {
	case models.MutationCreate, models.MutationUpdate:
		rec := m.Record.Clone()
		if markPending {
			rec.PendingSync = true
		}
		for i, r := range recs {
			if r.Id == rec.Id {
				recs[i] = rec
				return recs
			}
		}
		if m.Kind == models.MutationCreate {
			recs = append(recs, rec)
		}
		return recs
	case models.MutationDelete:
		for i, r := range recs {
			if r.Id == m.RecordId {
				return append(recs[:i], recs[i+1:]...)
			}
		}
		return recs
	default:
		return recs
	}
}

func (s *RecordService) setRecords(recs []*models.Record) {
	s.records = make(map[int64]*models.Record, len(recs))
	for _, r := range recs {
		s.records[r.Id] = r
		if r.Id > s.lastID {
			s.lastID = r.Id
		}
	}
}

// nextID returns a strictly increasing unix-millisecond id.
func (s *RecordService) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// persistGuest writes the whole in-memory set to the local store. Failures
// are logged and swallowed: local storage is best-effort.
func (s *RecordService) persistGuest(ctx context.Context) {
	if err := s.store.Save(ctx, s.Records()); err != nil {
		s.logger.Warn(ctx, "failed to persist local records", "error", err)
	}
}

// updateRemoteCache refreshes the cached snapshot with the acknowledged
// part of the in-memory set.
func (s *RecordService) updateRemoteCache(ctx context.Context) {
	var acked []*models.Record
	for _, r := range s.Records() {
		if r.RemoteId != "" && !r.PendingSync {
			acked = append(acked, r)
		}
	}
	if err := s.store.SaveCachedRemote(ctx, acked); err != nil {
		s.logger.Warn(ctx, "failed to refresh cached remote snapshot", "error", err)
	}
}

// enqueue appends a mutation to the durable queue.
func (s *RecordService) enqueue(ctx context.Context, m *models.Mutation) {
	queue := s.store.LoadPendingMutations(ctx)
	queue = append(queue, m)
	if err := s.store.SavePendingMutations(ctx, queue); err != nil {
		s.logger.Warn(ctx, "failed to persist mutation queue", "error", err)
	}
}

package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/session"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/store"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// fakeGateway records calls and serves scripted results.
type fakeGateway struct {
	listResult []*models.Record
	listErr    error

	createErr   error
	createCalls []*models.Record
	nextRemote  int

	updateErr   error
	updateCalls []*models.Record

	deleteErr   error
	deleteCalls []string
}

func (f *fakeGateway) List(ctx context.Context) ([]*models.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Record, 0, len(f.listResult))
	for _, r := range f.listResult {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeGateway) Create(ctx context.Context, rec *models.Record) (string, error) {
	f.createCalls = append(f.createCalls, rec.Clone())
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextRemote++
	return fmt.Sprintf("remote-%d", f.nextRemote), nil
}

func (f *fakeGateway) Update(ctx context.Context, rec *models.Record) error {
	f.updateCalls = append(f.updateCalls, rec.Clone())
	return f.updateErr
}

func (f *fakeGateway) Delete(ctx context.Context, remoteID string) error {
	f.deleteCalls = append(f.deleteCalls, remoteID)
	return f.deleteErr
}

func (f *fakeGateway) CountEvents(ctx context.Context, event gateway.EventType, from, to int64) (int, error) {
	return 0, nil
}

func (f *fakeGateway) QuotaStatus(ctx context.Context, fingerprint string, targetID int64) (*models.QuotaStatus, error) {
	return nil, common.ErrRemoteRejected
}

func authedSession(t *testing.T) *session.Session {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "acc-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	s := session.New()
	require.NoError(t, s.Set(signed))
	return s
}

var dbSeq atomic.Int64

func newService(t *testing.T, gw *fakeGateway, sess *session.Session) (*RecordService, *store.Repositories) {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:recsvc%d?mode=memory&cache=shared", dbSeq.Add(1))
	repos, err := store.InitDatabase(ctx, dsn, nil)
	require.NoError(t, err)
	repos.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = repos.DB.Close() })

	svc := NewRecordService(repos.Store, repos.Metadata, gw, sess, nil)
	return svc, repos
}

func TestGuest_CreateAndLoad_LocalOnly(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc, repos := newService(t, gw, session.New())

	_, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, svc.State())

	rec, err := svc.Create(ctx, &models.Record{Content: "flying"})
	require.NoError(t, err)
	assert.NotZero(t, rec.Id)
	assert.Empty(t, gw.createCalls)

	// a fresh service over the same db sees the record
	svc2 := NewRecordService(repos.Store, repos.Metadata, gw, session.New(), nil)
	res, err := svc2.Load(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "flying", res.Records[0].Content)
}

func TestCreate_IDsAreStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeGateway{}, session.New())

	// freeze the clock so consecutive creates collide on millis
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	a, err := svc.Create(ctx, &models.Record{Content: "a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, &models.Record{Content: "b"})
	require.NoError(t, err)
	assert.Greater(t, b.Id, a.Id)
}

func TestAuthenticated_Create_Offline_QueuesMutation(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{createErr: common.ErrRemoteUnavailable}
	svc, repos := newService(t, gw, authedSession(t))

	// mark migration done so Load does not interfere
	require.NoError(t, repos.Metadata.Set(ctx, migratedKeyPrefix+"acc-1", "1"))

	rec, err := svc.Create(ctx, &models.Record{Content: "offline dream"})
	require.NoError(t, err)
	assert.True(t, rec.PendingSync)

	queue := repos.Store.LoadPendingMutations(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, models.MutationCreate, queue[0].Kind)
	assert.Equal(t, rec.Id, queue[0].TargetId())
}

func TestAuthenticated_Load_FlushesQueueAndEmptiesIt(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{createErr: common.ErrRemoteUnavailable}
	sess := authedSession(t)
	svc, repos := newService(t, gw, sess)
	require.NoError(t, repos.Metadata.Set(ctx, migratedKeyPrefix+"acc-1", "1"))

	rec, err := svc.Create(ctx, &models.Record{Content: "offline dream"})
	require.NoError(t, err)
	require.Len(t, repos.Store.LoadPendingMutations(ctx), 1)

	// connectivity restored
	gw.createErr = nil

	res, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, res.Offline)
	assert.Empty(t, repos.Store.LoadPendingMutations(ctx))

	// the flushed record is part of the loaded set, with a remote id
	require.Len(t, res.Records, 1)
	assert.Equal(t, rec.Content, res.Records[0].Content)
	assert.NotEmpty(t, res.Records[0].RemoteId)
	assert.False(t, res.Records[0].PendingSync)
}

func TestAuthenticated_Load_OfflineFallsBackToCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{listResult: []*models.Record{{Id: 1, RemoteId: "r1", Content: "remote"}}}
	svc, repos := newService(t, gw, authedSession(t))
	require.NoError(t, repos.Metadata.Set(ctx, migratedKeyPrefix+"acc-1", "1"))

	// first load online populates the cache
	res, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	// second load offline serves the cached snapshot
	gw.listErr = common.ErrRemoteUnavailable
	res, err = svc.Load(ctx)
	require.NoError(t, err)
	assert.True(t, res.Offline)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "remote", res.Records[0].Content)
}

func TestReplay_QueuedEditsWinOverStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{
		listResult: []*models.Record{
			{Id: 1, RemoteId: "r1", Content: "stale"},
			{Id: 2, RemoteId: "r2", Content: "gone soon"},
		},
		updateErr: common.ErrRemoteUnavailable,
		deleteErr: common.ErrRemoteUnavailable,
	}
	sess := authedSession(t)
	svc, repos := newService(t, gw, sess)
	require.NoError(t, repos.Metadata.Set(ctx, migratedKeyPrefix+"acc-1", "1"))

	_, err := svc.Load(ctx)
	require.NoError(t, err)

	// offline edits: update record 1, delete record 2
	edited := svc.Get(1).Clone()
	edited.Content = "fresh"
	require.NoError(t, svc.Update(ctx, edited))
	require.NoError(t, svc.Delete(ctx, 2))

	// reload while the list succeeds but mutations cannot flush: the
	// flush stops at the first transient failure and replay applies the
	// queue on top of the (stale) snapshot
	res, err := svc.Load(ctx)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "fresh", res.Records[0].Content)
	assert.True(t, res.Records[0].PendingSync)
}

func TestReplay_CreateIsIdempotentOnRecordId(t *testing.T) {
	base := []*models.Record{}
	m := &models.Mutation{Id: "m1", Kind: models.MutationCreate, Record: &models.Record{Id: 5, Content: "v1"}}
	m2 := &models.Mutation{Id: "m2", Kind: models.MutationCreate, Record: &models.Record{Id: 5, Content: "v2"}}

	out := replay(base, []*models.Mutation{m, m2})
	require.Len(t, out, 1)
	assert.Equal(t, "v2", out[0].Content)
}

func TestMigration_PushesOnlyUnsyncedRecordsAndClearsStore(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	sess := authedSession(t)
	svc, repos := newService(t, gw, sess)

	// seed guest-era local records: one synced, one not
	require.NoError(t, repos.Store.Save(ctx, []*models.Record{
		{Id: 1, Content: "unsynced"},
		{Id: 2, RemoteId: "r2", Content: "synced"},
	}))

	_, err := svc.Load(ctx)
	require.NoError(t, err)

	// exactly one create, for the unsynced record
	require.Len(t, gw.createCalls, 1)
	assert.Equal(t, "unsynced", gw.createCalls[0].Content)

	// local store is cleared and the flag prevents a second run
	assert.Empty(t, repos.Store.Load(ctx))
	gw.createCalls = nil
	_, err = svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, gw.createCalls)
}

func TestUpdate_Rejected_IsSurfacedNotQueued(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{listResult: []*models.Record{{Id: 1, RemoteId: "r1", Content: "x"}}}
	svc, repos := newService(t, gw, authedSession(t))
	require.NoError(t, repos.Metadata.Set(ctx, migratedKeyPrefix+"acc-1", "1"))

	_, err := svc.Load(ctx)
	require.NoError(t, err)

	gw.updateErr = common.ErrRemoteRejected
	edited := svc.Get(1).Clone()
	edited.Content = "y"

	err = svc.Update(ctx, edited)
	assert.ErrorIs(t, err, common.ErrRemoteRejected)
	assert.Empty(t, repos.Store.LoadPendingMutations(ctx))

	// the optimistic local apply is not rolled back
	assert.Equal(t, "y", svc.Get(1).Content)
}

func TestDelete_PendingCreate_JustDropsQueuedMutations(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{createErr: common.ErrRemoteUnavailable}
	svc, repos := newService(t, gw, authedSession(t))
	require.NoError(t, repos.Metadata.Set(ctx, migratedKeyPrefix+"acc-1", "1"))

	rec, err := svc.Create(ctx, &models.Record{Content: "ephemeral"})
	require.NoError(t, err)
	require.Len(t, repos.Store.LoadPendingMutations(ctx), 1)

	require.NoError(t, svc.Delete(ctx, rec.Id))
	assert.Empty(t, repos.Store.LoadPendingMutations(ctx))
	assert.Empty(t, gw.deleteCalls)
}

func TestAnalysisLifecycle_SetsTimestampOnlyOnCompletion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeGateway{}, session.New())

	rec, err := svc.Create(ctx, &models.Record{Content: "maze"})
	require.NoError(t, err)

	require.NoError(t, svc.BeginAnalysis(ctx, rec.Id))
	assert.Equal(t, models.AnalysisStatusPending, svc.Get(rec.Id).AnalysisStatus)
	assert.False(t, svc.Get(rec.Id).IsAnalyzed())

	require.NoError(t, svc.FailAnalysis(ctx, rec.Id))
	assert.False(t, svc.Get(rec.Id).IsAnalyzed())

	require.NoError(t, svc.CompleteAnalysis(ctx, rec.Id, &Analysis{Title: "Maze", Interpretation: "lost"}))
	got := svc.Get(rec.Id)
	assert.True(t, got.IsAnalyzed())
	assert.Equal(t, "Maze", got.Title)
}

func TestExploration_SeedDoesNotCountAsUserActivity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeGateway{}, session.New())

	rec, err := svc.Create(ctx, &models.Record{Content: "ocean"})
	require.NoError(t, err)

	require.NoError(t, svc.StartExploration(ctx, rec.Id, "what stood out?"))
	got := svc.Get(rec.Id)
	assert.True(t, got.IsExplored()) // explicit timestamp
	assert.Equal(t, 0, got.UserMessageCount())

	require.NoError(t, svc.AppendMessage(ctx, rec.Id, models.MessageRoleUser, "the color"))
	assert.Equal(t, 1, svc.Get(rec.Id).UserMessageCount())
}

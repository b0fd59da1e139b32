package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type failingRecords struct{}

func (f *failingRecords) GetAll(ctx context.Context) ([]*models.Record, error) {
	return nil, errors.New("disk on fire")
}
func (f *failingRecords) ReplaceAll(ctx context.Context, recs []*models.Record) error {
	return errors.New("disk on fire")
}

type failingMutations struct{}

func (f *failingMutations) GetAll(ctx context.Context) ([]*models.Mutation, error) {
	return nil, errors.New("disk on fire")
}
func (f *failingMutations) Append(ctx context.Context, m *models.Mutation) error {
	return errors.New("disk on fire")
}
func (f *failingMutations) ReplaceAll(ctx context.Context, ms []*models.Mutation) error {
	return errors.New("disk on fire")
}
func (f *failingMutations) DeleteByID(ctx context.Context, id string) error {
	return errors.New("disk on fire")
}

func TestLoad_DegradesToEmptyOnStorageError(t *testing.T) {
	s := NewSQLiteStore(&failingRecords{}, &failingRecords{}, &failingMutations{}, nil)
	ctx := context.Background()

	assert.Empty(t, s.Load(ctx))
	assert.Empty(t, s.LoadCachedRemote(ctx))
	assert.Empty(t, s.LoadPendingMutations(ctx))
}

func TestSave_WrapsStorageError(t *testing.T) {
	s := NewSQLiteStore(&failingRecords{}, &failingRecords{}, &failingMutations{}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, nil), common.ErrStorage)
	assert.ErrorIs(t, s.SaveCachedRemote(ctx, nil), common.ErrStorage)
	assert.ErrorIs(t, s.SavePendingMutations(ctx, nil), common.ErrStorage)
}

func TestInitDatabase_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repos, err := InitDatabase(ctx, "file:storetest?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	repos.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = repos.DB.Close() })

	s := repos.Store
	require.NoError(t, s.Save(ctx, []*models.Record{{Id: 1, Content: "dream"}}))
	recs := s.Load(ctx)
	require.Len(t, recs, 1)
	assert.Equal(t, "dream", recs[0].Content)

	require.NoError(t, s.SaveCachedRemote(ctx, []*models.Record{{Id: 2, Content: "remote"}}))
	cached := s.LoadCachedRemote(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "remote", cached[0].Content)

	require.NoError(t, s.SavePendingMutations(ctx, []*models.Mutation{
		{Id: "m1", Kind: models.MutationCreate, CreatedAt: 1, Record: &models.Record{Id: 1}},
	}))
	ms := s.LoadPendingMutations(ctx)
	require.Len(t, ms, 1)
	assert.Equal(t, models.MutationCreate, ms[0].Kind)

	// metadata repo is wired to the same db
	require.NoError(t, repos.Metadata.Set(ctx, "k", "v"))
	v, ok, err := repos.Metadata.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

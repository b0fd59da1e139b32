package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// memMeta is an in-memory metadata.Repository.
type memMeta struct {
	values map[string]string
	getErr error
}

func newMemMeta() *memMeta {
	return &memMeta{values: make(map[string]string)}
}

func (m *memMeta) Get(ctx context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memMeta) Set(ctx context.Context, key string, value string) error {
	m.values[key] = value
	return nil
}

func (m *memMeta) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestCounterGetNeverFails(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(m *memMeta)
		want  int
	}{
		{"missing key", func(m *memMeta) {}, 0},
		{"unparsable value", func(m *memMeta) { m.values[counterKeyAnalysis] = "banana" }, 0},
		{"negative value", func(m *memMeta) { m.values[counterKeyAnalysis] = "-3" }, 0},
		{"storage error", func(m *memMeta) { m.getErr = errors.New("db locked") }, 0},
		{"valid value", func(m *memMeta) { m.values[counterKeyAnalysis] = "7" }, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemMeta()
			tt.setup(m)
			c := NewCounter(m, counterKeyAnalysis)
			assert.Equal(t, tt.want, c.Get(ctx))
		})
	}
}

func TestCounterIncrementIsMonotonic(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(newMemMeta(), counterKeyAnalysis)

	for want := 1; want <= 5; want++ {
		n, err := c.Increment(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		assert.Equal(t, want, c.Get(ctx))
	}
}

func TestCounterSyncWithServerKeepsMax(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(newMemMeta(), counterKeyAnalysis)

	_, err := c.SyncWithServer(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Get(ctx))

	// A lower server count never winds the counter back.
	n, err := c.SyncWithServer(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, c.Get(ctx))

	n, err = c.SyncWithServer(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}

func TestCountersEnsureSeeded(t *testing.T) {
	ctx := context.Background()
	m := newMemMeta()
	c := NewCounters(m)

	at := int64(1700000000000)
	recs := []*models.Record{
		{Id: 1, AnalysisStatus: models.AnalysisStatusDone, AnalyzedAt: &at},
		{Id: 2, AnalysisStatus: models.AnalysisStatusDone, AnalyzedAt: &at, ExplorationStartedAt: &at},
		{Id: 3, AnalysisStatus: models.AnalysisStatusDone}, // no timestamp, not counted
	}

	require.NoError(t, c.EnsureSeeded(ctx, recs))
	assert.Equal(t, 2, c.Analysis.Get(ctx))
	assert.Equal(t, 1, c.Exploration.Get(ctx))

	// Seeding runs once; later record sets do not re-seed.
	require.NoError(t, c.EnsureSeeded(ctx, nil))
	assert.Equal(t, 2, c.Analysis.Get(ctx))
	assert.Equal(t, 1, c.Exploration.Get(ctx))
}

func TestCountersEnsureSeededDoesNotLowerExisting(t *testing.T) {
	ctx := context.Background()
	m := newMemMeta()
	c := NewCounters(m)

	_, err := c.Analysis.SyncWithServer(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, c.EnsureSeeded(ctx, nil))
	assert.Equal(t, 5, c.Analysis.Get(ctx))
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ts(v int64) *int64 { return &v }

func TestRecord_IsAnalyzed_RequiresTimestamp(t *testing.T) {
	// status "done" alone is not enough
	r := &Record{Id: 1, AnalysisStatus: AnalysisStatusDone}
	assert.False(t, r.IsAnalyzed())

	r.AnalyzedAt = ts(1700000000000)
	assert.True(t, r.IsAnalyzed())

	// timestamp wins even with a stale status
	r2 := &Record{Id: 2, AnalysisStatus: AnalysisStatusNone, AnalyzedAt: ts(1)}
	assert.True(t, r2.IsAnalyzed())
}

func TestRecord_IsExplored(t *testing.T) {
	r := &Record{Id: 1}
	assert.False(t, r.IsExplored())

	// explicit exploration timestamp
	r.ExplorationStartedAt = ts(1700000000000)
	assert.True(t, r.IsExplored())

	// seed message alone does not count
	r2 := &Record{Id: 2, Messages: []Message{
		{Role: MessageRoleAssistant, Content: "what did you dream about?"},
	}}
	assert.False(t, r2.IsExplored())

	r2.Messages = append(r2.Messages, Message{Role: MessageRoleUser, Content: "I was flying"})
	assert.True(t, r2.IsExplored())
}

func TestRecord_UserMessageCount(t *testing.T) {
	r := &Record{Messages: []Message{
		{Role: MessageRoleAssistant},
		{Role: MessageRoleUser},
		{Role: MessageRoleAssistant},
		{Role: MessageRoleUser},
	}}
	assert.Equal(t, 2, r.UserMessageCount())
}

func TestRecord_Clone_NoAliasing(t *testing.T) {
	r := &Record{Id: 1, AnalyzedAt: ts(5), Tags: []string{"a"}, Messages: []Message{{Role: MessageRoleUser}}}
	c := r.Clone()

	*c.AnalyzedAt = 6
	c.Tags[0] = "b"
	c.Messages[0].Role = MessageRoleAssistant

	assert.Equal(t, int64(5), *r.AnalyzedAt)
	assert.Equal(t, "a", r.Tags[0])
	assert.Equal(t, MessageRoleUser, r.Messages[0].Role)
}

func TestMutation_TargetId(t *testing.T) {
	m := &Mutation{Kind: MutationCreate, Record: &Record{Id: 42}}
	assert.Equal(t, int64(42), m.TargetId())

	d := &Mutation{Kind: MutationDelete, RecordId: 7}
	assert.Equal(t, int64(7), d.TargetId())
}

func TestNewQuotaUsage(t *testing.T) {
	limit := 2
	u := NewQuotaUsage(1, &limit)
	assert.Equal(t, 1, u.Used)
	assert.Equal(t, 1, *u.Remaining)

	// used beyond limit clamps remaining at zero
	u = NewQuotaUsage(5, &limit)
	assert.Equal(t, 0, *u.Remaining)

	// nil limit means unlimited
	u = NewQuotaUsage(100, nil)
	assert.Nil(t, u.Limit)
	assert.Nil(t, u.Remaining)
}

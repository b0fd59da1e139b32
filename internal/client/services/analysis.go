package services

import (
	"context"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
)

// Analysis is what the external analysis collaborator derives from a dream
// transcript.
type Analysis struct {
	Title          string
	Interpretation string
	Tags           []string
}

// Analyzer is the narrow contract for the AI analysis collaborator. Its
// implementation (model calls, prompts) is outside this client.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (*Analysis, error)
}

// Explorer is the narrow contract for the exploration-conversation
// collaborator: given the record and the conversation so far, produce the
// next assistant reply.
type Explorer interface {
	Reply(ctx context.Context, rec *models.Record) (string, error)
}

// BeginAnalysis marks the record as having an analysis in flight.
func (s *RecordService) BeginAnalysis(ctx context.Context, id int64) error {
	rec := s.Get(id)
	if rec == nil {
		return common.ErrNotFound
	}
	rec = rec.Clone()
	rec.AnalysisStatus = models.AnalysisStatusPending
	return s.Update(ctx, rec)
}

// CompleteAnalysis stores the derived fields and stamps AnalyzedAt, which
// is what actually makes the record count as analyzed.
func (s *RecordService) CompleteAnalysis(ctx context.Context, id int64, a *Analysis) error {
	rec := s.Get(id)
	if rec == nil {
		return common.ErrNotFound
	}
	rec = rec.Clone()
	rec.Title = a.Title
	rec.Interpretation = a.Interpretation
	rec.Tags = a.Tags
	rec.AnalysisStatus = models.AnalysisStatusDone
	now := s.now().UnixMilli()
	rec.AnalyzedAt = &now
	return s.Update(ctx, rec)
}

// FailAnalysis records a failed attempt. AnalyzedAt stays unset, so the
// record still counts as not analyzed.
func (s *RecordService) FailAnalysis(ctx context.Context, id int64) error {
	rec := s.Get(id)
	if rec == nil {
		return common.ErrNotFound
	}
	rec = rec.Clone()
	rec.AnalysisStatus = models.AnalysisStatusFailed
	return s.Update(ctx, rec)
}

// StartExploration opens the exploration conversation with an assistant
// seed message.
func (s *RecordService) StartExploration(ctx context.Context, id int64, seed string) error {
	rec := s.Get(id)
	if rec == nil {
		return common.ErrNotFound
	}
	rec = rec.Clone()
	now := s.now().UnixMilli()
	if rec.ExplorationStartedAt == nil {
		rec.ExplorationStartedAt = &now
	}
	if seed != "" && len(rec.Messages) == 0 {
		rec.Messages = append(rec.Messages, models.Message{
			Role:      models.MessageRoleAssistant,
			Content:   seed,
			CreatedAt: now,
		})
	}
	return s.Update(ctx, rec)
}

// AppendMessage adds one conversation turn.
func (s *RecordService) AppendMessage(ctx context.Context, id int64, role models.MessageRole, content string) error {
	rec := s.Get(id)
	if rec == nil {
		return common.ErrNotFound
	}
	rec = rec.Clone()
	rec.Messages = append(rec.Messages, models.Message{
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UnixMilli(),
	})
	return s.Update(ctx, rec)
}

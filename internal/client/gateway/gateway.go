// Package gateway is the thin client for the authoritative backend: record
// CRUD, the usage-event count query and the guest quota-status endpoint.
//
// Errors are collapsed into two sentinel classes from internal/common:
// ErrRemoteUnavailable (transport failure, timeout, 5xx: safe to retry or
// queue) and ErrRemoteRejected (401/403/404: the backend will never accept
// the call as issued).
package gateway

import (
	"context"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// EventType names the usage events the backend records per billing period.
type EventType string

const (
	EventAnalysis    EventType = "analysis"
	EventExploration EventType = "exploration"
)

type Gateway interface {
	// List fetches the authoritative record set for the current account.
	List(ctx context.Context) ([]*models.Record, error)

	// Create pushes a new record and returns the backend-assigned remote id.
	Create(ctx context.Context, rec *models.Record) (string, error)

	// Update replaces the remote record identified by rec.RemoteId.
	Update(ctx context.Context, rec *models.Record) error

	// Delete removes the remote record.
	Delete(ctx context.Context, remoteID string) error

	// CountEvents counts usage events of the given type whose timestamp
	// (unix millis) falls in [from, to).
	CountEvents(ctx context.Context, event EventType, from, to int64) (int, error)

	// QuotaStatus queries the guest quota endpoint, keyed by device
	// fingerprint rather than account id.
	QuotaStatus(ctx context.Context, fingerprint string, targetID int64) (*models.QuotaStatus, error)
}

// recordDTO is the wire shape of a record. The backend keys records by its
// own id and echoes the client id back for reconciliation.
type recordDTO struct {
	Id                   string           `json:"id"`
	ClientId             int64            `json:"client_id"`
	Content              string           `json:"content"`
	Title                string           `json:"title,omitempty"`
	Interpretation       string           `json:"interpretation,omitempty"`
	Tags                 []string         `json:"tags,omitempty"`
	Favorite             bool             `json:"favorite"`
	AnalysisStatus       string           `json:"analysis_status"`
	AnalyzedAt           *int64           `json:"analyzed_at,omitempty"`
	ExplorationStartedAt *int64           `json:"exploration_started_at,omitempty"`
	Messages             []models.Message `json:"messages,omitempty"`
}

func toDTO(rec *models.Record) recordDTO {
	return recordDTO{
		Id:                   rec.RemoteId,
		ClientId:             rec.Id,
		Content:              rec.Content,
		Title:                rec.Title,
		Interpretation:       rec.Interpretation,
		Tags:                 rec.Tags,
		Favorite:             rec.Favorite,
		AnalysisStatus:       string(rec.AnalysisStatus),
		AnalyzedAt:           rec.AnalyzedAt,
		ExplorationStartedAt: rec.ExplorationStartedAt,
		Messages:             rec.Messages,
	}
}

func fromDTO(dto recordDTO) *models.Record {
	status := models.AnalysisStatus(dto.AnalysisStatus)
	if status == "" {
		status = models.AnalysisStatusNone
	}
	return &models.Record{
		Id:                   dto.ClientId,
		RemoteId:             dto.Id,
		Content:              dto.Content,
		Title:                dto.Title,
		Interpretation:       dto.Interpretation,
		Tags:                 dto.Tags,
		Favorite:             dto.Favorite,
		AnalysisStatus:       status,
		AnalyzedAt:           dto.AnalyzedAt,
		ExplorationStartedAt: dto.ExplorationStartedAt,
		Messages:             dto.Messages,
	}
}

// quotaStatusRequest/Response mirror POST /quota/status.
type quotaStatusRequest struct {
	Fingerprint string `json:"fingerprint"`
	TargetId    int64  `json:"target_id,omitempty"`
}

type quotaStatusResponse struct {
	Tier  string `json:"tier"`
	Usage struct {
		Primary   models.QuotaUsage `json:"primary"`
		Secondary models.QuotaUsage `json:"secondary"`
		PerItem   models.QuotaUsage `json:"per_item"`
	} `json:"usage"`
	CanPrimary   bool     `json:"can_primary"`
	CanSecondary bool     `json:"can_secondary"`
	Reasons      []string `json:"reasons,omitempty"`
}

func (r quotaStatusResponse) toStatus() *models.QuotaStatus {
	return &models.QuotaStatus{
		Tier:         models.Tier(r.Tier),
		Analyses:     r.Usage.Primary,
		Explorations: r.Usage.Secondary,
		Messages:     r.Usage.PerItem,
		CanAnalyze:   r.CanPrimary,
		CanExplore:   r.CanSecondary,
		Reasons:      r.Reasons,
	}
}

// Package models defines client-side data models used by the DreamKeeper CLI.
package models

// AnalysisStatus tracks the lifecycle of the AI interpretation of a dream.
type AnalysisStatus string

const (
	AnalysisStatusNone    AnalysisStatus = "none"
	AnalysisStatusPending AnalysisStatus = "pending"
	AnalysisStatusDone    AnalysisStatus = "done"
	AnalysisStatusFailed  AnalysisStatus = "failed"
)

// MessageRole identifies the author of an exploration message.
type MessageRole string

const (
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleUser      MessageRole = "user"
)

// Message is a single turn in a dream exploration conversation.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt int64       `json:"created_at"`
}

// Record is a single journal entry, persisted locally and synced with the
// server. The Id is a client-generated unix-millisecond timestamp; it is
// monotonically increasing and doubles as the sort key.
type Record struct {
	// Id is the client-generated identifier (creation time in unix millis).
	Id int64 `json:"id"`

	// RemoteId is assigned by the backend once it accepts the record.
	// Empty means the record has never been acknowledged remotely.
	RemoteId string `json:"remote_id,omitempty"`

	// Content is the free-text dream transcript.
	Content string `json:"content"`

	// Title and Interpretation are derived by the analysis collaborator.
	Title          string   `json:"title,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`
	Tags           []string `json:"tags,omitempty"`

	Favorite bool `json:"favorite"`

	// AnalysisStatus is advisory only; IsAnalyzed ignores it.
	AnalysisStatus AnalysisStatus `json:"analysis_status"`

	// AnalyzedAt is the unix-millisecond timestamp of a completed analysis.
	// Its presence is the sole truth signal for "analyzed".
	AnalyzedAt *int64 `json:"analyzed_at,omitempty"`

	// ExplorationStartedAt marks the start of an exploration conversation.
	ExplorationStartedAt *int64 `json:"exploration_started_at,omitempty"`

	// Messages is the ordered exploration conversation. The first assistant
	// message is the seed and does not count as user activity.
	Messages []Message `json:"messages,omitempty"`

	// PendingSync marks a record whose last mutation has not been
	// acknowledged by the backend yet.
	PendingSync bool `json:"pending_sync"`
}

// IsAnalyzed reports whether the record has a completed analysis.
// A status of "done" without an AnalyzedAt timestamp does not count.
func (r *Record) IsAnalyzed() bool {
	return r.AnalyzedAt != nil
}

// IsExplored reports whether an exploration conversation was started,
// either via the explicit timestamp or by at least one message beyond the
// initial assistant seed.
func (r *Record) IsExplored() bool {
	if r.ExplorationStartedAt != nil {
		return true
	}
	return r.UserMessageCount() > 0
}

// UserMessageCount returns the number of user-authored exploration
// messages. Seed and other assistant messages are excluded.
func (r *Record) UserMessageCount() int {
	n := 0
	for _, m := range r.Messages {
		if m.Role == MessageRoleUser {
			n++
		}
	}
	return n
}

// Clone returns a deep copy, so optimistic in-memory mutations never alias
// slices still referenced by queued mutation snapshots.
func (r *Record) Clone() *Record {
	c := *r
	if r.AnalyzedAt != nil {
		v := *r.AnalyzedAt
		c.AnalyzedAt = &v
	}
	if r.ExplorationStartedAt != nil {
		v := *r.ExplorationStartedAt
		c.ExplorationStartedAt = &v
	}
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.Messages != nil {
		c.Messages = append([]Message(nil), r.Messages...)
	}
	return &c
}

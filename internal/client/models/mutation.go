package models

// MutationKind distinguishes queued offline operations.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation is a not-yet-acknowledged create/update/delete operation. It is
// appended to the durable queue when the backend is unreachable and removed
// once the corresponding remote call succeeds.
//
// Create and update carry a full record snapshot; delete carries only the
// record id plus the remote id if one was ever assigned.
type Mutation struct {
	// Id is a unique identifier for the queue entry.
	Id string `json:"id"`

	Kind MutationKind `json:"kind"`

	// CreatedAt is the unix-millisecond enqueue time.
	CreatedAt int64 `json:"created_at"`

	// Record is the full snapshot for create/update mutations.
	Record *Record `json:"record,omitempty"`

	// RecordId/RemoteId identify the target of a delete mutation.
	RecordId int64  `json:"record_id,omitempty"`
	RemoteId string `json:"remote_id,omitempty"`
}

// TargetId returns the local record id the mutation applies to. Replay uses
// the record's own id as the dedup key, never the mutation id, so applying
// the same mutation twice cannot duplicate a record.
func (m *Mutation) TargetId() int64 {
	if m.Record != nil {
		return m.Record.Id
	}
	return m.RecordId
}

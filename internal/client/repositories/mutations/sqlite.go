// Package mutations stores the durable queue of create/update/delete
// operations that have not been acknowledged by the backend yet. The
// autoincrement seq column preserves enqueue order across restarts.
package mutations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Mutation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, created_at, record, record_id, remote_id
		FROM pending_mutations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending mutations: %w", err)
	}
	defer rows.Close()

	var result []*models.Mutation
	for rows.Next() {
		var (
			m      models.Mutation
			kind   string
			record sql.NullString
		)
		if err := rows.Scan(&m.Id, &kind, &m.CreatedAt, &record, &m.RecordId, &m.RemoteId); err != nil {
			return nil, fmt.Errorf("failed to scan mutation row: %w", err)
		}
		m.Kind = models.MutationKind(kind)
		if record.Valid && record.String != "" {
			var rec models.Record
			if err := json.Unmarshal([]byte(record.String), &rec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal mutation %s snapshot: %w", m.Id, err)
			}
			m.Record = &rec
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mutation rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Append(ctx context.Context, m *models.Mutation) error {
	record, err := marshalSnapshot(m)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_mutations (id, kind, created_at, record, record_id, remote_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Id, string(m.Kind), m.CreatedAt, record, m.RecordId, m.RemoteId)
	if err != nil {
		return fmt.Errorf("failed to append mutation %s: %w", m.Id, err)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, ms []*models.Mutation) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_mutations`); err != nil {
			return fmt.Errorf("failed to clear pending mutations: %w", err)
		}
		for _, m := range ms {
			record, err := marshalSnapshot(m)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO pending_mutations (id, kind, created_at, record, record_id, remote_id)
				VALUES (?, ?, ?, ?, ?, ?)`,
				m.Id, string(m.Kind), m.CreatedAt, record, m.RecordId, m.RemoteId)
			if err != nil {
				return fmt.Errorf("failed to insert mutation %s: %w", m.Id, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_mutations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mutation %s: %w", id, err)
	}
	return nil
}

func marshalSnapshot(m *models.Mutation) (string, error) {
	if m.Record == nil {
		return "", nil
	}
	b, err := json.Marshal(m.Record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mutation %s snapshot: %w", m.Id, err)
	}
	return string(b), nil
}

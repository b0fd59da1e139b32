// Package records stores journal records in SQLite, one row per record.
// Two tables share the schema: "records" holds the guest-mode local set,
// "remote_cache" holds the last snapshot received from the backend.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/dbx"
)

const (
	tableLocal       = "records"
	tableRemoteCache = "remote_cache"
)

// SQLiteRepository implements Repository bound to one of the two record
// tables.
type SQLiteRepository struct {
	db    *sql.DB
	table string
}

// NewLocalRepository returns a repository over the local records table.
func NewLocalRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, table: tableLocal}
}

// NewRemoteCacheRepository returns a repository over the cached remote
// snapshot table.
func NewRemoteCacheRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, table: tableRemoteCache}
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Record, error) {
	query := fmt.Sprintf(`SELECT id, remote_id, content, title, interpretation, tags,
		favorite, analysis_status, analyzed_at, exploration_started_at, messages, pending_sync
		FROM %s`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, recs []*models.Record) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.table)); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		query := fmt.Sprintf(`INSERT INTO %s (id, remote_id, content, title, interpretation, tags,
			favorite, analysis_status, analyzed_at, exploration_started_at, messages, pending_sync)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table)

		for _, rec := range recs {
			tags, err := json.Marshal(orEmpty(rec.Tags))
			if err != nil {
				return fmt.Errorf("failed to marshal tags: %w", err)
			}
			msgs, err := json.Marshal(orEmptyMessages(rec.Messages))
			if err != nil {
				return fmt.Errorf("failed to marshal messages: %w", err)
			}
			_, err = tx.ExecContext(ctx, query,
				rec.Id, rec.RemoteId, rec.Content, rec.Title, rec.Interpretation, string(tags),
				rec.Favorite, string(rec.AnalysisStatus), rec.AnalyzedAt, rec.ExplorationStartedAt,
				string(msgs), rec.PendingSync)
			if err != nil {
				return fmt.Errorf("failed to insert record %d: %w", rec.Id, err)
			}
		}
		return nil
	})
}

func scanRecord(rows *sql.Rows) (*models.Record, error) {
	var (
		rec        models.Record
		status     string
		tags       string
		msgs       string
		analyzedAt sql.NullInt64
		exploredAt sql.NullInt64
	)
	err := rows.Scan(&rec.Id, &rec.RemoteId, &rec.Content, &rec.Title, &rec.Interpretation, &tags,
		&rec.Favorite, &status, &analyzedAt, &exploredAt, &msgs, &rec.PendingSync)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record row: %w", err)
	}
	rec.AnalysisStatus = models.AnalysisStatus(status)
	if analyzedAt.Valid {
		v := analyzedAt.Int64
		rec.AnalyzedAt = &v
	}
	if exploredAt.Valid {
		v := exploredAt.Int64
		rec.ExplorationStartedAt = &v
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for record %d: %w", rec.Id, err)
	}
	if err := json.Unmarshal([]byte(msgs), &rec.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages for record %d: %w", rec.Id, err)
	}
	return &rec, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMessages(m []models.Message) []models.Message {
	if m == nil {
		return []models.Message{}
	}
	return m
}

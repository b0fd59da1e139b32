package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/mutations"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/dreamkeeper/internal/logging"
	"github.com/pressly/goose/v3"
)

// Repositories bundles everything backed by the client database.
type Repositories struct {
	DB       *sql.DB
	Store    *SQLiteStore
	Metadata metadata.Repository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the client database, migrates the schema and wires the
// repositories. The caller owns the returned DB handle.
func InitDatabase(ctx context.Context, dsn string, logger logging.Logger) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	st := NewSQLiteStore(
		records.NewLocalRepository(db),
		records.NewRemoteCacheRepository(db),
		mutations.NewSQLiteRepository(db),
		logger,
	)

	return &Repositories{
		DB:       db,
		Store:    st,
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}

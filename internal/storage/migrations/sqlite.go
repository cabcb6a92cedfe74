package migrations

import (
	"context"

	"edgeai-booster/internal/storage/sqlite"
)

// RunSQLiteMigrations applies the embedded SQLite schema.
func RunSQLiteMigrations(ctx context.Context, db *sqlite.DB) error {
	return apply(ctx, SQLiteFS, "sqlite", func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}

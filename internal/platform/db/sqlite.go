package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens or creates a SQLite database at path and applies every
// schema file in fsys. Schema files must be idempotent (CREATE ... IF NOT EXISTS).
// The special path ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, fsys fs.FS) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent validations and
	// keeps ":memory:" databases on one connection.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if fsys != nil {
		if err := ApplySchema(ctx, sqlDB, fsys); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return sqlDB, nil
}

// ApplySchema executes the schema files in fsys in version order.
func ApplySchema(ctx context.Context, sqlDB *sql.DB, fsys fs.FS) error {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}
	for _, mig := range migrations {
		if _, err := sqlDB.ExecContext(ctx, mig.SQL); err != nil {
			return fmt.Errorf("apply schema %s: %w", mig.Name, err)
		}
	}
	return nil
}

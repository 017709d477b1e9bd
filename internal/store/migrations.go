package store

import (
	"context"
	"database/sql"
)

func (s *Store) migrate(ctx context.Context) error {
	return s.WithTx(ctx, false, func(tx *sql.Tx) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS dest_instances (
                dest TEXT NOT NULL,
                instance TEXT NOT NULL DEFAULT '',
                created_at DATETIME NOT NULL,
                PRIMARY KEY (dest, instance)
            )`,
			`CREATE TABLE IF NOT EXISTS dest_options (
                dest TEXT NOT NULL,
                instance TEXT NOT NULL DEFAULT '',
                name TEXT NOT NULL,
                value TEXT NOT NULL DEFAULT '',
                updated_at DATETIME NOT NULL,
                PRIMARY KEY (dest, instance, name),
                FOREIGN KEY (dest, instance) REFERENCES dest_instances(dest, instance) ON DELETE CASCADE
            )`,
			`CREATE TABLE IF NOT EXISTS settings (
                key TEXT PRIMARY KEY,
                value TEXT NOT NULL
            )`,
			`CREATE INDEX IF NOT EXISTS idx_dest_options_dest ON dest_options(dest)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

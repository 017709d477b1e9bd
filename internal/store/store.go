// Package store persists per-user destination instances, option overrides
// and the user default destination, the data CUPS keeps in lpoptions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cupsbridge/internal/model"
)

const defaultDestKey = "default-dest"

var ErrNoDefault = errors.New("no user default destination")

type Store struct {
	db *sql.DB
}

// DefaultPath is the per-user database location; CUPSBRIDGE_STORE overrides
// it.
func DefaultPath() string {
	if v := strings.TrimSpace(os.Getenv("CUPSBRIDGE_STORE")); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cups", "lpoptions.db")
	}
	return "lpoptions.db"
}

func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) WithTx(ctx context.Context, readOnly bool, fn func(tx *sql.Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	opts := &sql.TxOptions{ReadOnly: readOnly}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func ensureInstance(ctx context.Context, tx *sql.Tx, key model.DestKey) error {
	if strings.TrimSpace(key.Name) == "" {
		return fmt.Errorf("destination name is required")
	}
	_, err := tx.ExecContext(ctx, `
        INSERT INTO dest_instances (dest, instance, created_at) VALUES (?, ?, ?)
        ON CONFLICT(dest, instance) DO NOTHING
    `, key.Name, key.Instance, time.Now().UTC())
	return err
}

// RemoveInstance deletes an instance and its options. Removing the base
// destination clears its overrides.
func (s *Store) RemoveInstance(ctx context.Context, key model.DestKey) error {
	return s.WithTx(ctx, false, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dest_instances WHERE dest = ? AND instance = ?`, key.Name, key.Instance); err != nil {
			return err
		}
		def, err := getDefault(ctx, tx)
		if err == nil && def == key {
			_, err = tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, defaultDestKey)
			return err
		}
		if errors.Is(err, ErrNoDefault) {
			return nil
		}
		return err
	})
}

// Instances lists every stored destination instance ordered by name.
func (s *Store) Instances(ctx context.Context) ([]model.DestKey, error) {
	var out []model.DestKey
	err := s.WithTx(ctx, true, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT dest, instance FROM dest_instances ORDER BY dest, instance`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k model.DestKey
			if err := rows.Scan(&k.Name, &k.Instance); err != nil {
				return err
			}
			out = append(out, k)
		}
		return rows.Err()
	})
	return out, err
}

// SetOption stores one option override, creating the instance if needed.
func (s *Store) SetOption(ctx context.Context, key model.DestKey, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("option name is required")
	}
	return s.WithTx(ctx, false, func(tx *sql.Tx) error {
		if err := ensureInstance(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO dest_options (dest, instance, name, value, updated_at) VALUES (?, ?, ?, ?, ?)
            ON CONFLICT(dest, instance, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
        `, key.Name, key.Instance, name, value, time.Now().UTC())
		return err
	})
}

func (s *Store) DeleteOption(ctx context.Context, key model.DestKey, name string) error {
	return s.WithTx(ctx, false, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM dest_options WHERE dest = ? AND instance = ? AND name = ?`, key.Name, key.Instance, name)
		return err
	})
}

// Options returns the overrides of one instance.
func (s *Store) Options(ctx context.Context, key model.DestKey) (map[string]string, error) {
	out := map[string]string{}
	err := s.WithTx(ctx, true, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT name, value FROM dest_options WHERE dest = ? AND instance = ?`, key.Name, key.Instance)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name, value string
			if err := rows.Scan(&name, &value); err != nil {
				return err
			}
			out[name] = value
		}
		return rows.Err()
	})
	return out, err
}

// AllOptions returns every stored override.
func (s *Store) AllOptions(ctx context.Context) ([]model.DestOption, error) {
	var out []model.DestOption
	err := s.WithTx(ctx, true, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT dest, instance, name, value FROM dest_options ORDER BY dest, instance, name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var o model.DestOption
			if err := rows.Scan(&o.Dest, &o.Instance, &o.Name, &o.Value); err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	return out, err
}

// SetDefault makes key the user default destination.
func (s *Store) SetDefault(ctx context.Context, key model.DestKey) error {
	return s.WithTx(ctx, false, func(tx *sql.Tx) error {
		if err := ensureInstance(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO settings (key, value) VALUES (?, ?)
            ON CONFLICT(key) DO UPDATE SET value = excluded.value
        `, defaultDestKey, key.String())
		return err
	})
}

// Default returns the user default destination, or ErrNoDefault.
func (s *Store) Default(ctx context.Context) (model.DestKey, error) {
	var out model.DestKey
	err := s.WithTx(ctx, true, func(tx *sql.Tx) error {
		k, err := getDefault(ctx, tx)
		out = k
		return err
	})
	return out, err
}

func getDefault(ctx context.Context, tx *sql.Tx) (model.DestKey, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, defaultDestKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DestKey{}, ErrNoDefault
	}
	if err != nil {
		return model.DestKey{}, err
	}
	return model.ParseKey(raw), nil
}

// Package store persists record snapshots in SQLite so shared records survive
// a server restart.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store reads and writes snapshots keyed by component and session group.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the snapshot for component and group.
func (s *Store) Save(ctx context.Context, component, group string, values map[string]any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (component, grp, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (component, grp) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		component, group, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot %s/%s: %w", component, group, err)
	}
	return nil
}

// Load returns the stored snapshot. ok is false when none exists.
func (s *Store) Load(ctx context.Context, component, group string) (values map[string]any, ok bool, err error) {
	var data string
	err = s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE component = ? AND grp = ?`, component, group).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s/%s: %w", component, group, err)
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s/%s: %w", component, group, err)
	}
	return values, true, nil
}

// Delete removes a snapshot.
func (s *Store) Delete(ctx context.Context, component, group string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE component = ? AND grp = ?`, component, group)
	return err
}

// Groups lists the groups with a snapshot for component, most recent first.
func (s *Store) Groups(ctx context.Context, component string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT grp FROM snapshots WHERE component = ? ORDER BY updated_at DESC, grp`, component)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

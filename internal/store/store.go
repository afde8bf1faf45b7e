// Package store provides SQLite-backed persistence for per-collection
// push-down configuration.
//
// One row per (owner, collection) in collection_configs plus its
// exclusion tags in collection_exclusion_tags. Upsert replaces the tag
// set wholesale (delete-then-insert) inside one transaction; there is no
// incremental tag diffing. Reads seed the controller's desired state on
// startup.
//
// Database configuration follows the usual single-writer SQLite setup:
// WAL mode, synchronous=NORMAL, 5-second busy timeout, foreign keys on,
// one connection.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/backstock/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store persists collection configuration.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies
// pragmas and schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// One writer avoids SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert writes a collection's configuration, replacing its exclusion
// tags wholesale. Atomic: either the config row and the full new tag set
// land together, or nothing changes.
func (s *Store) Upsert(ctx context.Context, owner, collectionID string, st config.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_configs (owner, collection_id, enabled, sort_key, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner, collection_id) DO UPDATE SET
			enabled = excluded.enabled,
			sort_key = excluded.sort_key,
			updated_at = excluded.updated_at
	`, owner, collectionID, boolToInt(st.Enabled), string(st.SortKey), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert config row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM collection_exclusion_tags WHERE owner = ? AND collection_id = ?
	`, owner, collectionID)
	if err != nil {
		return fmt.Errorf("clear exclusion tags: %w", err)
	}

	for _, tag := range st.ExclusionTags {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO collection_exclusion_tags (owner, collection_id, tag)
			VALUES (?, ?, ?)
		`, owner, collectionID, tag)
		if err != nil {
			return fmt.Errorf("insert exclusion tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit config upsert: %w", err)
	}
	return nil
}

// Load reads one collection's configuration. The second return value is
// false when the collection has never been configured.
func (s *Store) Load(ctx context.Context, owner, collectionID string) (config.State, bool, error) {
	var (
		enabled int
		sortKey string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, sort_key FROM collection_configs
		WHERE owner = ? AND collection_id = ?
	`, owner, collectionID).Scan(&enabled, &sortKey)
	if err == sql.ErrNoRows {
		return config.State{}, false, nil
	}
	if err != nil {
		return config.State{}, false, fmt.Errorf("load config: %w", err)
	}

	tags, err := s.loadTags(ctx, owner, collectionID)
	if err != nil {
		return config.State{}, false, err
	}
	return config.New(enabled != 0, config.SortKey(sortKey), tags), true, nil
}

// LoadAll reads every configured collection for an owner, keyed by
// collection ID. Used to rebuild desired state on startup.
func (s *Store) LoadAll(ctx context.Context, owner string) (map[string]config.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, enabled, sort_key FROM collection_configs
		WHERE owner = ?
		ORDER BY collection_id
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("load configs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]config.State)
	for rows.Next() {
		var (
			collectionID string
			enabled      int
			sortKey      string
		)
		if err := rows.Scan(&collectionID, &enabled, &sortKey); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		out[collectionID] = config.New(enabled != 0, config.SortKey(sortKey), nil)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config rows: %w", err)
	}

	for collectionID, st := range out {
		tags, err := s.loadTags(ctx, owner, collectionID)
		if err != nil {
			return nil, err
		}
		st.ExclusionTags = tags
		out[collectionID] = st
	}
	return out, nil
}

func (s *Store) loadTags(ctx context.Context, owner, collectionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag FROM collection_exclusion_tags
		WHERE owner = ? AND collection_id = ?
		ORDER BY tag
	`, owner, collectionID)
	if err != nil {
		return nil, fmt.Errorf("load exclusion tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan exclusion tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exclusion tags: %w", err)
	}
	return tags, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

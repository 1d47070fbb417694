/*
Package sqlite provides a SQLite-backed card catalog.

PURPOSE:
  Implements presets.Catalog using SQLite so card configurations added
  through the API or a YAML catalog survive restarts. Event logs are never
  stored here: a session's events live in memory only.

KEY TABLES:
  cards: one row per card, the ladder stored as the factory JSON form
         (versioned, bumped on every save)

CONCURRENCY:
  Uses sync.RWMutex around the handle, like the in-memory catalog.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./cards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  presets.Seed(ctx, store)

SEE ALSO:
  - presets/catalog.go: Catalog interface, in-memory implementation
  - factory/card.go: JSON form of a card
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flagpoonage/points-viz/factory"
	"github.com/flagpoonage/points-viz/presets"
)

// Store implements presets.Catalog using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.CardFactory
}

var _ presets.Catalog = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, factory: factory.NewCardFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CARD STORE
// =============================================================================

// CardRecord is a stored card with its JSON config.
type CardRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Save inserts a card, or replaces it and bumps its version.
func (s *Store) Save(ctx context.Context, card presets.CardConfiguration) error {
	if err := card.Validate(); err != nil {
		return err
	}
	configJSON, err := s.factory.MarshalCard(card)
	if err != nil {
		return fmt.Errorf("encoding card %s: %w", card.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO cards (id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = cards.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query, card.ID, card.Name, configJSON, now, now)
	return err
}

// Get returns the card with id, presets.ErrCardNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (presets.CardConfiguration, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return presets.CardConfiguration{}, err
	}
	return s.factory.ParseCard(rec.ConfigJSON)
}

// GetRecord returns the raw stored row.
func (s *Store) GetRecord(ctx context.Context, id string) (*CardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c CardRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM cards WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Name, &c.ConfigJSON, &c.Version, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, presets.ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}

	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

// List returns all cards ordered by name.
func (s *Store) List(ctx context.Context) ([]presets.CardConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, config_json FROM cards ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []presets.CardConfiguration
	for rows.Next() {
		var id, configJSON string
		if err := rows.Scan(&id, &configJSON); err != nil {
			return nil, err
		}
		card, err := s.factory.ParseCard(configJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding card %s: %w", id, err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// Delete removes a card.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return presets.ErrCardNotFound
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM cards")
	return err
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/ircbot/internal/auth"
	"github.com/vovakirdan/ircbot/internal/store"
)

// Schema creates the tables the bot needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS ignores (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	mask       TEXT NOT NULL UNIQUE,
	added_by   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu       sync.Mutex
	patterns map[string]auth.Pattern
}

// New opens the database at dbPath, creating its directory and schema.
func New(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, patterns: make(map[string]auth.Pattern)}, nil
}

// Migrate applies Schema.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== IgnoreStore implementation ====

// AddIgnore inserts mask unless it is already listed.
func (s *SQLiteStore) AddIgnore(ctx context.Context, mask, addedBy string) (*store.Ignore, error) {
	mask = strings.TrimSpace(mask)
	if mask == "" {
		return nil, fmt.Errorf("add ignore: empty mask")
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ignores (mask, added_by) VALUES (?, ?)`, mask, addedBy)
	if err != nil {
		return nil, fmt.Errorf("insert ignore: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert ignore: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrIgnoreExists, mask)
	}

	var ig store.Ignore
	err = s.db.QueryRowContext(ctx,
		`SELECT id, mask, added_by, created_at FROM ignores WHERE mask = ?`, mask,
	).Scan(&ig.ID, &ig.Mask, &ig.AddedBy, &ig.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query ignore: %w", err)
	}
	return &ig, nil
}

// RemoveIgnore deletes mask.
func (s *SQLiteStore) RemoveIgnore(ctx context.Context, mask string) error {
	mask = strings.TrimSpace(mask)
	result, err := s.db.ExecContext(ctx, `DELETE FROM ignores WHERE mask = ?`, mask)
	if err != nil {
		return fmt.Errorf("delete ignore: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ignore: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrIgnoreNotFound, mask)
	}

	s.mu.Lock()
	delete(s.patterns, mask)
	s.mu.Unlock()
	return nil
}

// ListIgnores returns every mask in ascending order.
func (s *SQLiteStore) ListIgnores(ctx context.Context) ([]store.Ignore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mask, added_by, created_at FROM ignores ORDER BY mask ASC`)
	if err != nil {
		return nil, fmt.Errorf("query ignores: %w", err)
	}
	defer rows.Close()

	var out []store.Ignore
	for rows.Next() {
		var ig store.Ignore
		if err := rows.Scan(&ig.ID, &ig.Mask, &ig.AddedBy, &ig.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ignore: %w", err)
		}
		out = append(out, ig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ignores: %w", err)
	}
	return out, nil
}

// IsIgnored matches identity against every stored mask.
func (s *SQLiteStore) IsIgnored(ctx context.Context, identity string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mask FROM ignores`)
	if err != nil {
		return false, fmt.Errorf("query ignores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mask string
		if err := rows.Scan(&mask); err != nil {
			return false, fmt.Errorf("scan ignore: %w", err)
		}
		if s.pattern(mask).Match(identity) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate ignores: %w", err)
	}
	return false, nil
}

func (s *SQLiteStore) pattern(mask string) auth.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[mask]
	if !ok {
		p = auth.Compile(mask)
		s.patterns[mask] = p
	}
	return p
}

var _ store.Store = (*SQLiteStore)(nil)

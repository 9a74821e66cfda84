// Package fetchcache persists fetch results in a SQLite database.
package fetchcache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// DefaultTTL is how long entries for mutable inputs are served.
const DefaultTTL = time.Hour

// Cache implements ports.FetchCache on SQLite with WAL mode.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the lifetime of entries for mutable inputs.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Open creates or opens the cache database at path.
func Open(path string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "path", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "path", path)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "path", path)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, zerr.With(err, "path", path)
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, zerr.With(err, "path", path)
	}

	c := &Cache{db: db, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "pragma", pragma)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return zerr.Wrap(err, domain.ErrCacheFailed.Error())
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return zerr.Wrap(err, domain.ErrCacheFailed.Error())
	}
	return nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Key returns the cache key of a set of input attributes.
func Key(input domain.Attrs) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrCacheFailed.Error())
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// Lookup returns the entry stored for input. Entries for mutable inputs older than
// the TTL are treated as missing.
func (c *Cache) Lookup(ctx context.Context, input domain.Attrs) (*ports.CachedFetch, error) {
	key, err := Key(input)
	if err != nil {
		return nil, err
	}

	var (
		lockedJSON string
		entry      ports.CachedFetch
		created    int64
	)
	err = c.db.QueryRowContext(ctx,
		`SELECT locked, store_path, nar_hash, immutable, created_at FROM fetches WHERE key = ?`, key,
	).Scan(&lockedJSON, &entry.StorePath, &entry.NarHash, &entry.Immutable, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "key", key)
	}

	if !entry.Immutable && c.now().Sub(time.Unix(created, 0)) > c.ttl {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(lockedJSON), &entry.Locked); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "key", key)
	}
	return &entry, nil
}

// Add stores entry for input, replacing any previous entry.
func (c *Cache) Add(ctx context.Context, input domain.Attrs, entry ports.CachedFetch) error {
	key, err := Key(input)
	if err != nil {
		return err
	}
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheFailed.Error())
	}
	lockedJSON, err := json.Marshal(entry.Locked)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheFailed.Error())
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO fetches (key, input, locked, store_path, nar_hash, immutable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key, string(inputJSON), string(lockedJSON), entry.StorePath, entry.NarHash, entry.Immutable, c.now().Unix(),
	)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheFailed.Error()), "key", key)
	}
	return nil
}

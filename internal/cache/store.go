// Package cache persists minimized generic signatures keyed by a
// fingerprint of the input requirements, so repeated front-end queries for
// the same signature skip the rewrite system entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lunalang/generics/internal/decl"

	_ "modernc.org/sqlite"
)

// Entry is one cached minimization result.
type Entry struct {
	ID          string
	Fingerprint string
	Minimized   []decl.Requirement
	HadError    bool
	CreatedAt   time.Time
}

// Store is a SQLite-backed signature cache. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the cache database at path. ":memory:" gives an
// in-process cache.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening signature cache: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS signatures (
		fingerprint TEXT PRIMARY KEY,
		id          TEXT NOT NULL,
		minimized   JSON NOT NULL,
		had_error   INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("migrating signature cache: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Fingerprint derives the cache key for an input requirement list minimized
// against registry. The key covers the registry's declarations as well as
// the requirements: the same list minimizes differently under different
// conformances, superclasses or protocol bodies, so sessions over different
// registries must never share an entry. Requirements are rendered in a
// canonical order so their input order does not split the cache.
func Fingerprint(registry *decl.Registry, reqs []decl.Requirement) string {
	lines := make([]string, 0, len(reqs))
	for _, req := range reqs {
		lines = append(lines, req.String())
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range registry.CanonicalDeclarations() {
		h.Write([]byte("decl "))
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	for _, line := range lines {
		h.Write([]byte("req "))
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores a minimization result under the given fingerprint, replacing
// any previous entry.
func (s *Store) Put(ctx context.Context, fingerprint string, minimized []decl.Requirement, hadError bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := encodeRequirements(minimized)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO signatures (fingerprint, id, minimized, had_error, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (fingerprint) DO UPDATE SET
		minimized  = EXCLUDED.minimized,
		had_error  = EXCLUDED.had_error,
		created_at = EXCLUDED.created_at
	`
	_, err = s.db.ExecContext(ctx, query,
		fingerprint,
		uuid.NewString(),
		encoded,
		boolToInt(hadError),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing signature: %w", err)
	}
	return nil
}

// Get looks up a cached result. The second result is false on a miss.
func (s *Store) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, minimized, had_error, created_at
	FROM signatures
	WHERE fingerprint = ?
	`
	var entry Entry
	var encoded string
	var hadError int
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&entry.ID,
		&encoded,
		&hadError,
		&entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading signature: %w", err)
	}

	entry.Fingerprint = fingerprint
	entry.HadError = hadError != 0
	entry.Minimized, err = decodeRequirements(encoded)
	if err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

// Len reports the number of cached signatures.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signatures`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting signatures: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

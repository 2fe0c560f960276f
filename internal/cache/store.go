package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traewellingwidget/traewellingwidget/internal/storage"
)

// Entry is a cached value and when it was written.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
}

// Store persists cache entries by sanitized key.
type Store interface {
	// Get returns the entry for key regardless of its age, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put writes value under key, replacing any previous entry.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the entry for key. Missing entries are not an error.
	Delete(ctx context.Context, key string) error
}

// FileStore keeps one file per key below dir. The creation time of an entry
// is the file's modification time.
type FileStore struct {
	files storage.Store
	dir   string
}

// NewFileStore creates a file store in dir, for example profiles/0/cache.
func NewFileStore(ctx context.Context, files storage.Store, dir string) (*FileStore, error) {
	if err := files.MkdirAll(ctx, dir); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStore{files: files, dir: dir}, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*Entry, error) {
	name := path.Join(s.dir, key)

	if err := s.files.Sync(ctx, name); err != nil {
		return nil, fmt.Errorf("syncing cache entry: %w", err)
	}

	createdAt, err := s.files.ModTime(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	value, err := s.files.ReadFile(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	return &Entry{Value: value, CreatedAt: createdAt}, nil
}

func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	return s.files.WriteFile(ctx, path.Join(s.dir, key), value)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	return s.files.Remove(ctx, path.Join(s.dir, key))
}

// PostgresStore keeps the entries of one profile in the cache_entries table.
type PostgresStore struct {
	pool    *pgxpool.Pool
	profile string
	now     func() time.Time
}

// NewPostgresStore creates a store for profile.
func NewPostgresStore(pool *pgxpool.Pool, profile string) *PostgresStore {
	return &PostgresStore{pool: pool, profile: profile, now: time.Now}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	query := `
		SELECT value, created_at
		FROM cache_entries
		WHERE profile = $1 AND cache_key = $2
	`

	var e Entry
	err := s.pool.QueryRow(ctx, query, s.profile, key).Scan(&e.Value, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO cache_entries (profile, cache_key, value, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile, cache_key) DO UPDATE
		SET value = EXCLUDED.value,
		    created_at = EXCLUDED.created_at
	`
	_, err := s.pool.Exec(ctx, query, s.profile, key, value, s.now())
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE profile = $1 AND cache_key = $2`, s.profile, key)
	return err
}

// MemoryStore is an in-memory Store. This is intended for testing.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store stamping entries with now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]Entry), now: now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	e.Value = append([]byte(nil), e.Value...)
	return &e, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Value: append([]byte(nil), value...), CreatedAt: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Set stores an entry with an explicit creation time.
func (s *MemoryStore) Set(key string, value []byte, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Value: append([]byte(nil), value...), CreatedAt: createdAt}
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

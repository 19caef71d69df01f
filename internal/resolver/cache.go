package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jfmyers9/partyline/internal/party"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// Cache wraps a resolver and remembers its answers in SQLite. Only
// successful lookups are stored; misses and failures always reach the
// wrapped resolver.
type Cache struct {
	db     *sql.DB
	next   party.Resolver
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewCache opens (or creates) the cache database at dbPath. Entries older
// than ttl are ignored; ttl <= 0 keeps entries forever.
func NewCache(dbPath string, next party.Resolver, ttl time.Duration, logger zerolog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool size to 1 for in-memory databases to ensure consistency
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS tracks (
			key TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			length INTEGER NOT NULL,
			art TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_fetched_at ON tracks(fetched_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Cache{
		db:     db,
		next:   next,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "resolver_cache").Logger(),
	}, nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// ResolveByQuery serves query from the cache or the wrapped resolver.
func (c *Cache) ResolveByQuery(ctx context.Context, query string) (party.Track, error) {
	return c.resolve(ctx, queryKey(query), func() (party.Track, error) {
		return c.next.ResolveByQuery(ctx, query)
	})
}

// ResolveByID serves id from the cache or the wrapped resolver.
func (c *Cache) ResolveByID(ctx context.Context, id string) (party.Track, error) {
	return c.resolve(ctx, idKey(id), func() (party.Track, error) {
		return c.next.ResolveByID(ctx, id)
	})
}

func (c *Cache) resolve(ctx context.Context, key string, fetch func() (party.Track, error)) (party.Track, error) {
	t, ok, err := c.Get(ctx, key)
	if err != nil {
		// A broken cache should not break lookups.
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	} else if ok {
		c.logger.Debug().Str("key", key).Msg("Cache hit")
		return t, nil
	}

	t, err = fetch()
	if err != nil {
		return party.Track{}, err
	}

	if err := c.Put(ctx, key, t); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}

	return t, nil
}

// Get returns the cached track for key if present and fresh.
func (c *Cache) Get(ctx context.Context, key string) (party.Track, bool, error) {
	query := `
		SELECT url, title, artist, length, art, fetched_at
		FROM tracks
		WHERE key = ?
	`

	var t party.Track
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx, query, key).Scan(&t.URL, &t.Title, &t.Artist, &t.Length, &t.Art, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return party.Track{}, false, nil
	}
	if err != nil {
		return party.Track{}, false, fmt.Errorf("failed to query cached track: %w", err)
	}

	if c.ttl > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl {
		return party.Track{}, false, nil
	}

	return t, true, nil
}

// Put stores t under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, t party.Track) error {
	query := `
		INSERT INTO tracks (key, url, title, artist, length, art, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			artist = excluded.artist,
			length = excluded.length,
			art = excluded.art,
			fetched_at = excluded.fetched_at
	`

	_, err := c.db.ExecContext(ctx, query, key, t.URL, t.Title, t.Artist, t.Length, t.Art, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store track: %w", err)
	}

	return nil
}

// Cleanup removes entries older than maxAge and returns how many it removed.
func (c *Cache) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := c.now().Add(-maxAge).Unix()

	result, err := c.db.ExecContext(ctx, "DELETE FROM tracks WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup cached tracks: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of cached entries.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cached tracks: %w", err)
	}
	return count, nil
}

func queryKey(query string) string {
	return "q:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func idKey(id string) string {
	return "id:" + strings.TrimSpace(id)
}

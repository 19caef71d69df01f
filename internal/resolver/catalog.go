package resolver

import (
	"context"
	"strings"
	"sync"

	"github.com/jfmyers9/partyline/internal/party"
)

// Entry is one catalog track with the id it can be added by.
type Entry struct {
	ID          string `mapstructure:"id"`
	party.Track `mapstructure:",squash"`
}

// Catalog resolves tracks from a fixed in-memory list. Queries match a
// case-insensitive substring of the title or "artist - title".
type Catalog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewCatalog creates a catalog holding entries.
func NewCatalog(entries ...Entry) *Catalog {
	c := &Catalog{}
	for _, e := range entries {
		c.Add(e)
	}
	return c
}

// Add appends an entry. Entries are searched in insertion order.
func (c *Catalog) Add(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ResolveByQuery returns the first entry matching query.
func (c *Catalog) ResolveByQuery(_ context.Context, query string) (party.Track, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return party.Track{}, party.ErrTrackNotFound
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		full := strings.ToLower(e.Track.Artist + " - " + e.Track.Title)
		if strings.Contains(full, q) {
			return e.Track, nil
		}
	}

	return party.Track{}, party.ErrTrackNotFound
}

// ResolveByID returns the entry with the given id.
func (c *Catalog) ResolveByID(_ context.Context, id string) (party.Track, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return party.Track{}, party.ErrInvalidTrackID
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if e.ID == id {
			return e.Track, nil
		}
	}

	return party.Track{}, party.ErrTrackNotFound
}

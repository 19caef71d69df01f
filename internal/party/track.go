package party

import (
	"context"
	"time"
)

// Track is a queued media item. Tracks are never modified once queued.
type Track struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Length int    `json:"length"` // seconds
	Art    string `json:"art"`
}

// Duration returns the track length as a time.Duration.
func (t Track) Duration() time.Duration {
	return time.Duration(t.Length) * time.Second
}

// Resolver turns a search query or an external identifier into track
// metadata. Implementations return ErrTrackNotFound when nothing matches and
// ErrInvalidTrackID when the identifier is malformed.
type Resolver interface {
	ResolveByQuery(ctx context.Context, query string) (Track, error)
	ResolveByID(ctx context.Context, id string) (Track, error)
}

// Member is the public profile of a connected participant.
type Member struct {
	ID         string  `json:"id"`
	Name       *string `json:"name,omitempty"`
	Identifier *string `json:"identifier,omitempty"`
	Art        *string `json:"art,omitempty"`
}

// Profile carries a profile update. A nil field clears the attribute.
type Profile struct {
	Name       *string
	Identifier *string
	Art        *string
}

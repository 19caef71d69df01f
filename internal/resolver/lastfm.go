package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jfmyers9/partyline/internal/party"
	"github.com/jfmyers9/partyline/pkg/lastfm"
)

// LastFM resolves tracks through the Last.fm API. Track ids are MusicBrainz
// recording ids.
type LastFM struct {
	client *lastfm.Client
}

// NewLastFM creates a resolver backed by client.
func NewLastFM(client *lastfm.Client) *LastFM {
	return &LastFM{client: client}
}

// ResolveByQuery returns the best search match for query.
func (l *LastFM) ResolveByQuery(ctx context.Context, query string) (party.Track, error) {
	matches, err := l.client.Track().Search(ctx, query, 1)
	if err != nil {
		return party.Track{}, mapError(err)
	}

	m := matches[0]
	info, err := l.client.Track().GetInfo(ctx, lastfm.TrackQuery{
		Artist: m.Artist,
		Track:  m.Name,
	})
	if err != nil {
		if !lastfm.IsNotFound(err) {
			return party.Track{}, mapError(err)
		}
		// Some search hits have no detail page; fall back to the match
		// without a duration.
		return party.Track{
			URL:    m.URL,
			Title:  m.Name,
			Artist: m.Artist,
			Art:    m.Images.Largest(),
		}, nil
	}

	return toTrack(info, m.Images.Largest()), nil
}

// ResolveByID looks a track up by MusicBrainz id.
func (l *LastFM) ResolveByID(ctx context.Context, id string) (party.Track, error) {
	mbid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return party.Track{}, fmt.Errorf("%w: %q is not a MusicBrainz id", party.ErrInvalidTrackID, id)
	}

	info, err := l.client.Track().GetInfo(ctx, lastfm.TrackQuery{MBID: mbid.String()})
	if err != nil {
		return party.Track{}, mapError(err)
	}

	return toTrack(info, ""), nil
}

func toTrack(info *lastfm.TrackInfo, fallbackArt string) party.Track {
	art := info.Images.Largest()
	if art == "" {
		art = fallbackArt
	}

	return party.Track{
		URL:    info.URL,
		Title:  info.Name,
		Artist: info.Artist,
		Length: int(info.Duration.Seconds()),
		Art:    art,
	}
}

func mapError(err error) error {
	if lastfm.IsNotFound(err) {
		return fmt.Errorf("%w: %v", party.ErrTrackNotFound, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("last.fm lookup failed: %w", err)
}

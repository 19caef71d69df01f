package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TrackService provides track metadata operations for the Last.fm API.
type TrackService struct {
	client *Client
}

type searchResponse struct {
	XMLName xml.Name     `xml:"results"`
	Tracks  []TrackMatch `xml:"trackmatches>track"`
}

type infoResponse struct {
	XMLName  xml.Name `xml:"track"`
	Name     string   `xml:"name"`
	MBID     string   `xml:"mbid"`
	URL      string   `xml:"url"`
	Duration string   `xml:"duration"` // milliseconds
	Artist   struct {
		Name string `xml:"name"`
	} `xml:"artist"`
	Album struct {
		Title  string `xml:"title"`
		Images Images `xml:"image"`
	} `xml:"album"`
}

// Search runs track.search and returns up to limit matches, best first.
//
// Returns ErrNoMatch when nothing matched.
//
// Example:
//
//	matches, err := client.Track().Search(ctx, "believe", 5)
//	if err != nil {
//	    log.Printf("search failed: %v", err)
//	}
func (s *TrackService) Search(ctx context.Context, query string, limit int) ([]TrackMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("lastfm: search query is required")
	}

	params := map[string]string{
		"track": query,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	inner, err := s.client.call(ctx, "track.search", params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := xml.Unmarshal(inner, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse search response: %w", err)
	}

	if len(resp.Tracks) == 0 {
		return nil, ErrNoMatch
	}
	if limit > 0 && len(resp.Tracks) > limit {
		resp.Tracks = resp.Tracks[:limit]
	}

	return resp.Tracks, nil
}

// GetInfo runs track.getInfo for a track named by MBID, or by artist and
// track name when MBID is empty.
//
// Example:
//
//	info, err := client.Track().GetInfo(ctx, lastfm.TrackQuery{
//	    Artist: "Cher",
//	    Track:  "Believe",
//	})
func (s *TrackService) GetInfo(ctx context.Context, q TrackQuery) (*TrackInfo, error) {
	params := map[string]string{
		"autocorrect": "1",
	}

	switch {
	case q.MBID != "":
		params["mbid"] = q.MBID
	case q.Artist != "" && q.Track != "":
		params["artist"] = q.Artist
		params["track"] = q.Track
	default:
		return nil, fmt.Errorf("lastfm: track lookup needs an mbid or artist and track")
	}

	inner, err := s.client.call(ctx, "track.getInfo", params)
	if err != nil {
		return nil, err
	}

	var resp infoResponse
	if err := xml.Unmarshal(inner, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse track info response: %w", err)
	}

	info := &TrackInfo{
		Name:   resp.Name,
		Artist: resp.Artist.Name,
		Album:  resp.Album.Title,
		URL:    resp.URL,
		MBID:   resp.MBID,
		Images: resp.Album.Images,
	}

	if ms, err := strconv.ParseInt(strings.TrimSpace(resp.Duration), 10, 64); err == nil && ms > 0 {
		info.Duration = time.Duration(ms) * time.Millisecond
	}

	return info, nil
}

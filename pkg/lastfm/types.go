package lastfm

import (
	"time"
)

// Image is an artwork URL at a named size.
type Image struct {
	Size string `xml:"size,attr"` // small, medium, large, extralarge, mega
	URL  string `xml:",chardata"`
}

// Images is a set of artwork sizes as returned by the API.
type Images []Image

// imageSizes lists sizes from largest to smallest.
var imageSizes = []string{"mega", "extralarge", "large", "medium", "small"}

// Largest returns the URL of the largest non-empty image, or "".
func (imgs Images) Largest() string {
	for _, size := range imageSizes {
		for _, img := range imgs {
			if img.Size == size && img.URL != "" {
				return img.URL
			}
		}
	}
	for _, img := range imgs {
		if img.URL != "" {
			return img.URL
		}
	}
	return ""
}

// TrackMatch is one result of track.search.
type TrackMatch struct {
	Name      string `xml:"name"`
	Artist    string `xml:"artist"`
	URL       string `xml:"url"`
	MBID      string `xml:"mbid"`
	Listeners int64  `xml:"listeners"`
	Images    Images `xml:"image"`
}

// TrackQuery identifies a track for track.getInfo, either by MusicBrainz id
// or by artist and track name.
type TrackQuery struct {
	MBID   string
	Artist string
	Track  string
}

// TrackInfo is the result of track.getInfo.
type TrackInfo struct {
	Name     string
	Artist   string
	Album    string
	URL      string
	MBID     string
	Duration time.Duration
	Images   Images // album artwork
}

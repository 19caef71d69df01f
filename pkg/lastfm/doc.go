// Package lastfm provides a client library for the read-only track
// metadata methods of the Last.fm API 2.0.
//
// # Overview
//
// The client covers track search and track lookup, which is everything
// needed to turn free-text queries or MusicBrainz ids into title, artist,
// duration and artwork. Requests carry a context, failed calls are retried
// with exponential backoff when the failure is temporary, and API failures
// are reported as *Error values carrying the Last.fm error code.
//
// # Quick Start
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey: "your-api-key",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	matches, err := client.Track().Search(ctx, "believe", 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	info, err := client.Track().GetInfo(ctx, lastfm.TrackQuery{
//	    Artist: matches[0].Artist,
//	    Track:  matches[0].Name,
//	})
//
// # Errors
//
// Check for a specific API failure with errors.Is:
//
//	if errors.Is(err, &lastfm.Error{Code: lastfm.ErrCodeInvalidParameters}) {
//	    // Last.fm reports unknown tracks as invalid parameters
//	}
package lastfm

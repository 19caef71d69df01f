package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jfmyers9/partyline/internal/party"
	"github.com/jfmyers9/partyline/pkg/lastfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const believeMBID = "32ca187e-ee25-4f18-b7d0-3b6713f24635"

func newTestLastFM(t *testing.T, handler http.HandlerFunc) *LastFM {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := lastfm.NewClient(lastfm.Config{APIKey: "k", BaseURL: server.URL + "/", MaxRetries: 1})
	require.NoError(t, err)
	return NewLastFM(client)
}

func fakeLastFM(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("method") {
	case "track.search":
		if q.Get("track") == "believe" {
			_, _ = w.Write([]byte(`<lfm status="ok"><results><trackmatches><track>
				<name>Believe</name><artist>Cher</artist>
				<url>https://www.last.fm/music/Cher/_/Believe</url>
				<image size="large">https://img/search.png</image>
			</track></trackmatches></results></lfm>`))
			return
		}
		_, _ = w.Write([]byte(`<lfm status="ok"><results><trackmatches></trackmatches></results></lfm>`))
	case "track.getInfo":
		if q.Get("mbid") == believeMBID || (q.Get("artist") == "Cher" && q.Get("track") == "Believe") {
			_, _ = w.Write([]byte(`<lfm status="ok"><track>
				<name>Believe</name><mbid>` + believeMBID + `</mbid>
				<url>https://www.last.fm/music/Cher/_/Believe</url>
				<duration>239000</duration>
				<artist><name>Cher</name></artist>
				<album><title>Believe</title><image size="extralarge">https://img/album.png</image></album>
			</track></lfm>`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<lfm status="failed"><error code="6">Track not found</error></lfm>`))
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<lfm status="failed"><error code="3">Invalid Method</error></lfm>`))
	}
}

func TestLastFMResolveByQuery(t *testing.T) {
	r := newTestLastFM(t, fakeLastFM)
	ctx := context.Background()

	got, err := r.ResolveByQuery(ctx, "believe")
	require.NoError(t, err)
	assert.Equal(t, party.Track{
		URL:    "https://www.last.fm/music/Cher/_/Believe",
		Title:  "Believe",
		Artist: "Cher",
		Length: 239,
		Art:    "https://img/album.png",
	}, got)

	_, err = r.ResolveByQuery(ctx, "nothing")
	assert.ErrorIs(t, err, party.ErrTrackNotFound)
}

func TestLastFMResolveByID(t *testing.T) {
	r := newTestLastFM(t, fakeLastFM)
	ctx := context.Background()

	got, err := r.ResolveByID(ctx, believeMBID)
	require.NoError(t, err)
	assert.Equal(t, 239, got.Length)

	_, err = r.ResolveByID(ctx, "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, party.ErrInvalidTrackID)

	_, err = r.ResolveByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, party.ErrTrackNotFound)
}

func TestLastFMOutage(t *testing.T) {
	r := newTestLastFM(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := r.ResolveByQuery(context.Background(), "believe")
	require.Error(t, err)
	kind, known := party.KindOf(err)
	assert.Equal(t, party.KindInternal, kind)
	assert.False(t, known)
}

package autocomplete

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zmb3/spotify/v2"
)

type fakeSpotify struct{}

func (fakeSpotify) Search(context.Context, string, int) ([]spotify.SimpleAlbum, []spotify.FullTrack, error) {
	album := spotify.SimpleAlbum{Name: "Album", ID: "alb1", Artists: []spotify.SimpleArtist{{Name: "Band"}}}
	track := spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{Name: "Song", ID: "trk1"}}
	return []spotify.SimpleAlbum{album}, []spotify.FullTrack{track}, nil
}

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("ds") != "yt" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		io.WriteString(w, `["lofi",["lofi hip hop","lofi girl","lofi rain","`+strings.Repeat("x", 120)+`"]]`)
	}))
}

func TestSuggestYouTube(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	defer srv.Close()

	s := New(srv.URL, nil)
	got := s.Suggest(context.Background(), "lofi", 10)
	if len(got) != 3 {
		t.Fatalf("choices = %d, want 3 (overlong value dropped)", len(got))
	}
	if got[0].Name != "YouTube: lofi hip hop" || got[0].Value != "lofi hip hop" {
		t.Errorf("first = %+v", got[0])
	}

	s.Suggest(context.Background(), "LOFI", 10)
	if hits.Load() != 1 {
		t.Errorf("hits = %d, second call not cached", hits.Load())
	}
	if s.Suggest(context.Background(), "  ", 10) != nil {
		t.Error("blank query produced choices")
	}
}

func TestSuggestMakesRoomForSpotify(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	defer srv.Close()

	got := New(srv.URL, fakeSpotify{}).Suggest(context.Background(), "lofi", 3)
	if len(got) != 3 {
		t.Fatalf("choices = %d, want 3", len(got))
	}
	if got[1].Value != "spotify:album:alb1" || got[2].Value != "spotify:track:trk1" {
		t.Errorf("choices = %v, %v, %v", got[0].Value, got[1].Value, got[2].Value)
	}
	if got[1].Name != "Spotify: 💿 Album - Band" {
		t.Errorf("album name = %q", got[1].Name)
	}
}

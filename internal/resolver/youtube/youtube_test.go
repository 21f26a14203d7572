package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"audiobot/internal/fetch"
)

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"PT3M30S", 210000},
		{"PT1H2M3S", 3723000},
		{"PT45S", 45000},
		{"PT0S", 0},
		{"PT1H", 3600000},
		{"PT2M", 120000},
		{"pt3m30s", 210000},
		{"", 0},
		{"garbage", 0},
		{"P1D", 0},
	}

	for _, tt := range tests {
		if got := ParseISODuration(tt.input); got != tt.want {
			t.Errorf("ParseISODuration(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func newTestResolver(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	f := fetch.New(fetch.Options{}, log.New(io.Discard))
	c, err := New("test-key", f)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	c.apiURL = server.URL
	return c
}

func TestGetVideoMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if q.Get("id") != "dQw4w9WgXcQ" {
			t.Errorf("id param = %q", q.Get("id"))
		}
		json.NewEncoder(w).Encode(videosResponse{
			Items: []videoItem{{
				Snippet: snippet{
					Title:        "Never Gonna Give You Up",
					ChannelTitle: "Rick Astley",
					Thumbnails: thumbnails{
						Default: thumbnail{URL: "https://i.ytimg.com/default.jpg"},
						High:    thumbnail{URL: "https://i.ytimg.com/high.jpg"},
						MaxRes:  thumbnail{URL: "https://i.ytimg.com/maxres.jpg"},
					},
				},
				ContentDetails: contentDetails{Duration: "PT3M33S"},
			}},
		})
	}))
	defer server.Close()

	c := newTestResolver(t, server)

	meta, err := c.GetVideoMetadata(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Title != "Never Gonna Give You Up" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Artist != "Rick Astley" {
		t.Errorf("artist = %q", meta.Artist)
	}
	if meta.DurationMS != 213000 {
		t.Errorf("duration = %d, want 213000", meta.DurationMS)
	}
	if meta.CoverURL != "https://i.ytimg.com/maxres.jpg" {
		t.Errorf("cover = %q, want maxres thumbnail", meta.CoverURL)
	}
	if meta.PlatformID != "dQw4w9WgXcQ" {
		t.Errorf("platform id = %q", meta.PlatformID)
	}
}

func TestGetVideoMetadataNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(videosResponse{})
	}))
	defer server.Close()

	c := newTestResolver(t, server)

	_, err := c.GetVideoMetadata(context.Background(), "missing-vid")
	if !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("error = %v, want ErrVideoNotFound", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	f := fetch.New(fetch.Options{}, log.New(io.Discard))
	if _, err := New("", f); err == nil {
		t.Fatal("New() accepted empty API key")
	}
}

func TestThumbnailFallback(t *testing.T) {
	got := bestThumbnail(thumbnails{
		Default: thumbnail{URL: "d"},
		High:    thumbnail{URL: "h"},
	})
	if got != "h" {
		t.Errorf("thumbnail = %q, want high variant", got)
	}
	got = bestThumbnail(thumbnails{Default: thumbnail{URL: "d"}})
	if got != "d" {
		t.Errorf("thumbnail = %q, want default variant", got)
	}
}

package spotify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"audiobot/internal/fetch"
)

func newTestServer(t *testing.T, tokenCalls *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenCalls != nil {
			*tokenCalls++
		}
		if r.Method != http.MethodPost {
			t.Errorf("token: expected POST, got %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-id" || pass != "test-secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("/v1/tracks/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(trackResponse{
			ID:         "4cOdK2wGLETKBW3PvgPWqT",
			Name:       "Blinding Lights",
			Artists:    []artist{{Name: "The Weeknd"}},
			DurationMS: 200040,
			Album: albumInfo{
				Name:   "After Hours",
				Images: []image{{URL: "https://i.scdn.co/image/test", Width: 640, Height: 640}},
			},
		})
	})

	return httptest.NewServer(mux)
}

func newTestResolver(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	f := fetch.New(fetch.Options{}, log.New(io.Discard))
	c, err := newWithURLs("test-id", "test-secret", f, server.URL+"/api/token", server.URL+"/v1")
	if err != nil {
		t.Fatalf("newWithURLs() error: %v", err)
	}
	return c
}

func TestGetTrackMetadata(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	c := newTestResolver(t, server)

	meta, err := c.GetTrackMetadata(context.Background(), "4cOdK2wGLETKBW3PvgPWqT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if meta.Title != "Blinding Lights" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Artist != "The Weeknd" {
		t.Errorf("artist = %q", meta.Artist)
	}
	if meta.Album != "After Hours" {
		t.Errorf("album = %q", meta.Album)
	}
	if meta.DurationMS != 200040 {
		t.Errorf("duration = %d", meta.DurationMS)
	}
	if meta.CoverURL != "https://i.scdn.co/image/test" {
		t.Errorf("cover = %q", meta.CoverURL)
	}
	if meta.PlatformID != "4cOdK2wGLETKBW3PvgPWqT" {
		t.Errorf("platform id = %q", meta.PlatformID)
	}
	if meta.DisplayName() != "The Weeknd - Blinding Lights" {
		t.Errorf("display name = %q", meta.DisplayName())
	}
}

func TestTokenReused(t *testing.T) {
	var tokenCalls int
	server := newTestServer(t, &tokenCalls)
	defer server.Close()

	c := newTestResolver(t, server)

	// Two metadata fetches share one token exchange.
	for i := 0; i < 2; i++ {
		if _, err := c.GetTrackMetadata(context.Background(), "4cOdK2wGLETKBW3PvgPWqT"); err != nil {
			t.Fatalf("fetch %d: %v", i+1, err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token calls = %d, want 1", tokenCalls)
	}
}

func TestMissingCredentials(t *testing.T) {
	f := fetch.New(fetch.Options{}, log.New(io.Discard))
	if _, err := New("", "", f); err == nil {
		t.Fatal("New() accepted empty credentials")
	}
	if _, err := New("id-only", "", f); err == nil {
		t.Fatal("New() accepted missing secret")
	}
}

func TestMultipleArtistsJoined(t *testing.T) {
	meta := parseTrack(trackResponse{
		Name:    "Song",
		Artists: []artist{{Name: "A"}, {Name: "B"}, {Name: "C"}},
	})
	if meta.Artist != "A, B, C" {
		t.Errorf("artist = %q, want comma-joined list", meta.Artist)
	}
}

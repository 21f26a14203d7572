package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"audiobot/internal/extractor"
	"audiobot/internal/pipeline"
	"audiobot/internal/ratelimit"
	"audiobot/internal/resolver/youtube"
	"audiobot/internal/track"
	"audiobot/internal/transcode"
	"audiobot/internal/urlcheck"
)

type fakeProcessor struct {
	result pipeline.Result
	err    error
}

func (f *fakeProcessor) Process(ctx context.Context, rawURL string) (pipeline.Result, error) {
	return f.result, f.err
}

func newTestServer(t *testing.T, pipe Processor, cacheDir string) *Server {
	t.Helper()
	limiter := ratelimit.New(3, time.Minute)
	return NewServer(context.Background(), NewRequestManager(), limiter, pipe, cacheDir, log.New(io.Discard))
}

func postTrack(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/tracks", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestSubmitAccepted(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, t.TempDir())

	w := postTrack(t, srv, `{"user_id": 1, "text": "https://youtu.be/dQw4w9WgXcQ"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	var resp RequestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ID == "" {
		t.Error("response missing request ID")
	}
	if resp.Status != StatusPending && resp.Status != StatusRunning && resp.Status != StatusCompleted {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestSubmitInvalidURL(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, t.TempDir())

	w := postTrack(t, srv, `{"user_id": 1, "text": "https://evil.example/track/x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSubmitEmptyText(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, t.TempDir())

	w := postTrack(t, srv, `{"user_id": 1, "text": "  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, t.TempDir())

	for i := 0; i < 3; i++ {
		if w := postTrack(t, srv, `{"user_id": 7, "text": "https://youtu.be/dQw4w9WgXcQ"}`); w.Code != http.StatusAccepted {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}

	w := postTrack(t, srv, `{"user_id": 7, "text": "https://youtu.be/dQw4w9WgXcQ"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RetryAfter <= 0 {
		t.Errorf("retry_after_seconds = %f, want > 0", resp.RetryAfter)
	}

	// Another user is unaffected.
	if w := postTrack(t, srv, `{"user_id": 8, "text": "https://youtu.be/dQw4w9WgXcQ"}`); w.Code != http.StatusAccepted {
		t.Errorf("other user status = %d, want 202", w.Code)
	}
}

func TestRequestCompletes(t *testing.T) {
	pipe := &fakeProcessor{result: pipeline.Result{
		Path: "/cache/" + strings.Repeat("ab", 32) + ".mp3",
		Meta: track.Metadata{Title: "Blinding Lights", Artist: "The Weeknd", Album: "After Hours"},
	}}
	srv := newTestServer(t, pipe, t.TempDir())

	w := postTrack(t, srv, `{"user_id": 1, "text": "https://youtu.be/dQw4w9WgXcQ"}`)
	var resp RequestResponse
	json.NewDecoder(w.Body).Decode(&resp)

	final := waitForDone(t, srv, resp.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %q, error = %q", final.Status, final.Error)
	}
	if final.Key != strings.Repeat("ab", 32) {
		t.Errorf("key = %q", final.Key)
	}
	if final.Caption != "The Weeknd - Blinding Lights\nAlbum: After Hours" {
		t.Errorf("caption = %q", final.Caption)
	}
}

func TestRequestFailureIsMapped(t *testing.T) {
	pipe := &fakeProcessor{err: &extractor.Error{Kind: extractor.KindPrivate}}
	srv := newTestServer(t, pipe, t.TempDir())

	w := postTrack(t, srv, `{"user_id": 1, "text": "https://youtu.be/dQw4w9WgXcQ"}`)
	var resp RequestResponse
	json.NewDecoder(w.Body).Decode(&resp)

	final := waitForDone(t, srv, resp.ID)
	if final.Status != StatusFailed {
		t.Fatalf("status = %q", final.Status)
	}
	if final.Error != "content is private and cannot be downloaded" {
		t.Errorf("error = %q", final.Error)
	}
}

func waitForDone(t *testing.T, srv *Server, id string) *Request {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		req, err := srv.reqMgr.Get(id)
		if err != nil {
			t.Fatalf("request vanished: %v", err)
		}
		if req.Status == StatusCompleted || req.Status == StatusFailed {
			return req
		}
		select {
		case <-deadline:
			t.Fatalf("request never finished, status = %q", req.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTrackFileServed(t *testing.T) {
	dir := t.TempDir()
	key := strings.Repeat("cd", 32)
	if err := os.WriteFile(filepath.Join(dir, key+".mp3"), []byte("mp3 payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, &fakeProcessor{}, dir)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/"+key+"/file", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "mp3 payload" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
}

func TestTrackFileRejectsBadKey(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, t.TempDir())

	for _, key := range []string{"short", strings.Repeat("Z", 64), strings.Repeat("a", 63)} {
		req := httptest.NewRequest(http.MethodGet, "/api/tracks/"+key+"/file", nil)
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("key %q: status = %d, want 400", key, w.Code)
		}
	}
}

func TestWelcome(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/welcome", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Spotify or YouTube") {
		t.Errorf("welcome body = %q", w.Body.String())
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &urlcheck.ValidationError{Reason: "URL too long"}, "URL too long"},
		{"geo blocked", &extractor.Error{Kind: extractor.KindGeoBlocked}, "content is geo-blocked in the server's region"},
		{"too large", &transcode.FileTooLargeError{Size: 100, Limit: 50}, "this track is too large to process"},
		{"processing", &transcode.ProcessingError{Stderr: "internal detail"}, "audio processing failed, try another track"},
		{"not found", youtube.ErrVideoNotFound, "video not found"},
		{"unknown", errors.New("dial tcp: connection refused"), "something went wrong, please try again later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userMessage(tt.err); got != tt.want {
				t.Errorf("userMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserMessageHidesInternals(t *testing.T) {
	got := userMessage(&transcode.ProcessingError{Stderr: "/tmp/secret/path: invalid data"})
	if strings.Contains(got, "/tmp/secret") {
		t.Errorf("internal detail leaked into user message: %q", got)
	}
}

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"audiobot/internal/extractor"
	"audiobot/internal/ratelimit"
	"audiobot/internal/resolver/youtube"
	"audiobot/internal/track"
	"audiobot/internal/transcode"
	"audiobot/internal/urlcheck"
)

const welcomeMessage = "Send me a Spotify or YouTube track link and I'll reply with an MP3.\n" +
	"Supported links: open.spotify.com/track/..., youtube.com/watch?v=..., youtu.be/..."

// cacheKeyRe matches exactly a sha256 hex digest; anything else in the file
// path is rejected before it can touch the filesystem.
var cacheKeyRe = regexp.MustCompile(`^[a-f0-9]{64}$`)

type TrackRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type RequestResponse struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Status      RequestStatus `json:"status"`
	Key         string        `json:"key,omitempty"`
	Caption     string        `json:"caption,omitempty"`
	FileURL     string        `json:"file_url,omitempty"`
	FromCache   bool          `json:"from_cache,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   string        `json:"created_at"`
	StartedAt   *string       `json:"started_at,omitempty"`
	CompletedAt *string       `json:"completed_at,omitempty"`
}

type errorResponse struct {
	Error      string  `json:"error"`
	RetryAfter float64 `json:"retry_after_seconds,omitempty"`
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}

	// Rate limit first: an over-limit user gets no validation work at all.
	if err := s.limiter.Check(req.UserID); err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:      "too many requests, slow down",
				RetryAfter: exceeded.RetryAfter.Seconds(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	url := strings.TrimSpace(req.Text)
	if _, _, err := urlcheck.Classify(url); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: userMessage(err)})
		return
	}

	reqEntry := s.reqMgr.Create(req.UserID, url)
	s.logger.Info("accepted track request", "request", reqEntry.ID, "user", req.UserID)

	go s.process(reqEntry)

	writeJSON(w, http.StatusAccepted, s.toResponse(reqEntry))
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Request ID required", http.StatusBadRequest)
		return
	}

	req, err := s.reqMgr.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(req))
}

// handleTrackFile serves a finished artifact: GET /api/tracks/{key}/file
func (s *Server) handleTrackFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "file" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	key := parts[0]
	if !cacheKeyRe.MatchString(key) {
		http.Error(w, "Invalid track key", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, filepath.Join(s.cacheDir, key+".mp3"))
}

func (s *Server) process(req *Request) {
	s.reqMgr.Update(req.ID, func(r *Request) {
		r.Status = StatusRunning
	})

	res, err := s.pipe.Process(s.ctx, req.URL)
	if err != nil {
		// Raw error detail stays in the log; the user sees one short
		// category message.
		s.logger.Error("track request failed", "request", req.ID, "error", err)
		s.reqMgr.Update(req.ID, func(r *Request) {
			r.Status = StatusFailed
			r.Error = userMessage(err)
		})
		return
	}

	key := strings.TrimSuffix(filepath.Base(res.Path), ".mp3")
	s.reqMgr.Update(req.ID, func(r *Request) {
		r.Status = StatusCompleted
		r.Key = key
		r.Caption = caption(res.Meta)
		r.FromCache = res.FromCache
	})
	s.logger.Info("track request completed", "request", req.ID, "cached", res.FromCache)
}

// userMessage maps internal failures to one short user-facing message per
// category. Validation and extraction errors already carry safe wording.
func userMessage(err error) string {
	var vErr *urlcheck.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	var exErr *extractor.Error
	if errors.As(err, &exErr) {
		return exErr.Error()
	}
	var sizeErr *transcode.FileTooLargeError
	if errors.As(err, &sizeErr) {
		return "this track is too large to process"
	}
	var procErr *transcode.ProcessingError
	if errors.As(err, &procErr) {
		return "audio processing failed, try another track"
	}
	if errors.Is(err, youtube.ErrVideoNotFound) {
		return "video not found"
	}
	return "something went wrong, please try again later"
}

func caption(meta track.Metadata) string {
	c := meta.DisplayName()
	if meta.Album != "" {
		c += "\nAlbum: " + meta.Album
	}
	return c
}

func (s *Server) toResponse(req *Request) *RequestResponse {
	resp := &RequestResponse{
		ID:        req.ID,
		URL:       req.URL,
		Status:    req.Status,
		Key:       req.Key,
		Caption:   req.Caption,
		FromCache: req.FromCache,
		Error:     req.Error,
		CreatedAt: req.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	if req.Key != "" {
		resp.FileURL = "/api/tracks/" + req.Key + "/file"
	}
	if req.StartedAt != nil {
		started := req.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &started
	}
	if req.CompletedAt != nil {
		completed := req.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &completed
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

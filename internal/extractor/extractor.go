// Package extractor wraps yt-dlp for audio extraction and for resolving a
// playable source from a free-text search.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"audiobot/internal/tool"
)

const searchTimeout = 30 * time.Second

// ErrorKind classifies a download failure.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindPrivate
	KindGeoBlocked
	KindTooLarge
	KindNotFound
)

// Error is a typed download failure.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPrivate:
		return "content is private and cannot be downloaded"
	case KindGeoBlocked:
		return "content is geo-blocked in the server's region"
	case KindTooLarge:
		return "source file is too large"
	case KindNotFound:
		return "no downloadable source found"
	default:
		return "download failed: " + e.Detail
	}
}

// stderrPatterns maps known yt-dlp stderr fragments to error kinds. Matching
// on tool output wording is fragile by nature; an unmatched failure falls
// through to the generic kind. Order matters: more specific fragments first.
var stderrPatterns = []struct {
	fragment string
	kind     ErrorKind
}{
	{"private video", KindPrivate},
	{"private", KindPrivate},
	{"not available in your country", KindGeoBlocked},
	{"geo", KindGeoBlocked},
	{"file is too large", KindTooLarge},
	{"too large", KindTooLarge},
}

// classify turns yt-dlp stderr text into a typed error.
func classify(stderr string) *Error {
	lower := strings.ToLower(stderr)
	for _, p := range stderrPatterns {
		if strings.Contains(lower, p.fragment) {
			return &Error{Kind: p.kind, Detail: truncate(stderr, 300)}
		}
	}
	return &Error{Kind: KindGeneric, Detail: truncate(stderr, 300)}
}

// Service invokes yt-dlp through a tool.Runner.
type Service struct {
	runner  tool.Runner
	logger  *log.Logger
	timeout time.Duration
}

// New creates a Service. timeout bounds a whole download run.
func New(runner tool.Runner, logger *log.Logger, timeout time.Duration) *Service {
	return &Service{runner: runner, logger: logger, timeout: timeout}
}

// Download extracts best-quality audio from sourceURL. outputStem is a path
// without extension; yt-dlp chooses the container, so the produced file is
// located by globbing stem.* afterwards.
func (s *Service) Download(ctx context.Context, sourceURL, outputStem string) (string, error) {
	args := []string{
		"--no-playlist",
		"--format", "bestaudio/best",
		"--no-check-certificates",
		"--geo-bypass",
		"--socket-timeout", "30",
		"--retries", "3",
		"--output", outputStem + ".%(ext)s",
		"--no-progress",
		"--quiet",
		"--extractor-args", "youtube:player_client=web",
		sourceURL,
	}

	s.logger.Info("starting yt-dlp download", "url", truncate(sourceURL, 80))

	_, stderr, err := s.runner.Run(ctx, s.timeout, "yt-dlp", args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: KindGeneric, Detail: "download timed out"}
		}
		return "", classify(string(stderr))
	}

	matches, err := filepath.Glob(outputStem + ".*")
	if err != nil || len(matches) == 0 {
		return "", &Error{Kind: KindGeneric, Detail: "yt-dlp completed but no output file found"}
	}
	return matches[0], nil
}

// SearchTrack resolves a playable source URL for a track by taking the top-1
// result for "<artist> <title> audio". Best-effort: no verification that the
// result actually matches the track.
func (s *Service) SearchTrack(ctx context.Context, artist, title string) (string, error) {
	query := fmt.Sprintf("ytsearch1:%s %s audio", artist, title)
	args := []string{
		"--print", "webpage_url",
		"--no-playlist",
		"--quiet",
		query,
	}

	stdout, stderr, err := s.runner.Run(ctx, searchTimeout, "yt-dlp", args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: KindGeneric, Detail: "source search timed out"}
		}
		return "", &Error{Kind: KindGeneric, Detail: "source search failed: " + truncate(string(stderr), 200)}
	}

	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	url := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(url, "http") {
		return "", &Error{Kind: KindNotFound, Detail: "no search result for track"}
	}

	s.logger.Info("resolved track via search", "url", truncate(url, 80))
	return url, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

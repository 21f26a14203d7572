// Package cache stores processed audio artifacts on the filesystem, keyed by
// content identity. Entries become visible only after a full atomic rename;
// readers can never observe a partial file under a final name.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"audiobot/internal/track"
)

// Store is a filesystem-backed artifact cache. Entries are permanent until
// removed out-of-band: there is no eviction, TTL, or size cap.
type Store struct {
	dir    string
	logger *log.Logger
}

// New creates the cache directory if needed and returns a Store.
func New(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Key returns the deterministic cache key for a track identity: the sha256
// hex of "platform:trackId". One-way, filesystem-safe, never reversed.
func Key(platform track.Platform, trackID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", platform, trackID)))
	return hex.EncodeToString(sum[:])
}

// Path returns the final artifact path for a track identity.
func (s *Store) Path(platform track.Platform, trackID string) string {
	return filepath.Join(s.dir, Key(platform, trackID)+".mp3")
}

// Lookup returns the cached artifact path if it exists and is non-empty.
// A zero-byte file left by a crash is not a hit.
func (s *Store) Lookup(platform track.Platform, trackID string) (string, bool) {
	path := s.Path(platform, trackID)
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	s.logger.Info("cache hit", "platform", platform, "track_id", trackID)
	return path, true
}

// Commit atomically relocates a finished artifact to its cache-final path and
// returns that path. When the temp file lives on another filesystem, the
// artifact is first staged inside the cache directory under a unique name so
// the final name still appears in a single rename.
func (s *Store) Commit(tempPath string, platform track.Platform, trackID string) (string, error) {
	final := s.Path(platform, trackID)

	err := os.Rename(tempPath, final)
	if err != nil {
		var linkErr *os.LinkError
		if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
			return "", fmt.Errorf("failed to commit artifact: %w", err)
		}
		if err := s.stageAndRename(tempPath, final); err != nil {
			return "", err
		}
	}

	if info, err := os.Stat(final); err == nil {
		s.logger.Info("stored in cache",
			"platform", platform, "track_id", trackID, "size_kb", info.Size()/1024)
	}
	return final, nil
}

func (s *Store) stageAndRename(tempPath, final string) error {
	stage := filepath.Join(s.dir, ".staging-"+uuid.New().String())

	src, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(stage, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(stage)
		return fmt.Errorf("failed to stage artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(stage)
		return fmt.Errorf("failed to close staging file: %w", err)
	}

	if err := os.Rename(stage, final); err != nil {
		os.Remove(stage)
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	os.Remove(tempPath)
	return nil
}

// Package pipeline orchestrates a track request end to end: classify the URL,
// resolve metadata, check the cache, download, transcode, and commit.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"audiobot/internal/track"
	"audiobot/internal/urlcheck"
	"audiobot/pkg/utils"
)

// Collaborator capabilities. The orchestrator owns ordering and cleanup;
// everything with I/O sits behind one of these.
type (
	SpotifyResolver interface {
		GetTrackMetadata(ctx context.Context, trackID string) (track.Metadata, error)
	}

	YouTubeResolver interface {
		GetVideoMetadata(ctx context.Context, videoID string) (track.Metadata, error)
	}

	Extractor interface {
		Download(ctx context.Context, sourceURL, outputStem string) (string, error)
		SearchTrack(ctx context.Context, artist, title string) (string, error)
	}

	Transcoder interface {
		Transcode(ctx context.Context, inputPath, outputPath string, meta track.Metadata, coverPath string) error
		FetchCover(ctx context.Context, coverURL, dir string) (string, error)
	}

	Cache interface {
		Lookup(platform track.Platform, trackID string) (string, bool)
		Commit(tempPath string, platform track.Platform, trackID string) (string, error)
	}
)

// Result is a finished track request: the artifact path plus the metadata
// used to describe it to the user.
type Result struct {
	Path      string
	Meta      track.Metadata
	FromCache bool
}

type Orchestrator struct {
	spotify    SpotifyResolver
	youtube    YouTubeResolver
	extractor  Extractor
	transcoder Transcoder
	cache      Cache
	logger     *log.Logger
}

func New(spotify SpotifyResolver, youtube YouTubeResolver, ex Extractor, tc Transcoder, c Cache, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		spotify:    spotify,
		youtube:    youtube,
		extractor:  ex,
		transcoder: tc,
		cache:      c,
		logger:     logger,
	}
}

// Process runs the full pipeline for one URL. Metadata is resolved before the
// cache check so a cached artifact still gets a proper caption. The temp
// directory is removed on every exit path; only Commit moves a file out of it.
func (o *Orchestrator) Process(ctx context.Context, rawURL string) (Result, error) {
	platform, cleanURL, err := urlcheck.Classify(rawURL)
	if err != nil {
		return Result{}, err
	}

	trackID, meta, err := o.resolve(ctx, platform, cleanURL)
	if err != nil {
		return Result{}, err
	}
	o.logger.Info("resolved track", "platform", platform, "track", meta.DisplayName())

	if path, ok := o.cache.Lookup(platform, trackID); ok {
		return Result{Path: path, Meta: meta, FromCache: true}, nil
	}

	sourceURL := cleanURL
	if platform == track.PlatformSpotify {
		sourceURL, err = o.extractor.SearchTrack(ctx, meta.Artist, meta.Title)
		if err != nil {
			return Result{}, err
		}
	}

	tmpDir, err := utils.CreateTempDir()
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := utils.Cleanup(tmpDir); err != nil {
			o.logger.Warn("temp dir cleanup failed", "dir", tmpDir, "error", err)
		}
	}()

	// Cover art is cosmetic: fetch it alongside the download, and swallow
	// its failure rather than fail the whole request.
	var rawPath, coverPath string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var dlErr error
		rawPath, dlErr = o.extractor.Download(gctx, sourceURL, filepath.Join(tmpDir, "source"))
		return dlErr
	})
	if meta.CoverURL != "" {
		g.Go(func() error {
			path, coverErr := o.transcoder.FetchCover(gctx, meta.CoverURL, tmpDir)
			if coverErr != nil {
				o.logger.Warn("cover art fetch failed", "error", coverErr)
				return nil
			}
			coverPath = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	outPath := filepath.Join(tmpDir, "out.mp3")
	if err := o.transcoder.Transcode(ctx, rawPath, outPath, meta, coverPath); err != nil {
		return Result{}, err
	}

	finalPath, err := o.cache.Commit(outPath, platform, trackID)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: finalPath, Meta: meta, FromCache: false}, nil
}

// resolve extracts the platform track ID and fetches its metadata.
func (o *Orchestrator) resolve(ctx context.Context, platform track.Platform, cleanURL string) (string, track.Metadata, error) {
	switch platform {
	case track.PlatformSpotify:
		id, err := urlcheck.ExtractSpotifyTrackID(cleanURL)
		if err != nil {
			return "", track.Metadata{}, err
		}
		meta, err := o.spotify.GetTrackMetadata(ctx, id)
		if err != nil {
			return "", track.Metadata{}, err
		}
		return id, meta, nil

	case track.PlatformYouTube:
		id, err := urlcheck.ExtractYouTubeVideoID(cleanURL)
		if err != nil {
			return "", track.Metadata{}, err
		}
		meta, err := o.youtube.GetVideoMetadata(ctx, id)
		if err != nil {
			return "", track.Metadata{}, err
		}
		return id, meta, nil
	}
	return "", track.Metadata{}, fmt.Errorf("unsupported platform: %s", platform)
}

// Package transcode converts downloaded audio to tagged MP3 via ffmpeg.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"audiobot/internal/fetch"
	"audiobot/internal/tool"
	"audiobot/internal/track"
)

const (
	ffmpegTimeout   = 5 * time.Minute
	coverTimeout    = 15 * time.Second
	maxStderrDetail = 400
	loudnormFilter  = "loudnorm=I=-14:TP=-1.5:LRA=11"
)

// ProcessingError carries truncated ffmpeg stderr for logs. The user-facing
// message stays generic.
type ProcessingError struct {
	Stderr string
}

func (e *ProcessingError) Error() string {
	return "audio processing failed"
}

// FileTooLargeError is returned when the produced MP3 exceeds the limit.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("output file is %d bytes, limit is %d", e.Size, e.Limit)
}

// Transcoder drives ffmpeg and enforces the output size limit.
type Transcoder struct {
	runner  tool.Runner
	fetch   *fetch.Client
	logger  *log.Logger
	bitrate string
	maxSize int64
}

// New creates a Transcoder. bitrate is an ffmpeg audio bitrate like "320k";
// maxSize bounds the produced file in bytes.
func New(runner tool.Runner, f *fetch.Client, logger *log.Logger, bitrate string, maxSize int64) *Transcoder {
	return &Transcoder{runner: runner, fetch: f, logger: logger, bitrate: bitrate, maxSize: maxSize}
}

// Transcode converts inputPath to a loudness-normalized MP3 at outputPath,
// embedding ID3v2.3 tags from meta. coverPath, when non-empty, is muxed in as
// front cover art. The output is deleted again if it exceeds the size limit,
// so a returned error always means no usable file exists at outputPath.
func (t *Transcoder) Transcode(ctx context.Context, inputPath, outputPath string, meta track.Metadata, coverPath string) error {
	args := []string{"-y", "-i", inputPath}
	if coverPath != "" {
		args = append(args, "-i", coverPath)
	}

	args = append(args,
		"-af", loudnormFilter,
		"-c:a", "libmp3lame",
		"-b:a", t.bitrate,
		"-id3v2_version", "3",
	)

	if coverPath != "" {
		args = append(args,
			"-map", "0:a",
			"-map", "1:v",
			"-c:v", "mjpeg",
			"-metadata:s:v", "comment=Cover (front)",
		)
	}

	args = append(args, tagArgs(meta)...)
	args = append(args, outputPath)

	t.logger.Info("starting ffmpeg transcode", "input", filepath.Base(inputPath))

	_, stderr, err := t.runner.Run(ctx, ffmpegTimeout, "ffmpeg", args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ProcessingError{Stderr: "ffmpeg timed out"}
		}
		return &ProcessingError{Stderr: truncate(string(stderr), maxStderrDetail)}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return &ProcessingError{Stderr: "ffmpeg produced no output file"}
	}
	if info.Size() > t.maxSize {
		os.Remove(outputPath)
		return &FileTooLargeError{Size: info.Size(), Limit: t.maxSize}
	}
	return nil
}

// FetchCover downloads cover art into dir and returns the file path. Callers
// treat failure as cosmetic, not fatal.
func (t *Transcoder) FetchCover(ctx context.Context, coverURL, dir string) (string, error) {
	data, err := t.fetch.GetBytes(ctx, coverURL, coverTimeout)
	if err != nil {
		return "", fmt.Errorf("cover download failed: %w", err)
	}
	path := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("cover write failed: %w", err)
	}
	return path, nil
}

func tagArgs(meta track.Metadata) []string {
	args := []string{
		"-metadata", "title=" + escapeTag(meta.Title),
		"-metadata", "artist=" + escapeTag(meta.Artist),
	}
	if meta.Album != "" {
		args = append(args, "-metadata", "album="+escapeTag(meta.Album))
	}
	return args
}

// escapeTag escapes the characters ffmpeg's option parser treats specially
// inside -metadata values.
func escapeTag(s string) string {
	r := strings.NewReplacer("=", `\=`, ";", `\;`, "#", `\#`)
	return r.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

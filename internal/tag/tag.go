// Package tag reads metadata back out of produced MP3 files.
package tag

import (
	"fmt"

	"go.senan.xyz/taglib"

	"audiobot/internal/track"
)

// Read returns the embedded tags of an audio file as track metadata.
func Read(path string) (track.Metadata, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return track.Metadata{}, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	return track.Metadata{
		Title:  firstTag(tags, taglib.Title),
		Artist: firstTag(tags, taglib.Artist),
		Album:  firstTag(tags, taglib.Album),
	}, nil
}

// HasCover reports whether the file carries embedded artwork.
func HasCover(path string) bool {
	data, err := taglib.ReadImage(path)
	return err == nil && len(data) > 0
}

func firstTag(tags map[string][]string, key string) string {
	if vals := tags[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

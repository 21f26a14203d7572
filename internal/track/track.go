package track

// Platform identifies the content source of a track URL.
type Platform string

const (
	PlatformSpotify Platform = "spotify"
	PlatformYouTube Platform = "youtube"
)

// Identity uniquely identifies a piece of content as a (platform, native id)
// pair. Two identities are equal iff both fields are equal.
type Identity struct {
	Platform Platform
	ID       string
}

// Metadata contains the normalized metadata for a single track, as produced
// by a metadata resolver. Immutable once constructed.
type Metadata struct {
	Title      string
	Artist     string
	DurationMS int64
	CoverURL   string // optional
	Album      string // optional
	PlatformID string
}

// DisplayName returns "artist - title" for captions and filenames.
func (m Metadata) DisplayName() string {
	return m.Artist + " - " + m.Title
}

// DurationSeconds returns the track duration in seconds.
func (m Metadata) DurationSeconds() float64 {
	return float64(m.DurationMS) / 1000
}

// Package urlcheck validates, sanitizes, and classifies inbound URLs before
// any network egress happens. It is the SSRF control point: scheme and length
// gates, a private/loopback denylist, and an exact-authority allowlist of
// known platform hostnames.
package urlcheck

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"audiobot/internal/track"
)

// maxURLLength bounds the accepted input size.
const maxURLLength = 2048

// Exact-authority allowlists. Subdomains are enumerated, never
// wildcard-matched, so "open.spotify.com.evil.example" cannot slip through.
var (
	spotifyHosts = map[string]bool{
		"open.spotify.com": true,
	}
	youtubeHosts = map[string]bool{
		"www.youtube.com":   true,
		"youtube.com":       true,
		"youtu.be":          true,
		"m.youtube.com":     true,
		"music.youtube.com": true,
	}
)

var (
	privateHostRe = regexp.MustCompile(
		`^(localhost|127\.|10\.|192\.168\.|172\.(1[6-9]|2[0-9]|3[01])\.|::1|0\.0\.0\.0)`)

	spotifyTrackRe = regexp.MustCompile(
		`open\.spotify\.com/(?:intl-[a-z]{2}/)?track/([A-Za-z0-9]{22})`)

	youtubeIDRe   = regexp.MustCompile(`(?:v=|youtu\.be/|/embed/|/shorts/)([A-Za-z0-9_-]{11})`)
	youtubeFullRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ValidationError reports why an input was rejected. Its message is safe to
// show to the end user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// Classify validates raw input and returns the platform it belongs to plus
// the trimmed URL, unchanged beyond trimming. Each gate is hard: the first
// failure wins and no partial result is returned.
func Classify(raw string) (track.Platform, string, error) {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) > maxURLLength {
		return "", "", invalid("URL too long")
	}

	u := safeParse(raw)
	if u == nil {
		return "", "", invalid("malformed URL")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", invalid("only http/https URLs are accepted")
	}

	if IsPrivateHost(u.Hostname()) {
		return "", "", invalid("private/loopback addresses are not allowed")
	}

	authority := strings.ToLower(u.Host)
	switch {
	case spotifyHosts[authority]:
		return track.PlatformSpotify, raw, nil
	case youtubeHosts[authority]:
		return track.PlatformYouTube, raw, nil
	}
	return "", "", invalid("host '" + u.Host + "' is not an allowed platform")
}

// IsPrivateHost reports whether a hostname matches the private, loopback, or
// link-local patterns blocked for SSRF defense. Also used by the fetch client
// to revalidate redirect targets. Hostnames are case-insensitive in DNS, so
// the match is done on the lowered form.
func IsPrivateHost(host string) bool {
	return privateHostRe.MatchString(strings.ToLower(host))
}

// ExtractSpotifyTrackID pulls the 22-character base62 track ID out of an
// already-validated Spotify URL. Locale segments like "intl-pt/" are allowed.
func ExtractSpotifyTrackID(rawURL string) (string, error) {
	m := spotifyTrackRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", invalid("could not extract Spotify track ID from URL")
	}
	return m[1], nil
}

// ExtractYouTubeVideoID pulls the 11-character video ID out of an
// already-validated YouTube URL. The explicit v= query parameter wins;
// youtu.be, /embed/ and /shorts/ paths are the fallback.
func ExtractYouTubeVideoID(rawURL string) (string, error) {
	if u := safeParse(rawURL); u != nil {
		if vid := u.Query().Get("v"); youtubeFullRe.MatchString(vid) {
			return vid, nil
		}
	}

	m := youtubeIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", invalid("could not extract YouTube video ID from URL")
	}
	return m[1], nil
}

// safeParse parses a URL, treating any parse failure or missing host as nil.
// Parser error details never propagate past this point.
func safeParse(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

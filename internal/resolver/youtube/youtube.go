// Package youtube resolves YouTube video metadata via the Data API v3.
package youtube

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"audiobot/internal/fetch"
	"audiobot/internal/track"
)

const defaultAPIURL = "https://www.googleapis.com/youtube/v3"

// ErrVideoNotFound is returned when the API knows nothing about the ID.
var ErrVideoNotFound = fmt.Errorf("video not found")

// isoDurationRe parses the subset of ISO-8601 durations YouTube emits:
// PT#H#M#S with any component optional, case-insensitive.
var isoDurationRe = regexp.MustCompile(`(?i)^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// Client is a YouTube Data API metadata resolver.
type Client struct {
	fetch  *fetch.Client
	apiKey string

	// Overridable for testing
	apiURL string
}

// New creates a Client. A missing API key is a configuration error.
func New(apiKey string, f *fetch.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube API key not configured: set YOUTUBE_API_KEY")
	}
	return &Client{fetch: f, apiKey: apiKey, apiURL: defaultAPIURL}, nil
}

// GetVideoMetadata fetches and normalizes metadata for a single video. The
// channel name stands in for the artist.
func (c *Client) GetVideoMetadata(ctx context.Context, videoID string) (track.Metadata, error) {
	params := url.Values{
		"id":   {videoID},
		"part": {"snippet,contentDetails"},
		"key":  {c.apiKey},
	}

	var resp videosResponse
	if err := c.fetch.GetJSON(ctx, c.apiURL+"/videos", nil, params, &resp); err != nil {
		return track.Metadata{}, fmt.Errorf("youtube video request failed: %w", err)
	}
	if len(resp.Items) == 0 {
		return track.Metadata{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}

	return parseVideo(resp.Items[0], videoID), nil
}

func parseVideo(item videoItem, videoID string) track.Metadata {
	title := item.Snippet.Title
	if title == "" {
		title = "Unknown Title"
	}
	channel := item.Snippet.ChannelTitle
	if channel == "" {
		channel = "Unknown Artist"
	}

	return track.Metadata{
		Title:      title,
		Artist:     channel,
		DurationMS: ParseISODuration(item.ContentDetails.Duration),
		CoverURL:   bestThumbnail(item.Snippet.Thumbnails),
		PlatformID: videoID,
	}
}

// bestThumbnail prefers the highest-resolution variant available.
func bestThumbnail(t thumbnails) string {
	switch {
	case t.MaxRes.URL != "":
		return t.MaxRes.URL
	case t.High.URL != "":
		return t.High.URL
	default:
		return t.Default.URL
	}
}

// ParseISODuration converts an ISO-8601 duration string to milliseconds.
// An unparseable string yields 0, never an error.
func ParseISODuration(s string) int64 {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	h := atoiOrZero(m[1])
	min := atoiOrZero(m[2])
	sec := atoiOrZero(m[3])
	return (h*3600 + min*60 + sec) * 1000
}

func atoiOrZero(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// YouTube API response types

type videosResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	Snippet        snippet        `json:"snippet"`
	ContentDetails contentDetails `json:"contentDetails"`
}

type snippet struct {
	Title        string     `json:"title"`
	ChannelTitle string     `json:"channelTitle"`
	Thumbnails   thumbnails `json:"thumbnails"`
}

type thumbnails struct {
	Default thumbnail `json:"default"`
	High    thumbnail `json:"high"`
	MaxRes  thumbnail `json:"maxres"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type contentDetails struct {
	Duration string `json:"duration"`
}

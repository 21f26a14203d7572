// Package spotify resolves Spotify track metadata via the Web API, using a
// client-credentials token that refreshes itself shortly before expiry.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"audiobot/internal/fetch"
	"audiobot/internal/track"
)

const (
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultAPIURL   = "https://api.spotify.com/v1"

	// Refresh the token when it is within this window of expiring.
	tokenExpiryWindow = 30 * time.Second
)

// Client is a Spotify Web API metadata resolver.
type Client struct {
	fetch  *fetch.Client
	tokens oauth2.TokenSource

	// Overridable for testing
	apiURL string
}

// New creates a Client. Missing credentials are a configuration error, not
// something to retry.
func New(clientID, clientSecret string, f *fetch.Client) (*Client, error) {
	return newWithURLs(clientID, clientSecret, f, defaultTokenURL, defaultAPIURL)
}

func newWithURLs(clientID, clientSecret string, f *fetch.Client, tokenURL, apiURL string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify credentials not configured: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	}

	src := &tokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   f.HTTPClient(),
	}

	return &Client{
		fetch:  f,
		tokens: oauth2.ReuseTokenSourceWithExpiry(nil, src, tokenExpiryWindow),
		apiURL: apiURL,
	}, nil
}

// GetTrackMetadata fetches and normalizes metadata for a single track.
func (c *Client) GetTrackMetadata(ctx context.Context, trackID string) (track.Metadata, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return track.Metadata{}, fmt.Errorf("spotify auth failed: %w", err)
	}

	var resp trackResponse
	reqURL := c.apiURL + "/tracks/" + url.PathEscape(trackID)
	headers := map[string]string{"Authorization": "Bearer " + token.AccessToken}
	if err := c.fetch.GetJSON(ctx, reqURL, headers, nil, &resp); err != nil {
		return track.Metadata{}, fmt.Errorf("spotify track request failed: %w", err)
	}

	return parseTrack(resp), nil
}

func parseTrack(resp trackResponse) track.Metadata {
	names := make([]string, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		names = append(names, a.Name)
	}

	var coverURL string
	if len(resp.Album.Images) > 0 {
		coverURL = resp.Album.Images[0].URL
	}

	return track.Metadata{
		Title:      resp.Name,
		Artist:     strings.Join(names, ", "),
		DurationMS: resp.DurationMS,
		CoverURL:   coverURL,
		Album:      resp.Album.Name,
		PlatformID: resp.ID,
	}
}

// tokenSource performs the client-credentials exchange. The fetch client's
// HTTP client carries the traffic so the token endpoint gets the same
// timeout and redirect policy as everything else. Wrapped in a reuse source,
// Token is only called when the cached token is inside the expiry window.
type tokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequest(http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.clientID, s.clientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request returned %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Expiry:      time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

// Spotify API response types

type trackResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Artists    []artist  `json:"artists"`
	Album      albumInfo `json:"album"`
	DurationMS int64     `json:"duration_ms"`
}

type artist struct {
	Name string `json:"name"`
}

type albumInfo struct {
	Name   string  `json:"name"`
	Images []image `json:"images"`
}

type image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Package fetch provides the outbound HTTP client used for every API call
// the service makes: bounded timeout, capped redirects with SSRF
// revalidation on every hop, and bounded retry with exponential backoff on
// transient failures.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"audiobot/internal/urlcheck"
)

// maxErrorBody caps how much of an error response body is kept for messages.
const maxErrorBody = 200

var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// HTTPError is a non-retryable (or retry-exhausted) HTTP failure.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// RedirectBlockedError is returned when a redirect hop targets a private or
// loopback host. The request is aborted before the hop is followed.
type RedirectBlockedError struct {
	Host string
}

func (e *RedirectBlockedError) Error() string {
	return fmt.Sprintf("redirect to private host blocked: %s", e.Host)
}

// Options configures a Client. Zero values fall back to the defaults below.
type Options struct {
	Timeout       time.Duration
	MaxRedirects  int
	RetryAttempts int
	BackoffBase   float64
	// RequestsPerSecond paces outbound calls; 0 disables pacing.
	RequestsPerSecond float64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 3
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 1.5
	}
	return o
}

// Client executes HTTP requests with retry and SSRF-safe redirects.
type Client struct {
	httpClient *http.Client
	opts       Options
	limiter    *rate.Limiter
	logger     *log.Logger

	sleep func(time.Duration) // swapped out in tests
}

// New creates a Client.
func New(opts Options, logger *log.Logger) *Client {
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:       opts.Timeout,
			CheckRedirect: checkRedirect(opts.MaxRedirects),
		},
		opts:    opts,
		limiter: limiter,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// checkRedirect revalidates every redirect target against the private-host
// denylist. A public host that redirects to an internal address is an SSRF
// attempt and aborts the request.
func checkRedirect(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		// via holds the already-performed requests, so a budget of N
		// allows N redirect hops before the next one is refused.
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if urlcheck.IsPrivateHost(req.URL.Hostname()) {
			return &RedirectBlockedError{Host: req.URL.Hostname()}
		}
		return nil
	}
}

// HTTPClient exposes the underlying client for collaborators that need to
// inject it (e.g. the OAuth2 token exchange), so their traffic gets the same
// timeout and redirect policy.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetJSON performs a GET with retry and decodes the JSON response into v.
// Statuses in {429, 500, 502, 503, 504} are retried with backoff; any other
// status >= 400 fails immediately with *HTTPError. Connection errors and
// timeouts are retried on the same schedule, surfacing the last error when
// attempts are exhausted. A blocked redirect is terminal, never retried.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, params url.Values, v any) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.RetryAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		resp, err := c.do(ctx, rawURL, headers, params)
		if err != nil {
			var blocked *RedirectBlockedError
			if errors.As(err, &blocked) {
				return blocked
			}
			lastErr = err
			if attempt < c.opts.RetryAttempts {
				wait := c.backoff(attempt)
				c.logger.Warn("connection error, retrying", "error", err, "attempt", attempt, "wait", wait)
				c.sleep(wait)
				continue
			}
			return lastErr
		}

		if retryableStatuses[resp.StatusCode] && attempt < c.opts.RetryAttempts {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			wait := c.backoff(attempt)
			c.logger.Warn("retryable HTTP status", "status", resp.StatusCode, "attempt", attempt, "wait", wait)
			c.sleep(wait)
			continue
		}

		return decodeResponse(resp, v)
	}
	return lastErr
}

// GetBytes performs a single GET with its own timeout and returns the body.
// No retries; used for best-effort fetches like cover art.
func (c *Client) GetBytes(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.do(ctx, rawURL, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string, params url.Values) (*http.Response, error) {
	reqURL := rawURL
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid request URL: %w", err)
		}
		q := u.Query()
		for key, vals := range params {
			for _, val := range vals {
				q.Add(key, val)
			}
		}
		u.RawQuery = q.Encode()
		reqURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, val := range headers {
		req.Header.Set(key, val)
	}

	return c.httpClient.Do(req)
}

func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(c.opts.BackoffBase, float64(attempt)) * float64(time.Second))
}

func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	if v == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Package webcal fetches iCalendar feeds over plain HTTP(S).
package webcal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tazhate/agendasync/internal/domain"
)

const (
	// FetchTimeout bounds a single feed request end to end
	FetchTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps a feed payload
	DefaultMaxBodyBytes int64 = 10 << 20
)

// Client is an HTTP feed client. It never retries.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
	userAgent  string
}

// NewClient creates a feed client. maxBytes <= 0 selects DefaultMaxBodyBytes.
func NewClient(maxBytes int64) *Client {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: FetchTimeout,
		},
		maxBytes:  maxBytes,
		userAgent: "agendasync/1.0",
	}
}

// Fetch performs one GET and returns the response body.
// webcal:// URLs are requested over https.
func (c *Client) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	target := feedURL
	if rest, ok := strings.CutPrefix(target, "webcal://"); ok {
		target = "https://" + rest
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: RedactURL(feedURL), Err: err}
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: RedactURL(feedURL), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{Kind: domain.FetchHTTP, URL: RedactURL(feedURL), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: RedactURL(feedURL), Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, &domain.FetchError{
			Kind:       domain.FetchHTTP,
			URL:        RedactURL(feedURL),
			StatusCode: resp.StatusCode,
			Err:        errors.New("body too large"),
		}
	}
	return body, nil
}

// RedactURL hides path, query and credentials of a feed URL for logging.
// Private calendar URLs usually carry their secret in the path.
//
//	https://example.com/private/abcd.ics?token=x -> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	scheme, rest := u[:i+3], u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	if at := strings.LastIndexByte(rest, '@'); at != -1 {
		rest = rest[at+1:]
	}
	return scheme + rest + redactedSuffix
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tazhate/agendasync/internal/clients/webcal"
	"github.com/tazhate/agendasync/internal/domain"
)

var ErrInvalidFeedURL = errors.New("invalid feed url")

// Fetcher retrieves the raw payload of one feed
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

// FeedFetcher picks a transport from the URL scheme
type FeedFetcher struct {
	web    Fetcher
	caldav Fetcher
}

// NewFeedFetcher routes http, https and webcal to web, caldav and caldavs to
// caldav. caldav may be nil, in which case CalDAV URLs are rejected.
func NewFeedFetcher(web, caldav Fetcher) *FeedFetcher {
	return &FeedFetcher{web: web, caldav: caldav}
}

func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	switch scheme(feedURL) {
	case "http", "https", "webcal":
		return f.web.Fetch(ctx, feedURL)
	case "caldav", "caldavs":
		if f.caldav != nil {
			return f.caldav.Fetch(ctx, feedURL)
		}
	}
	return nil, &domain.FetchError{
		Kind: domain.FetchNetwork,
		URL:  webcal.RedactURL(feedURL),
		Err:  fmt.Errorf("unsupported scheme %q", scheme(feedURL)),
	}
}

// ValidateFeedURL checks that a URL can be handed to FeedFetcher
func ValidateFeedURL(feedURL string) error {
	u, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeedURL, err)
	}
	switch u.Scheme {
	case "http", "https", "webcal", "caldav", "caldavs":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidFeedURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidFeedURL)
	}
	return nil
}

func scheme(feedURL string) string {
	i := strings.Index(feedURL, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(feedURL[:i])
}

// Package pahe is a typed client for the animepahe site, built on top
// of the resilient fetch engine. It knows the site's URL scheme, its
// JSON API envelope, and which endpoints are documents versus
// structured data.
package pahe

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/pahegate/pahegate/pkg/fetch"
)

// DefaultBaseURL is the upstream origin.
const DefaultBaseURL = "https://animepahe.ru"

// Sentinel errors for missing required identifiers, surfaced before any
// network activity happens.
var (
	ErrMissingQuery   = errors.New("search query is required")
	ErrMissingAnimeID = errors.New("anime id is required")
	ErrMissingEpisode = errors.New("episode id is required")
)

// Client wraps a fetch.Fetcher with the upstream's URL scheme.
type Client struct {
	fetcher fetch.Fetcher
	baseURL string
}

// New creates a client. An empty baseURL uses DefaultBaseURL.
func New(fetcher fetch.Fetcher, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{fetcher: fetcher, baseURL: baseURL}
}

// BaseURL returns the configured origin.
func (c *Client) BaseURL() string { return c.baseURL }

// AnimeURL returns the canonical info page URL for an anime session id.
func (c *Client) AnimeURL(session string) string {
	return c.baseURL + "/anime/" + session
}

// PlayURL returns the canonical play page URL for an episode.
func (c *Client) PlayURL(animeSession, episodeSession string) string {
	return c.baseURL + "/play/" + animeSession + "/" + episodeSession
}

// RequestOption adjusts a single client call.
type RequestOption func(*fetch.Request)

// WithCookies sends the given Cookie header verbatim instead of the
// managed session, disabling refresh-on-auth-failure for the call.
func WithCookies(cookies string) RequestOption {
	return func(r *fetch.Request) {
		r.CookieOverride = cookies
	}
}

// api issues one structured request against the /api endpoint.
func (c *Client) api(ctx context.Context, params url.Values, opts []RequestOption) (string, error) {
	req := fetch.Request{
		URL:        c.baseURL + "/api",
		Structured: true,
		Query:      params,
	}
	for _, opt := range opts {
		opt(&req)
	}

	res, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// newRequest builds a document-shaped request with call options
// applied.
func newRequest(rawURL string, opts []RequestOption) fetch.Request {
	req := fetch.Request{URL: rawURL}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// document fetches an HTML page from the origin.
func (c *Client) document(ctx context.Context, path string, opts []RequestOption) (string, error) {
	req := newRequest(c.baseURL+path, opts)

	res, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", path, err)
	}
	return res.Content, nil
}

// notFound reports whether an engine error traces back to a clean 404.
func notFound(err error) bool {
	var ex *fetch.ExhaustedError
	return errors.As(err, &ex) && ex.NotFound()
}

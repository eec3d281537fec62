// Package fetch implements a resilient fetch engine for a bot-walled
// upstream site. A single orchestrator drives an ordered cascade of
// transport strategies (direct HTTP, headless browser, commercial
// unblocking service), validating every response with a shared block
// detector before falling back to the next strategy.
package fetch

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Origin identifies the upstream site the engine talks to.
type Origin struct {
	// BaseURL is the scheme+host of the upstream, e.g. "https://animepahe.ru".
	BaseURL string

	// UserAgent is presented by every transport strategy.
	UserAgent string
}

// Host returns the hostname part of the origin base URL.
func (o Origin) Host() string {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Request describes one fetch through the engine. Immutable once built.
type Request struct {
	// URL is the absolute target URL, without query parameters.
	URL string

	// Structured marks JSON API-shaped endpoints. Document-shaped
	// requests (HTML pages) leave it false. The flag changes both
	// block-detection rules and which strategies are eligible: the
	// browser strategy only ever produces rendered HTML, so it is
	// skipped for structured requests.
	Structured bool

	// Query holds optional query parameters appended to URL.
	Query url.Values

	// CookieOverride, when non-empty, is sent verbatim as the Cookie
	// header and suppresses all managed-session behaviour, including
	// the forced refresh on auth failures.
	CookieOverride string
}

// Target returns the full URL including encoded query parameters.
func (r Request) Target() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + r.Query.Encode()
}

// Key returns a normalized identity for the request, suitable as a
// cache key. Query parameters are sorted so equivalent requests map to
// the same key regardless of construction order.
func (r Request) Key() string {
	var b strings.Builder
	b.WriteString(r.URL)
	if len(r.Query) > 0 {
		keys := make([]string, 0, len(r.Query))
		for k := range r.Query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range r.Query[k] {
				b.WriteString("&")
				b.WriteString(k)
				b.WriteString("=")
				b.WriteString(v)
			}
		}
	}
	if r.Structured {
		b.WriteString("#json")
	}
	return b.String()
}

// Response is the raw output of a single transport attempt, before
// block classification.
type Response struct {
	Body       string
	StatusCode int
}

// Result is the terminal outcome of a successful fetch.
type Result struct {
	// Content is the genuine response body.
	Content string

	// StatusCode is the upstream HTTP status, or 200 for strategies
	// that cannot observe one (rendered browser content).
	StatusCode int

	// Strategy names the transport that produced the content.
	Strategy string

	// Elapsed is the duration of the winning attempt only, not the
	// whole cascade.
	Elapsed time.Duration
}

// Transport is one interchangeable fetch strategy. Implementations must
// be safe for concurrent use.
type Transport interface {
	// Name identifies the strategy in attempt logs and results.
	Name() string

	// Handles reports whether the strategy can serve the request at
	// all. The cascade silently skips strategies that return false.
	Handles(req Request) bool

	// Fetch performs one attempt. It returns a Response whenever an
	// HTTP response was received, regardless of status code; errors
	// are reserved for transport-level failures (timeouts, connection
	// errors, service failures).
	Fetch(ctx context.Context, req Request, cookies string) (Response, error)
}

// Fetcher is the caller-facing surface of the engine. The Orchestrator
// implements it, as do decorators such as the response cache.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Result, error)
}

package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pahegate/pahegate/internal/logger"
)

// internalPaths are origin paths that the upstream only serves with a
// plausible in-site Referer.
var internalPaths = []string{"/api", "/play/", "/anime"}

// DirectConfig configures the direct HTTP strategy.
type DirectConfig struct {
	Origin  Origin
	Timeout time.Duration
}

// Direct issues a plain HTTP GET with a realistic browser header set
// and the session cookie attached. Cheapest and fastest strategy, and
// the one most likely to be soft-blocked.
type Direct struct {
	cfg DirectConfig
}

// NewDirect creates the direct strategy.
func NewDirect(cfg DirectConfig) *Direct {
	if cfg.Origin.UserAgent == "" {
		cfg.Origin.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Direct{cfg: cfg}
}

// Name implements Transport.
func (d *Direct) Name() string { return "direct" }

// Handles implements Transport. Direct serves every request shape.
func (d *Direct) Handles(Request) bool { return true }

// Fetch implements Transport.
func (d *Direct) Fetch(ctx context.Context, req Request, cookies string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, &TransportError{Strategy: d.Name(), Err: err}
	}

	target := req.Target()

	// Fresh collector per request: no shared cookie jar, no revisit
	// bookkeeping leaking across concurrent fetches.
	c := colly.NewCollector(
		colly.UserAgent(d.cfg.Origin.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(d.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders(d.cfg.Origin.UserAgent) {
			r.Headers.Set(k, v)
		}
		if cookies != "" {
			r.Headers.Set("Cookie", cookies)
		}
		if ref := d.referer(target); ref != "" {
			r.Headers.Set("Referer", ref)
		}
	})

	var (
		resp     Response
		received bool
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		resp.StatusCode = r.StatusCode
		resp.Body = string(r.Body)
		received = true
	})

	// Colly reports non-2xx statuses here; the challenge pages this
	// engine exists for arrive as 403s with a body, so an HTTP error
	// status still counts as a received response.
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			resp.StatusCode = r.StatusCode
			resp.Body = string(r.Body)
			received = true
			return
		}
		fetchErr = err
	})

	if err := c.Visit(target); err != nil && !received && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if !received {
		logger.Debug("direct fetch failed", "url", target, "error", fetchErr)
		return Response{}, &TransportError{Strategy: d.Name(), Err: fetchErr}
	}

	logger.Debug("direct fetch", "url", target, "status", resp.StatusCode, "size", len(resp.Body))
	return resp, nil
}

// referer attaches the origin home page as Referer for in-site paths,
// mimicking a user navigating from the landing page.
func (d *Direct) referer(target string) string {
	if !strings.HasPrefix(target, d.cfg.Origin.BaseURL) {
		return ""
	}
	rest := strings.TrimPrefix(target, d.cfg.Origin.BaseURL)
	for _, p := range internalPaths {
		if strings.HasPrefix(rest, p) {
			return d.cfg.Origin.BaseURL + "/"
		}
	}
	return ""
}

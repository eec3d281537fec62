package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/pahegate/pahegate/internal/logger"
)

// BrowserConfig configures the headless browser strategy.
type BrowserConfig struct {
	Origin Origin

	// Timeout bounds one full browser attempt, launch included.
	Timeout time.Duration

	// ChallengeWait is how long to let a client-side challenge run
	// before re-reading the page.
	ChallengeWait time.Duration

	// ChromePath overrides binary discovery when set.
	ChromePath string
}

// Browser renders pages in headless Chrome with anti-detection patches
// applied. Every attempt gets a fresh browser process so a poisoned
// profile can never leak between requests. It doubles as the session
// refresher: solving the bot wall in a real browser is how fresh
// clearance cookies are minted.
type Browser struct {
	cfg      BrowserConfig
	detector *Detector
}

// NewBrowser creates the browser strategy.
func NewBrowser(cfg BrowserConfig, det *Detector) *Browser {
	if cfg.Origin.UserAgent == "" {
		cfg.Origin.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.ChallengeWait == 0 {
		cfg.ChallengeWait = 10 * time.Second
	}
	if cfg.ChromePath == "" {
		cfg.ChromePath = findChromePath()
	}
	return &Browser{cfg: cfg, detector: det}
}

// Name implements Transport.
func (b *Browser) Name() string { return "browser" }

// Handles implements Transport. The browser only ever produces rendered
// HTML, so structured (JSON) requests are not eligible.
func (b *Browser) Handles(req Request) bool { return !req.Structured }

// Fetch implements Transport. The rendered document is always returned
// with status 200: Chrome does not surface the navigation status, and
// an unresolved challenge page is caught downstream by the block
// detector's marker rules.
func (b *Browser) Fetch(ctx context.Context, req Request, cookies string) (Response, error) {
	target := req.Target()

	browserCtx, cancel := b.newSession(ctx)
	defer cancel()

	var actions []chromedp.Action
	if cookies != "" {
		actions = append(actions, setCookieHeader(target, cookies))
	}
	actions = append(actions,
		injectStealthScript(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body"),
	)

	var html, title string
	actions = append(actions,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return Response{}, b.runError(ctx, target, err)
	}

	// A challenge page at first paint may still resolve itself: the
	// interstitial runs its JavaScript and reloads. Give it a bounded
	// window, then read the final document state.
	if b.detector.LooksLikeChallenge(html) {
		logger.Debug("challenge page rendered, waiting for resolution",
			"url", target, "wait", b.cfg.ChallengeWait)
		if err := chromedp.Run(browserCtx,
			chromedp.Sleep(b.cfg.ChallengeWait),
			chromedp.OuterHTML("html", &html),
			chromedp.Title(&title),
		); err != nil {
			return Response{}, b.runError(ctx, target, err)
		}
	}

	logger.Debug("browser fetch", "url", target, "title", title, "size", len(html))
	return Response{Body: html, StatusCode: 200}, nil
}

// RefreshCookies navigates the origin home page, lets the bot wall's
// challenge resolve, and returns the resulting cookies as a single
// Cookie header value. It satisfies the session store's refresher
// contract.
func (b *Browser) RefreshCookies(ctx context.Context) (string, error) {
	home := b.cfg.Origin.BaseURL + "/"

	browserCtx, cancel := b.newSession(ctx)
	defer cancel()

	var html, title string
	if err := chromedp.Run(browserCtx,
		injectStealthScript(),
		chromedp.Navigate(home),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	); err != nil {
		return "", fmt.Errorf("session refresh navigation: %w", err)
	}

	// Poll until the challenge clears or the browser context deadline
	// cancels the run.
	for b.detector.LooksLikeChallenge(html) {
		logger.Debug("session refresh waiting on challenge", "title", title)
		if err := chromedp.Run(browserCtx,
			chromedp.Sleep(2*time.Second),
			chromedp.OuterHTML("html", &html),
			chromedp.Title(&title),
		); err != nil {
			return "", fmt.Errorf("challenge did not resolve: %w", err)
		}
	}

	var header string
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		header = cookieHeader(cookies, b.cfg.Origin.Host())
		return nil
	}))
	if err != nil {
		return "", fmt.Errorf("cookie capture: %w", err)
	}
	if header == "" {
		return "", errors.New("origin set no cookies")
	}

	logger.Debug("session refreshed", "origin", b.cfg.Origin.Host(), "cookies", strings.Count(header, "="))
	return header, nil
}

// newSession builds a fresh allocator and browser context bounded by
// the strategy timeout. The returned cancel tears down the whole
// process tree.
func (b *Browser) newSession(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], stealthAllocOptions()...)
	if b.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ChromePath))
	}
	opts = append(opts, chromedp.UserAgent(b.cfg.Origin.UserAgent))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, b.cfg.Timeout)

	return timeoutCtx, func() {
		cancelTimeout()
		cancelBrowser()
		cancelAlloc()
	}
}

// runError maps a chromedp failure onto the transport error contract.
func (b *Browser) runError(ctx context.Context, target string, err error) error {
	if ctx.Err() != nil || strings.Contains(err.Error(), "deadline exceeded") {
		logger.Warn("browser timeout, possible unresolved challenge", "url", target)
		return &TransportError{Strategy: b.Name(), Err: fmt.Errorf("browser timeout: %w", err)}
	}
	return &TransportError{Strategy: b.Name(), Err: fmt.Errorf("browser automation: %w", err)}
}

// setCookieHeader installs a Cookie-header-formatted cookie blob into
// the browser before navigation.
func setCookieHeader(targetURL, cookies string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		u, err := url.Parse(targetURL)
		if err != nil {
			return fmt.Errorf("cookie target: %w", err)
		}
		var params []*network.CookieParam
		for _, pair := range strings.Split(cookies, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || name == "" {
				continue
			}
			params = append(params, &network.CookieParam{
				Name:   name,
				Value:  value,
				Domain: u.Host,
				Path:   "/",
				Secure: u.Scheme == "https",
			})
		}
		if len(params) == 0 {
			return nil
		}
		return network.SetCookies(params).Do(ctx)
	})
}

// cookieHeader flattens browser cookies for a host into a Cookie header
// value.
func cookieHeader(cookies []*network.Cookie, host string) string {
	var b strings.Builder
	for _, c := range cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if host != domain && !strings.HasSuffix(host, "."+domain) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteString("=")
		b.WriteString(c.Value)
	}
	return b.String()
}

// Package session manages the clearance cookie blob for a bot-walled
// origin: acquisition through a refresher, staleness tracking, and
// coalescing of concurrent refresh attempts.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pahegate/pahegate/internal/logger"
)

// ErrSessionUnavailable indicates no cookies exist and a blocking
// refresh failed, so requests to the origin cannot be authenticated.
var ErrSessionUnavailable = errors.New("session unavailable")

// Refresher mints a fresh cookie blob by solving the origin's bot wall.
// The browser strategy implements it.
type Refresher interface {
	RefreshCookies(ctx context.Context) (string, error)
}

// DefaultMaxAge is how long captured cookies are considered fresh. The
// origin's clearance cookies are long-lived, so staleness is a soft
// signal rather than an expiry.
const DefaultMaxAge = 14 * 24 * time.Hour

// Options tunes a Store.
type Options struct {
	// MaxAge overrides DefaultMaxAge.
	MaxAge time.Duration

	// Diagnostics receives errors from background refreshes, which have
	// no caller to return to. Nil discards them after logging.
	Diagnostics func(error)

	// RefreshTimeout bounds a background refresh, which runs detached
	// from any caller context.
	RefreshTimeout time.Duration
}

// Store holds the cookie blob for one origin. Stale cookies are still
// served: they usually keep working long past the freshness window, and
// a background refresh replaces them without blocking the request that
// noticed the staleness. Safe for concurrent use.
type Store struct {
	refresher      Refresher
	maxAge         time.Duration
	refreshTimeout time.Duration
	diagnostics    func(error)

	mu        sync.Mutex
	cookies   string
	fetchedAt time.Time

	group      singleflight.Group
	refreshing atomic.Bool
}

// New creates a session store backed by the given refresher.
func New(r Refresher, opts Options) *Store {
	if opts.MaxAge == 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.RefreshTimeout == 0 {
		opts.RefreshTimeout = 90 * time.Second
	}
	return &Store{
		refresher:      r,
		maxAge:         opts.MaxAge,
		refreshTimeout: opts.RefreshTimeout,
		diagnostics:    opts.Diagnostics,
	}
}

// Get returns the current cookie blob.
//
// Fresh cookies are returned as-is. Stale cookies are returned
// immediately while a background refresh replaces them. With no cookies
// at all, Get blocks on a refresh; concurrent cold-start callers are
// coalesced into one browser launch.
func (s *Store) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	cookies := s.cookies
	age := time.Since(s.fetchedAt)
	s.mu.Unlock()

	if cookies != "" {
		if age > s.maxAge {
			s.refreshInBackground()
		}
		return cookies, nil
	}

	fresh, err := s.Refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return fresh, nil
}

// Refresh forces a blocking refresh and returns the new blob.
// Concurrent callers share a single refresher invocation.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	v, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		cookies, err := s.refresher.RefreshCookies(ctx)
		if err != nil {
			return nil, err
		}
		s.store(cookies)
		return cookies, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the stored cookies so the next Get refreshes.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cookies = ""
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
	logger.Debug("session invalidated")
}

// Age reports how old the stored cookies are, zero when empty.
func (s *Store) Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cookies == "" {
		return 0
	}
	return time.Since(s.fetchedAt)
}

// Stale reports whether stored cookies exist but are past the
// freshness window.
func (s *Store) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookies != "" && time.Since(s.fetchedAt) > s.maxAge
}

func (s *Store) store(cookies string) {
	s.mu.Lock()
	s.cookies = cookies
	s.fetchedAt = time.Now()
	s.mu.Unlock()
}

// refreshInBackground fires one detached refresh. Only one runs at a
// time; further staleness observations while it is in flight are
// no-ops.
func (s *Store) refreshInBackground() {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	logger.Debug("session stale, refreshing in background")
	go func() {
		defer s.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()

		if _, err := s.Refresh(ctx); err != nil {
			logger.Warn("background session refresh failed", "error", err)
			if s.diagnostics != nil {
				s.diagnostics(err)
			}
		}
	}()
}

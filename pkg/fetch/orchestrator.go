package fetch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/pahegate/pahegate/internal/logger"
)

// SessionSource supplies the managed cookie blob for requests that do
// not carry an override. *session.Store satisfies it.
type SessionSource interface {
	Get(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
	Invalidate()
}

// RetryPolicy bounds same-strategy retries for transient transport
// failures. Blocked verdicts never retry the same strategy; they fall
// through the cascade instead.
type RetryPolicy struct {
	// MaxAttempts is the total tries per strategy, minimum 1.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff between retries.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

// DefaultRetryPolicy retries each strategy once after a transient
// failure, with a jittered 1s-then-2s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Orchestrator drives the fetch cascade: it walks the configured
// strategies in order, validates every received response with the block
// detector, and stops at the first genuine result. It implements
// Fetcher.
type Orchestrator struct {
	transports []Transport
	detector   *Detector
	sessions   SessionSource
	policy     RetryPolicy

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator builds the cascade. Strategy order is the caller's
// escalation order; sessions may be nil when no managed session exists
// for the origin.
func NewOrchestrator(transports []Transport, det *Detector, sessions SessionSource, policy RetryPolicy) *Orchestrator {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay == 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxDelay == 0 {
		policy.MaxDelay = 10 * time.Second
	}
	return &Orchestrator{
		transports: transports,
		detector:   det,
		sessions:   sessions,
		policy:     policy,
		sleep:      sleepCtx,
	}
}

// Fetch implements Fetcher. It returns the first genuine response, or
// an *ExhaustedError describing every attempt when no strategy
// produced one. A 400 or 404 from the upstream stops the cascade
// early: the request itself is wrong and no amount of circumvention
// changes that.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) (Result, error) {
	managed := req.CookieOverride == ""

	cookies := req.CookieOverride
	if managed && o.sessions != nil {
		var err error
		cookies, err = o.sessions.Get(ctx)
		if err != nil {
			// Strategies that bring their own clearance can still
			// succeed without cookies.
			logger.Warn("proceeding without session cookies", "url", req.Target(), "error", err)
			cookies = ""
		}
	}

	var (
		attempts   []Attempt
		bestStatus int
		refreshed  bool
	)

	for _, t := range o.transports {
		if !t.Handles(req) {
			continue
		}

		for try := 1; try <= o.policy.MaxAttempts; try++ {
			start := time.Now()
			resp, err := t.Fetch(ctx, req, cookies)
			elapsed := time.Since(start)

			if err != nil {
				attempts = append(attempts, Attempt{
					Strategy: t.Name(), Outcome: OutcomeError,
					Status: transportStatus(err), Elapsed: elapsed, Err: err,
				})
				bestStatus = preferStatus(bestStatus, transportStatus(err))
				if ctx.Err() != nil {
					return Result{}, ctx.Err()
				}
				if isTransient(err) && try < o.policy.MaxAttempts {
					delay := o.backoff(try)
					logger.Debug("transient failure, retrying strategy",
						"strategy", t.Name(), "try", try, "delay", delay, "error", err)
					if serr := o.sleep(ctx, delay); serr != nil {
						return Result{}, serr
					}
					continue
				}
				logger.Debug("strategy failed", "strategy", t.Name(), "error", err)
				break
			}

			verdict := o.detector.Classify(resp.Body, resp.StatusCode, req.Structured)
			if verdict == Genuine && resp.StatusCode != 400 && resp.StatusCode != 404 {
				logger.Debug("fetch succeeded",
					"strategy", t.Name(), "url", req.Target(),
					"status", resp.StatusCode, "elapsed", elapsed)
				return Result{
					Content:    resp.Body,
					StatusCode: resp.StatusCode,
					Strategy:   t.Name(),
					Elapsed:    elapsed,
				}, nil
			}

			attempts = append(attempts, Attempt{
				Strategy: t.Name(), Outcome: OutcomeBlocked,
				Status: resp.StatusCode, Elapsed: elapsed,
			})
			bestStatus = preferStatus(bestStatus, resp.StatusCode)

			// Clean client errors end the cascade outright.
			if resp.StatusCode == 400 || resp.StatusCode == 404 {
				logger.Debug("client error, not escalating",
					"strategy", t.Name(), "url", req.Target(), "status", resp.StatusCode)
				return Result{}, &ExhaustedError{URL: req.Target(), Status: bestStatus, Attempts: attempts}
			}

			// An auth-shaped block with managed cookies gets one forced
			// session refresh before the cascade escalates; a 401 that
			// survives the refresh is a genuine auth failure.
			if (resp.StatusCode == 401 || resp.StatusCode == 403) && managed && o.sessions != nil {
				if refreshed && resp.StatusCode == 401 {
					logger.Debug("auth failure persists after refresh", "url", req.Target())
					return Result{}, &ExhaustedError{URL: req.Target(), Status: bestStatus, Attempts: attempts}
				}
				if !refreshed {
					refreshed = true
					logger.Info("auth-shaped block, forcing session refresh",
						"strategy", t.Name(), "status", resp.StatusCode)
					if fresh, rerr := o.sessions.Refresh(ctx); rerr == nil {
						cookies = fresh
						// Same strategy again with the new cookies.
						try--
						continue
					} else {
						logger.Warn("forced session refresh failed", "error", rerr)
					}
				}
			}

			logger.Debug("blocked response, escalating",
				"strategy", t.Name(), "url", req.Target(), "status", resp.StatusCode)
			break
		}
	}

	logger.Warn("all strategies exhausted", "url", req.Target(), "attempts", len(attempts))
	return Result{}, &ExhaustedError{URL: req.Target(), Status: bestStatus, Attempts: attempts}
}

// backoff computes the jittered delay before retry number try+1.
func (o *Orchestrator) backoff(try int) time.Duration {
	delay := o.policy.BaseDelay << (try - 1)
	if delay > o.policy.MaxDelay {
		delay = o.policy.MaxDelay
	}
	// Up to 25% jitter keeps coordinated clients from hammering in
	// lockstep.
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

// preferStatus keeps the most actionable upstream status across the
// cascade: a specific client error beats the generic block statuses.
func preferStatus(current, next int) int {
	if next == 0 {
		return current
	}
	rank := func(s int) int {
		switch s {
		case 404, 400, 401:
			return 2
		case 0:
			return 0
		default:
			return 1
		}
	}
	if rank(next) > rank(current) {
		return next
	}
	if current == 0 {
		return next
	}
	return current
}

func transportStatus(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

func isTransient(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Transient()
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package fetch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured indicates a strategy was selected that depends on
// unset configuration (e.g. an unblocking-service API key). Check with
// errors.Is.
var ErrNotConfigured = errors.New("strategy not configured")

// TransportError reports a failed transport attempt: a network error, a
// timeout, or a service-level failure. Status is the HTTP status when
// one was observed, 0 otherwise.
type TransportError struct {
	Strategy string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Strategy, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient reports whether the failure looks recoverable: retrying the
// same strategy, or falling through the cascade, might still succeed.
func (e *TransportError) Transient() bool {
	switch {
	case e.Status == 0:
		return true // network error or timeout
	case e.Status == 408, e.Status == 429:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

// BlockedError records a response the block detector classified as a
// challenge page. It is folded into the cascade like a transport
// failure but kept distinct in the final attempt log.
type BlockedError struct {
	Strategy string
	Status   int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: blocked (HTTP %d)", e.Strategy, e.Status)
}

// AttemptOutcome classifies one strategy attempt for diagnostics.
type AttemptOutcome string

const (
	OutcomeBlocked AttemptOutcome = "blocked"
	OutcomeError   AttemptOutcome = "error"
)

// Attempt is the record of one transport try, retained only for the
// failure report and for logs.
type Attempt struct {
	Strategy string
	Outcome  AttemptOutcome
	Status   int
	Elapsed  time.Duration
	Err      error
}

// ExhaustedError is returned when every eligible strategy was tried and
// none produced a genuine response. Status carries the most specific
// upstream signal observed (a clean 404 or 401 is preserved rather
// than masked by later generic block failures).
type ExhaustedError struct {
	URL      string
	Status   int
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all strategies exhausted for %s", e.URL)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s=%s", a.Strategy, a.Outcome)
		if a.Status != 0 {
			fmt.Fprintf(&b, "(%d)", a.Status)
		}
	}
	return b.String()
}

// NotFound reports whether the exhaustion traces back to a clean 404,
// letting callers surface not-found instead of service-unavailable.
func (e *ExhaustedError) NotFound() bool { return e.Status == 404 }

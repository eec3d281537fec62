package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

// genuineBody carries a genuine-page marker so the detector accepts it
// despite being short.
const genuineBody = `<div class="episode-wrap">real content</div>`

// blockedBody is short, markerless, and status 200: a disguised block.
const blockedBody = `<html>hm</html>`

type scriptedCall struct {
	resp Response
	err  error
}

// fakeTransport replays a scripted sequence of outcomes and records
// what it was called with.
type fakeTransport struct {
	name      string
	docOnly   bool
	script    []scriptedCall
	calls     int
	cookieLog []string
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Handles(req Request) bool {
	if f.docOnly {
		return !req.Structured
	}
	return true
}

func (f *fakeTransport) Fetch(_ context.Context, _ Request, cookies string) (Response, error) {
	f.cookieLog = append(f.cookieLog, cookies)
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	c := f.script[idx]
	return c.resp, c.err
}

// fakeSessions is a scripted SessionSource.
type fakeSessions struct {
	cookies      string
	refreshed    string
	getCalls     int
	refreshCalls int
	refreshErr   error
}

func (f *fakeSessions) Get(context.Context) (string, error) {
	f.getCalls++
	return f.cookies, nil
}

func (f *fakeSessions) Refresh(context.Context) (string, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeSessions) Invalidate() {}

func newTestOrchestrator(transports []Transport, sessions SessionSource, maxAttempts int) *Orchestrator {
	o := NewOrchestrator(transports, NewDetector(), sessions, RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	})
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func TestFetch_CascadeOrder(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}
	browser := &fakeTransport{name: "browser", docOnly: true, script: []scriptedCall{
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}

	o := newTestOrchestrator([]Transport{direct, browser}, &fakeSessions{cookies: "sid=1"}, 1)

	res, err := o.Fetch(context.Background(), Request{URL: "https://x.test/page"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Strategy != "direct" {
		t.Errorf("strategy = %q, want direct", res.Strategy)
	}
	if res.Content != genuineBody {
		t.Errorf("unexpected content %q", res.Content)
	}
	if browser.calls != 0 {
		t.Errorf("browser invoked %d times, want 0", browser.calls)
	}
}

func TestFetch_StructuredNeverUsesBrowser(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: "nope", StatusCode: 200}},
	}}
	browser := &fakeTransport{name: "browser", docOnly: true, script: []scriptedCall{
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}

	o := newTestOrchestrator([]Transport{direct, browser}, &fakeSessions{}, 1)

	_, err := o.Fetch(context.Background(), Request{URL: "https://x.test/api", Structured: true})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if browser.calls != 0 {
		t.Errorf("browser invoked %d times for structured request, want 0", browser.calls)
	}
}

func TestFetch_ExhaustedCarriesBestStatus(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{err: &TransportError{Strategy: "direct", Status: 404, Err: errors.New("not found")}},
	}}
	browser := &fakeTransport{name: "browser", docOnly: true, script: []scriptedCall{
		{err: &TransportError{Strategy: "browser", Err: errors.New("browser timeout")}},
	}}

	o := newTestOrchestrator([]Transport{direct, browser}, &fakeSessions{}, 1)

	_, err := o.Fetch(context.Background(), Request{URL: "https://x.test/gone"})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Status != 404 {
		t.Errorf("Status = %d, want 404", ex.Status)
	}
	if !ex.NotFound() {
		t.Error("NotFound() = false, want true")
	}
	if len(ex.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(ex.Attempts))
	}
}

func TestFetch_NotFoundShortCircuitsCascade(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: "not found", StatusCode: 404}},
	}}
	browser := &fakeTransport{name: "browser", docOnly: true, script: []scriptedCall{
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}

	o := newTestOrchestrator([]Transport{direct, browser}, &fakeSessions{}, 3)

	_, err := o.Fetch(context.Background(), Request{URL: "https://x.test/gone"})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if !ex.NotFound() {
		t.Errorf("Status = %d, want 404", ex.Status)
	}
	if direct.calls != 1 {
		t.Errorf("direct retried %d times on 404, want 1", direct.calls)
	}
	if browser.calls != 0 {
		t.Errorf("browser invoked %d times after 404, want 0", browser.calls)
	}
}

func TestFetch_AuthRefreshRetriesSameStrategy(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: "denied", StatusCode: 403}},
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}
	sessions := &fakeSessions{cookies: "sid=old", refreshed: "sid=new"}

	o := newTestOrchestrator([]Transport{direct}, sessions, 1)

	res, err := o.Fetch(context.Background(), Request{URL: "https://x.test/page"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Strategy != "direct" {
		t.Errorf("strategy = %q, want direct", res.Strategy)
	}
	if sessions.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", sessions.refreshCalls)
	}
	if len(direct.cookieLog) != 2 || direct.cookieLog[1] != "sid=new" {
		t.Errorf("cookie log = %v, want second call with refreshed cookies", direct.cookieLog)
	}
}

func TestFetch_OverrideSkipsSessionAndRefresh(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: "denied", StatusCode: 403}},
	}}
	sessions := &fakeSessions{cookies: "sid=managed", refreshed: "sid=new"}

	o := newTestOrchestrator([]Transport{direct}, sessions, 1)

	_, err := o.Fetch(context.Background(), Request{
		URL:            "https://x.test/page",
		CookieOverride: "user=own",
	})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if sessions.getCalls != 0 {
		t.Errorf("session Get called %d times despite override, want 0", sessions.getCalls)
	}
	if sessions.refreshCalls != 0 {
		t.Errorf("session Refresh called %d times despite override, want 0", sessions.refreshCalls)
	}
	if direct.cookieLog[0] != "user=own" {
		t.Errorf("transport saw cookies %q, want override", direct.cookieLog[0])
	}
}

func TestFetch_PersistentAuthFailureStops(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: "denied", StatusCode: 401}},
		{resp: Response{Body: "denied", StatusCode: 401}},
	}}
	browser := &fakeTransport{name: "browser", docOnly: true, script: []scriptedCall{
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}
	sessions := &fakeSessions{cookies: "sid=old", refreshed: "sid=new"}

	o := newTestOrchestrator([]Transport{direct, browser}, sessions, 1)

	_, err := o.Fetch(context.Background(), Request{URL: "https://x.test/page"})

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Status != 401 {
		t.Errorf("Status = %d, want 401", ex.Status)
	}
	if sessions.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", sessions.refreshCalls)
	}
	if browser.calls != 0 {
		t.Errorf("browser invoked %d times after persistent 401, want 0", browser.calls)
	}
}

func TestFetch_TransientErrorRetriesWithBackoff(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{err: &TransportError{Strategy: "direct", Status: 503, Err: errors.New("bad gateway")}},
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}

	o := newTestOrchestrator([]Transport{direct}, &fakeSessions{}, 2)

	var slept int
	o.sleep = func(context.Context, time.Duration) error {
		slept++
		return nil
	}

	res, err := o.Fetch(context.Background(), Request{URL: "https://x.test/page"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Strategy != "direct" {
		t.Errorf("strategy = %q, want direct", res.Strategy)
	}
	if direct.calls != 2 {
		t.Errorf("direct calls = %d, want 2", direct.calls)
	}
	if slept != 1 {
		t.Errorf("backoff sleeps = %d, want 1", slept)
	}
}

func TestFetch_BlockedEscalatesWithoutRetry(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: blockedBody, StatusCode: 200}},
	}}
	browser := &fakeTransport{name: "browser", docOnly: true, script: []scriptedCall{
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}

	o := newTestOrchestrator([]Transport{direct, browser}, &fakeSessions{}, 3)

	res, err := o.Fetch(context.Background(), Request{URL: "https://x.test/page"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Strategy != "browser" {
		t.Errorf("strategy = %q, want browser", res.Strategy)
	}
	if direct.calls != 1 {
		t.Errorf("direct calls = %d, want 1 (blocked verdicts escalate, not retry)", direct.calls)
	}
}

func TestFetch_Idempotent(t *testing.T) {
	direct := &fakeTransport{name: "direct", script: []scriptedCall{
		{resp: Response{Body: genuineBody, StatusCode: 200}},
	}}

	o := newTestOrchestrator([]Transport{direct}, &fakeSessions{cookies: "sid=1"}, 1)

	req := Request{URL: "https://x.test/page"}
	first, err := o.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	second, err := o.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if first.Content != second.Content {
		t.Error("identical requests produced different content")
	}
}

func TestPreferStatus(t *testing.T) {
	tests := []struct {
		current, next, want int
	}{
		{0, 403, 403},
		{403, 404, 404},
		{404, 403, 404},
		{404, 0, 404},
		{401, 500, 401},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := preferStatus(tt.current, tt.next); got != tt.want {
			t.Errorf("preferStatus(%d, %d) = %d, want %d", tt.current, tt.next, got, tt.want)
		}
	}
}

func TestTransportError_Transient(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{0, true},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
		{404, false},
		{401, false},
		{400, false},
	}
	for _, c := range cases {
		e := &TransportError{Strategy: "x", Status: c.status, Err: errors.New("e")}
		if e.Transient() != c.want {
			t.Errorf("Transient() with status %d = %v, want %v", c.status, e.Transient(), c.want)
		}
	}
}

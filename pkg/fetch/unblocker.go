package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pahegate/pahegate/internal/logger"
)

// Tier selects how aggressively the unblocking service works a request.
// Higher tiers cost more credits and take longer, so the cascade runs
// them as separate strategies in escalation order.
type Tier string

const (
	// TierBasic renders the page in the service's browser pool.
	TierBasic Tier = "basic"
	// TierPremium adds residential proxies.
	TierPremium Tier = "premium"
	// TierStealth uses the service's strongest anti-bot circumvention.
	TierStealth Tier = "stealth"
)

// tierParams maps each tier onto the service's request parameters.
var tierParams = map[Tier]map[string]string{
	TierBasic:   {"render": "true"},
	TierPremium: {"render": "true", "premium": "true"},
	TierStealth: {"render": "true", "ultra_premium": "true"},
}

// DefaultUnblockerEndpoint is the proxy API of the commercial unblocking
// service.
const DefaultUnblockerEndpoint = "https://api.scraperapi.com"

// UnblockerConfig configures one unblocking-service strategy instance.
type UnblockerConfig struct {
	// APIKey authenticates against the service. An empty key makes the
	// strategy report ErrNotConfigured on use.
	APIKey string

	// Endpoint overrides DefaultUnblockerEndpoint, mostly for tests.
	Endpoint string

	// Tier selects the circumvention level, TierBasic when unset.
	Tier Tier

	// CountryCode pins the service's exit geography.
	CountryCode string

	Timeout time.Duration
}

// Unblocker routes requests through a commercial unblocking service
// that solves challenges on its own infrastructure and proxies back the
// upstream response. Last resort of the cascade.
type Unblocker struct {
	cfg    UnblockerConfig
	client *http.Client
}

// NewUnblocker creates an unblocking-service strategy for one tier.
func NewUnblocker(cfg UnblockerConfig) *Unblocker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultUnblockerEndpoint
	}
	if cfg.Tier == "" {
		cfg.Tier = TierBasic
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Unblocker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Transport. Each tier is a distinct strategy in the
// attempt log.
func (u *Unblocker) Name() string { return "unblocker-" + string(u.cfg.Tier) }

// Handles implements Transport. The service proxies both documents and
// JSON endpoints.
func (u *Unblocker) Handles(Request) bool { return true }

// Fetch implements Transport. The session cookie blob is not forwarded:
// the service manages its own browser sessions and clearance state.
func (u *Unblocker) Fetch(ctx context.Context, req Request, _ string) (Response, error) {
	if u.cfg.APIKey == "" {
		return Response{}, &TransportError{Strategy: u.Name(), Err: ErrNotConfigured}
	}

	q := url.Values{}
	q.Set("api_key", u.cfg.APIKey)
	q.Set("url", req.Target())
	for k, v := range tierParams[u.cfg.Tier] {
		q.Set(k, v)
	}
	if u.cfg.CountryCode != "" {
		q.Set("country_code", u.cfg.CountryCode)
	}

	serviceURL := u.cfg.Endpoint + "/?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return Response{}, &TransportError{Strategy: u.Name(), Err: err}
	}

	resp, err := u.client.Do(httpReq)
	if err != nil {
		logger.Warn("unblocking service unreachable", "tier", u.cfg.Tier, "error", err)
		return Response{}, &TransportError{Strategy: u.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &TransportError{Strategy: u.Name(), Err: fmt.Errorf("reading service response: %w", err)}
	}

	// A 5xx or 429 is the service failing, not the upstream answering;
	// everything else is the proxied upstream response and goes to the
	// block detector like any other.
	if resp.StatusCode >= 500 || resp.StatusCode == 429 {
		logger.Warn("unblocking service failed",
			"tier", u.cfg.Tier, "status", resp.StatusCode, "url", req.Target())
		return Response{}, &TransportError{
			Strategy: u.Name(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("service error %d", resp.StatusCode),
		}
	}

	logger.Debug("unblocker fetch",
		"tier", u.cfg.Tier, "url", req.Target(), "status", resp.StatusCode, "size", len(body))
	return Response{Body: string(body), StatusCode: resp.StatusCode}, nil
}

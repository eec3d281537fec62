package commands

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pahegate/pahegate/internal/cache"
	"github.com/pahegate/pahegate/internal/logger"
	"github.com/pahegate/pahegate/pkg/fetch"
	"github.com/pahegate/pahegate/pkg/pahe"
	"github.com/pahegate/pahegate/pkg/session"
)

// engineConfig collects everything the cascade needs, pulled from
// flags, env, and config file. Validated before any strategy is built.
type engineConfig struct {
	BaseURL   string `validate:"required,url"`
	UserAgent string

	Cookies string

	NoBrowser bool

	UnblockerAPIKey   string
	UnblockerEndpoint string `validate:"omitempty,url"`
	UnblockerCountry  string `validate:"omitempty,len=2"`

	SessionMaxAge time.Duration `validate:"min=0"`
	CacheTTL      time.Duration `validate:"min=0"`
	NoCache       bool
}

func configFromViper() engineConfig {
	cfg := engineConfig{
		BaseURL:           viper.GetString("base-url"),
		UserAgent:         viper.GetString("user-agent"),
		Cookies:           viper.GetString("cookies"),
		NoBrowser:         viper.GetBool("no-browser"),
		UnblockerAPIKey:   viper.GetString("unblocker-api-key"),
		UnblockerEndpoint: viper.GetString("unblocker-endpoint"),
		UnblockerCountry:  viper.GetString("unblocker-country"),
		SessionMaxAge:     viper.GetDuration("session-max-age"),
		CacheTTL:          viper.GetDuration("cache-ttl"),
		NoCache:           viper.GetBool("no-cache"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = pahe.DefaultBaseURL
	}
	return cfg
}

// engine bundles the assembled components a command works with.
type engine struct {
	fetcher  fetch.Fetcher
	sessions *session.Store
	browser  *fetch.Browser
	client   *pahe.Client
}

// buildEngine validates the configuration and assembles the cascade:
// direct HTTP, then the headless browser, then the unblocker tiers in
// escalation order.
func buildEngine(cfg engineConfig) (*engine, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	origin := fetch.Origin{BaseURL: cfg.BaseURL, UserAgent: cfg.UserAgent}
	detector := fetch.NewDetector()

	browser := fetch.NewBrowser(fetch.BrowserConfig{Origin: origin}, detector)

	var sessions *session.Store
	if cfg.Cookies == "" {
		sessions = session.New(browser, session.Options{
			MaxAge: cfg.SessionMaxAge,
			Diagnostics: func(err error) {
				logger.Error("background session refresh failed", "error", err)
			},
		})
	}

	transports := []fetch.Transport{
		fetch.NewDirect(fetch.DirectConfig{Origin: origin}),
	}
	if !cfg.NoBrowser {
		transports = append(transports, browser)
	}
	if cfg.UnblockerAPIKey != "" {
		for _, tier := range []fetch.Tier{fetch.TierBasic, fetch.TierPremium, fetch.TierStealth} {
			transports = append(transports, fetch.NewUnblocker(fetch.UnblockerConfig{
				APIKey:      cfg.UnblockerAPIKey,
				Endpoint:    cfg.UnblockerEndpoint,
				Tier:        tier,
				CountryCode: cfg.UnblockerCountry,
			}))
		}
	}

	var fetcher fetch.Fetcher = fetch.NewOrchestrator(transports, detector, sessionSource(sessions), fetch.DefaultRetryPolicy())
	if !cfg.NoCache {
		fetcher = cache.New(fetcher, cfg.CacheTTL)
	}

	logger.Debug("engine assembled",
		"origin", cfg.BaseURL,
		"strategies", len(transports),
		"managed_session", sessions != nil,
		"cache", !cfg.NoCache)

	return &engine{
		fetcher:  fetcher,
		sessions: sessions,
		browser:  browser,
		client:   pahe.New(fetcher, cfg.BaseURL),
	}, nil
}

// callOpts returns the per-call client options: the static cookie
// override when one is configured, nothing otherwise.
func (e *engine) callOpts() []pahe.RequestOption {
	if c := staticCookies(); c != "" {
		return []pahe.RequestOption{pahe.WithCookies(c)}
	}
	return nil
}

// sessionSource keeps a nil *session.Store from becoming a non-nil
// interface value inside the orchestrator.
func sessionSource(s *session.Store) fetch.SessionSource {
	if s == nil {
		return nil
	}
	return s
}

// staticCookies returns the configured cookie override, empty when the
// managed session is in use.
func staticCookies() string {
	return viper.GetString("cookies")
}

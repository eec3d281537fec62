package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pahegate/pahegate/internal/logger"
	"github.com/pahegate/pahegate/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the clearance cookie session",
}

var sessionRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Mint fresh clearance cookies with the headless browser",
	Long: `Launch the stealth browser against the origin home page, let the bot
wall's challenge resolve, and print the captured Cookie header.

The output can be exported for later runs:
  export PAHEGATE_COOKIES="$(pahegate session refresh -q)"`,
	RunE: runSessionRefresh,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the session configuration in effect",
	RunE:  runSessionShow,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionRefreshCmd, sessionShowCmd)
}

func runSessionRefresh(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log-json"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := buildEngine(configFromViper())
	if err != nil {
		logError("%v", err)
		return err
	}

	cookies, err := eng.browser.RefreshCookies(ctx)
	if err != nil {
		logError("session refresh failed: %v", err)
		return err
	}

	logInfo("captured %d cookies", len(strings.Split(cookies, "; ")))
	fmt.Fprintln(cmd.OutOrStdout(), cookies)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	cfg := configFromViper()
	out := cmd.OutOrStdout()

	if cfg.Cookies != "" {
		fmt.Fprintf(out, "mode:      static override (%d cookies)\n", len(strings.Split(cfg.Cookies, "; ")))
	} else {
		fmt.Fprintln(out, "mode:      managed (browser-refreshed)")
	}
	maxAge := cfg.SessionMaxAge
	if maxAge == 0 {
		maxAge = session.DefaultMaxAge
	}
	fmt.Fprintf(out, "max age:   %s\n", maxAge)
	fmt.Fprintf(out, "origin:    %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "browser:   %v\n", !cfg.NoBrowser)
	fmt.Fprintf(out, "unblocker: %v\n", cfg.UnblockerAPIKey != "")
	return nil
}

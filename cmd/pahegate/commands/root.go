// Package commands implements the CLI commands for pahegate.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pahegate",
	Short: "Resilient fetch engine for a bot-walled anime streaming site",
	Long: `Pahegate fetches pages and API payloads from a DDoS-Guard protected
upstream through an escalating cascade of strategies: plain HTTP with a
managed cookie session, a stealth headless browser, and optionally a
commercial unblocking service.

Examples:
  # Fetch one page through the cascade
  pahegate get "https://animepahe.ru/anime"

  # Query the structured API
  pahegate api airing --page 2
  pahegate api search -q "frieren"

  # Mint fresh clearance cookies with the headless browser
  pahegate session refresh`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.pahegate.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "structured JSON logs")

	rootCmd.PersistentFlags().String("base-url", "", "upstream origin (default https://animepahe.ru)")
	rootCmd.PersistentFlags().String("user-agent", "", "override the presented user agent")
	rootCmd.PersistentFlags().String("cookies", "", "static Cookie header, disables the managed session")
	rootCmd.PersistentFlags().String("unblocker-api-key", "", "unblocking service API key (enables the unblocker tiers)")
	rootCmd.PersistentFlags().String("unblocker-endpoint", "", "unblocking service endpoint override")
	rootCmd.PersistentFlags().String("unblocker-country", "", "unblocking service exit country code")
	rootCmd.PersistentFlags().Bool("no-browser", false, "disable the headless browser strategy")
	rootCmd.PersistentFlags().Duration("session-max-age", 0, "cookie freshness window (default 336h)")
	rootCmd.PersistentFlags().Duration("cache-ttl", 0, "response cache TTL (default 5m)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "disable the response cache")

	for _, name := range []string{
		"config", "debug", "quiet", "log-json",
		"base-url", "user-agent", "cookies",
		"unblocker-api-key", "unblocker-endpoint", "unblocker-country",
		"no-browser", "session-max-age", "cache-ttl", "no-cache",
	} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".pahegate")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PAHEGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// The service's own variable name works too
	_ = viper.BindEnv("unblocker-api-key", "PAHEGATE_UNBLOCKER_API_KEY", "SCRAPERAPI_KEY")

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pahegate/pahegate/internal/logger"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Query the upstream's structured API",
	Long: `Query the upstream's JSON API through the cascade and print typed
results.

Examples:
  pahegate api airing --page 2
  pahegate api search -q "frieren"
  pahegate api queue
  pahegate api releases --id SESSION --sort episode_desc`,
}

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.PersistentFlags().StringP("output", "o", "", "output file (default: stdout)")
	apiCmd.PersistentFlags().String("format", "json", "output format: json, jsonl, yaml")

	airing := &cobra.Command{
		Use:   "airing",
		Short: "Currently airing episode feed",
		RunE:  runAiring,
	}
	airing.Flags().Int("page", 1, "result page")

	search := &cobra.Command{
		Use:   "search",
		Short: "Search the catalogue",
		RunE:  runSearch,
	}
	search.Flags().StringP("query", "q", "", "search query (required)")
	search.Flags().Int("page", 1, "result page")
	_ = search.MarkFlagRequired("query")

	queue := &cobra.Command{
		Use:   "queue",
		Short: "Upstream encoding queue",
		RunE:  runQueue,
	}

	releases := &cobra.Command{
		Use:   "releases",
		Short: "Episode listing of one anime",
		RunE:  runReleases,
	}
	releases.Flags().String("id", "", "anime session id (required)")
	releases.Flags().String("sort", "", "episode_asc or episode_desc")
	releases.Flags().Int("page", 1, "result page")
	_ = releases.MarkFlagRequired("id")

	apiCmd.AddCommand(airing, search, queue, releases)
}

// apiContext initializes logging and assembles the engine for one api
// subcommand run.
func apiContext() (context.Context, context.CancelFunc, *engine, error) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log-json"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	eng, err := buildEngine(configFromViper())
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, eng, nil
}

func runAiring(cmd *cobra.Command, args []string) error {
	ctx, cancel, eng, err := apiContext()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer cancel()

	page, _ := cmd.Flags().GetInt("page")
	result, err := eng.client.Airing(ctx, page, eng.callOpts()...)
	if err != nil {
		logError("airing: %v", err)
		return err
	}

	logInfo("airing page %d: %d of %d items", result.CurrentPage, len(result.Data), result.Total)
	return writePayload(cmd, result)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel, eng, err := apiContext()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer cancel()

	query, _ := cmd.Flags().GetString("query")
	page, _ := cmd.Flags().GetInt("page")

	result, err := eng.client.Search(ctx, query, page, eng.callOpts()...)
	if err != nil {
		logError("search: %v", err)
		return err
	}

	logInfo("search %q: %d of %d results", query, len(result.Data), result.Total)
	return writePayload(cmd, result)
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx, cancel, eng, err := apiContext()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer cancel()

	result, err := eng.client.Queue(ctx, eng.callOpts()...)
	if err != nil {
		logError("queue: %v", err)
		return err
	}

	logInfo("queue: %d entries", len(result.Data))
	return writePayload(cmd, result)
}

func runReleases(cmd *cobra.Command, args []string) error {
	ctx, cancel, eng, err := apiContext()
	if err != nil {
		logError("%v", err)
		return err
	}
	defer cancel()

	id, _ := cmd.Flags().GetString("id")
	sort, _ := cmd.Flags().GetString("sort")
	page, _ := cmd.Flags().GetInt("page")

	if sort != "" && sort != "episode_asc" && sort != "episode_desc" {
		err := fmt.Errorf("invalid sort %q (use episode_asc or episode_desc)", sort)
		logError("%v", err)
		return err
	}

	result, err := eng.client.Releases(ctx, id, sort, page, eng.callOpts()...)
	if err != nil {
		logError("releases: %v", err)
		return err
	}

	logInfo("releases for %s page %d: %d of %d episodes", id, result.CurrentPage, len(result.Data), result.Total)
	return writePayload(cmd, result)
}

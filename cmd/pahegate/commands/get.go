package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pahegate/pahegate/internal/logger"
	"github.com/pahegate/pahegate/internal/output"
	"github.com/pahegate/pahegate/pkg/fetch"
)

// timeRound keeps reported durations readable.
const timeRound = 10 * time.Millisecond

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Fetch one URL through the strategy cascade",
	Long: `Fetch a single URL, escalating through the configured strategies until
one produces a genuine response.

Examples:
  pahegate get "https://animepahe.ru/anime"
  pahegate get --structured "https://animepahe.ru/api?m=queue"
  pahegate get -o page.html "https://animepahe.ru/anime/some-session-id"`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)

	flags := getCmd.Flags()
	flags.Bool("structured", false, "treat the endpoint as JSON API-shaped")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "raw", "output format: raw, json, jsonl, yaml")
}

func runGet(cmd *cobra.Command, args []string) error {
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

	structured, _ := cmd.Flags().GetBool("structured")
	req := fetch.Request{
		URL:            args[0],
		Structured:     structured,
		CookieOverride: staticCookies(),
	}

	res, err := eng.fetcher.Fetch(ctx, req)
	if err != nil {
		logError("fetch failed: %v", err)
		return err
	}

	logInfo("fetched %s via %s (%s in %s)",
		args[0], res.Strategy, humanize.Bytes(uint64(len(res.Content))), res.Elapsed.Round(timeRound))

	return writePayload(cmd, res.Content)
}

// writePayload emits a payload honoring the command's output and format
// flags.
func writePayload(cmd *cobra.Command, payload any) error {
	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logError("failed to create output file: %v", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		logError("%v", err)
		return err
	}

	writer, err := output.NewWriter(outFile, format)
	if err != nil {
		logError("%v", err)
		return err
	}
	if err := writer.Write(payload); err != nil {
		logError("failed to write output: %v", err)
		return err
	}
	return writer.Flush()
}

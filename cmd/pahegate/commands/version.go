package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pahegate/pahegate/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writePayload(cmd, version.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "print as JSON")
	versionCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	versionCmd.Flags().String("format", "json", "output format when --json is set")
}

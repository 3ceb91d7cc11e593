// Package cmd implements the dingclaw CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🦞"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "dingclaw",
	Short: logo + " dingclaw — DingTalk robot gateway",
	Long:  logo + " dingclaw — a Stream-mode DingTalk robot gateway for agent frameworks",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(channelsCmd)
}

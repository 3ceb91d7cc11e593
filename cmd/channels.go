package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dingclaw/dingclaw/internal/config"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage chat channels",
}

func init() {
	channelsCmd.AddCommand(channelsStatusCmd)
}

var channelsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show channel status",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		type row struct{ name, enabled, detail string }
		rows := []row{
			{"CLI", "✓", "stdin/stdout"},
			{
				"DingTalk",
				yesNo(cfg.Channels.DingTalk.Enabled),
				tokenHint(cfg.Channels.DingTalk.ClientID),
			},
		}

		fmt.Printf("%-12s %-8s %s\n", "Channel", "Enabled", "Configuration")
		fmt.Println(strings.Repeat("-", 60))
		for _, r := range rows {
			fmt.Printf("%-12s %-8s %s\n", r.name, r.enabled, r.detail)
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func tokenHint(s string) string {
	if s == "" {
		return "(not configured)"
	}

	if len(s) > 10 {
		return s[:10] + "..."
	}

	return s
}

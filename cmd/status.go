package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dingclaw/dingclaw/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dingclaw status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s dingclaw Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	media := cfg.MediaPath()
	_, mediaErr := os.Stat(media)
	mediaMark := "✗"
	if mediaErr == nil {
		mediaMark = "✓"
	}
	fmt.Printf("Media dir: %s %s\n", media, mediaMark)

	host := cfg.Host.Endpoint
	if host == "" {
		host = "(echo mode)"
	}
	fmt.Printf("Host:      %s\n\n", host)

	dt := cfg.Channels.DingTalk
	fmt.Println("DingTalk:")
	fmt.Printf("  Enabled:   %s\n", yesNo(dt.Enabled))
	fmt.Printf("  ClientID:  %s\n", tokenHint(dt.ClientID))
	fmt.Printf("  RobotCode: %s\n", tokenHint(dt.EffectiveRobotCode()))
	if len(dt.AllowFrom) > 0 {
		fmt.Printf("  AllowFrom: %d sender(s)\n", len(dt.AllowFrom))
	}
	return nil
}

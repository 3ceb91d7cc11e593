package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dingclaw/dingclaw/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and data directories",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.MediaPath(), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}
	fmt.Printf("✓ Media dir at %s\n", cfg.MediaPath())

	fmt.Printf("\n%s dingclaw is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your robot clientId/clientSecret to %s\n", cfgPath)
	fmt.Println("     Create a robot at: https://open-dev.dingtalk.com")
	fmt.Printf("  2. Point host.endpoint at your agent framework\n")
	fmt.Printf("  3. Run: dingclaw gateway\n")
	return nil
}

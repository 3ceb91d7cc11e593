package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dingclaw/dingclaw/internal/config"
	"github.com/dingclaw/dingclaw/internal/dependency"
)

var gatewayVerbose bool

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the dingclaw gateway",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().BoolVarP(&gatewayVerbose, "verbose", "v", false, "Verbose logging")
}

func runGateway(_ *cobra.Command, _ []string) error {
	if gatewayVerbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("%s Starting dingclaw gateway...\n", logo)

	c, err := dependency.New(cfg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	mgr := c.ChannelManager()
	if enabled := mgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("Warning: no channels enabled")
	}
	if cfg.Host.Endpoint == "" {
		fmt.Println("Warning: no host endpoint configured, replies echo the inbound text")
	}

	g.Go(func() error { return c.RespondLoop().Run(gctx) })
	g.Go(func() error { return mgr.StartAll(gctx) })
	g.Go(func() error { return c.CronService().Start(gctx) })
	if cfg.Gateway.HeartbeatSeconds > 0 {
		g.Go(func() error { return c.HeartbeatService().Start(gctx) })
	}

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rahul/gridpilot/internal/gateway"
	"github.com/rahul/gridpilot/internal/observability"
	"github.com/rahul/gridpilot/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP backend (agent chat and formula endpoints)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		observability.PrintBanner(os.Stdout)
		logger := observability.NewLogger(cfg.Logging.Dir)

		stack, err := newAgentStack(cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		var gw gateway.Gateway = gateway.NewServer(cfg.Backend.Listen, stack.brain, stack.formulas, logger)
		if err := gw.Start(ctx); err != nil {
			return err
		}
		log.Println("HTTP backend stopped.")
		return nil
	},
}

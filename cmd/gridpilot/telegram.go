package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rahul/gridpilot/internal/extract"
	"github.com/rahul/gridpilot/internal/gateway"
	"github.com/rahul/gridpilot/internal/governance"
	"github.com/rahul/gridpilot/internal/observability"
	"github.com/rahul/gridpilot/internal/session"
	"github.com/rahul/gridpilot/pkg/config"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Drive workbook sessions from a Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		tgCfg, ok := cfg.GetTelegramConfig()
		if !ok {
			return fmt.Errorf("telegram gateway is not enabled or token is missing")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		observability.PrintBanner(os.Stdout)
		logger := observability.NewLogger(cfg.Logging.Dir)

		backend, closeBackend, err := newBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer closeBackend()

		// Every chat drives the same workbook.
		engine, host := newEngine(cfg)
		defer host.Close()

		extractor := extract.New()
		policy := governance.NewSnippetPolicy()

		tg, err := gateway.NewTelegramGateway(tgCfg.Token, func(chatID int64) *session.Session {
			return session.New(backend, extractor, policy, engine, session.Options{
				ConversationID: fmt.Sprintf("tg_%d", chatID),
				IncludeTable:   cfg.App.IncludeTable,
				ReportChanges:  cfg.App.ReportChanges,
				Logger:         logger,
			})
		})
		if err != nil {
			return err
		}

		var gw gateway.Gateway = tg
		if err := gw.Start(ctx); err != nil {
			return err
		}
		log.Println("Telegram gateway stopped.")
		return nil
	},
}

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"comitebot/pkg/channel"
	"comitebot/pkg/gateway"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	Long:  "Long-polls Telegram, runs the conversation flow for every user, and serves /healthz and /readyz.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadRuntime("cmd.serve")
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bot, err := newApp(runCtx, cfg, log)
		if err != nil {
			log.Error("Bot configuration invalid", "error", err)
			return err
		}
		defer func() {
			if err := bot.Close(); err != nil {
				log.Warn("Failed to close session store", "error", err)
			}
		}()

		opts := []gateway.Option{gateway.WithEvents(bot.events)}
		if sweeper, ok := sweeperFor(bot.store); ok && cfg.Session.TTL > 0 {
			opts = append(opts, gateway.WithSweeper(sweeper, 0))
		}

		svc, err := gateway.NewService(cfg.Gateway, bot.controller, []channel.Adapter{bot.adapter}, log, opts...)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return err
		}

		log.Info("Bot started",
			"bot", cfg.Telegram.BotUsername,
			"session_store", cfg.Session.Store,
			"session_ttl", cfg.Session.TTL,
			"forward_attempts", cfg.Forward.MaxAttempts,
		)
		if err := svc.Run(runCtx); err != nil {
			if runCtx.Err() != nil {
				return nil
			}
			log.Error("Bot stopped with error", "error", err)
			return err
		}

		log.Info("Bot stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ircbot/internal/app"
	"github.com/vovakirdan/ircbot/internal/config"
	applog "github.com/vovakirdan/ircbot/internal/log"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "ircbot:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "ircbot",
		Short:         "IRC bot with reconnects, throttled output and admin commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("server", "", "IRC server address")
	flags.Int("port", 6667, "IRC server port")
	flags.Bool("ssl", false, "connect with TLS")
	flags.String("channel", "", "channel to join; the leading # is optional")
	flags.String("key", "", "channel key")

	return cmd
}

func run(cmd *cobra.Command, configPath string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger := applog.New(level)

	cfg, path, err := config.Load(logger, configPath, cmd.Flags())
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger = applog.New(cfg.Log.Level)
	logger.Info().
		Str("config", path).
		Str("server", cfg.Server.Addr()).
		Bool("tls", cfg.Server.TLS).
		Str("channel", cfg.Channel.Name).
		Msg("starting ircbot")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return err
	}

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("bot exited with error")
		return fmt.Errorf("run: %w", err)
	}
	logger.Info().Msg("bot stopped")
	return nil
}

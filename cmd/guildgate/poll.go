package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"guildgate/internal/app"
	"guildgate/internal/config"
)

func runPoll(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPoll(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := app.NewPoll(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("poll start",
		zap.String("feed", cfg.FeedURL),
		zap.Duration("interval", cfg.Interval),
		zap.Float64("min_lat", cfg.MinLat),
		zap.Float64("max_lat", cfg.MaxLat),
		zap.Float64("min_lon", cfg.MinLon),
		zap.Float64("max_lon", cfg.MaxLon),
		zap.Bool("webhook", cfg.WebhookURL != ""),
		zap.Int("dedup_size", cfg.DedupSize),
		zap.String("seen_file", cfg.SeenFile),
	)

	return p.Poller.Run(ctx)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"guildgate/internal/api"
	"guildgate/internal/app"
	"guildgate/internal/config"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(cfg.AdminTokens) == 0 {
		logger.Warn("no admin token configured, admin commands are disabled")
	}

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Bool("chain_oracle", a.Oracles.Chain != nil),
		zap.Bool("indexer_oracle", a.Oracles.Indexer != nil),
		zap.Int("verify_limit", cfg.VerifyLimit),
		zap.Duration("verify_window", cfg.VerifyWindow),
		zap.String("audit_log", cfg.AuditLog),
	)

	return api.NewServer(a, api.Config{AdminTokens: cfg.AdminTokens}).Run(ctx, cfg.Listen)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"guildgate/internal/app"
	"guildgate/internal/config"
	"guildgate/internal/storage"
	"guildgate/internal/storage/postgres"
	"guildgate/internal/verify"
)

func loadStoreCommand(cmd *cobra.Command) (config.ServeConfig, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return config.ServeConfig{}, nil, err
	}
	if cfg.PGDSN == "" {
		return config.ServeConfig{}, nil, fmt.Errorf("pg dsn is required")
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return config.ServeConfig{}, nil, err
	}
	return cfg, logger, nil
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadStoreCommand(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func runSetConfig(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadStoreCommand(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	guild, _ := cmd.Flags().GetString("guild")
	indexerKey, _ := cmd.Flags().GetString("indexer-key")
	contract, _ := cmd.Flags().GetString("contract")
	role, _ := cmd.Flags().GetString("role")
	oracleKind, _ := cmd.Flags().GetString("oracle")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	saved, err := a.Service.SetConfig(ctx, verify.SetConfigRequest{
		GuildName:       guild,
		IndexerKey:      indexerKey,
		ContractAddress: contract,
		RoleName:        role,
		Oracle:          oracleKind,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configured %s: contract=%s role=%s oracle=%s\n",
		saved.GuildKey, saved.AssetContract.Hex(), saved.RoleName, saved.OracleKindOrDefault())
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadStoreCommand(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	guildFlag, _ := cmd.Flags().GetString("guild")
	if guildFlag != "" && len(args) > 1 {
		return fmt.Errorf("--guild applies to a single file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	for _, path := range args {
		guildName := guildFlag
		if guildName == "" {
			name, ok := storage.LegacyGuildName(path)
			if !ok {
				return fmt.Errorf("%s: cannot derive guild name, pass --guild", path)
			}
			guildName = name
		}
		guildKey, err := storage.SanitizeGuildKey(guildName)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		records, skipped, err := storage.ReadLegacyMembers(path, guildKey)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := store.ImportVerifications(ctx, records); err != nil {
			return fmt.Errorf("%s: import: %w", path, err)
		}

		logger.Info("legacy file imported",
			zap.String("file", path),
			zap.String("guild", guildKey),
			zap.Int("imported", len(records)),
			zap.Strings("skipped", skipped),
		)
	}
	return nil
}

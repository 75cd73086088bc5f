package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"guildgate/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "guildgate",
		Short:        "Token-gated role verification and event feed notifier",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the verification commands over HTTP",
		RunE:  runServe,
	}
	addStoreFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("rpc", "", "EVM JSON-RPC URL for the chain oracle")
	serveCmd.Flags().String("token-id", "", "token id checked by ownerOf")
	serveCmd.Flags().String("chain-method", "ownerOf", "chain oracle read (ownerOf, balanceOf)")
	serveCmd.Flags().String("indexer-url", "", "asset indexer endpoint for the indexer oracle")
	serveCmd.Flags().Duration("oracle-timeout", 10*time.Second, "timeout for one ownership check")
	serveCmd.Flags().String("redis-addr", "", "Redis address for shared rate limits, empty means in-process")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Int("redis-db", 0, "Redis database")
	serveCmd.Flags().Int("verify-limit", 1, "verify attempts allowed per member per window")
	serveCmd.Flags().Duration("verify-window", time.Minute, "verify rate limit window")
	serveCmd.Flags().Int("list-limit", 1, "listings allowed per guild per window")
	serveCmd.Flags().Duration("list-window", 30*time.Second, "listing rate limit window")
	serveCmd.Flags().StringSlice("admin-token", nil, "tokens accepted for admin commands (comma-separated)")
	serveCmd.Flags().String("audit-log", "", "optional JSONL audit log of membership changes")
	addLogFlags(serveCmd.Flags())

	root.AddCommand(serveCmd)

	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the event feed and notify new events once",
		RunE:  runPoll,
	}
	pollCmd.Flags().String("feed-url", "", "GeoJSON feed URL")
	pollCmd.Flags().Duration("interval", time.Minute, "poll interval")
	pollCmd.Flags().Duration("fetch-timeout", 15*time.Second, "timeout for one feed fetch or webhook post")
	pollCmd.Flags().Float64("min-lat", 24.0, "bounding box minimum latitude")
	pollCmd.Flags().Float64("max-lat", 46.0, "bounding box maximum latitude")
	pollCmd.Flags().Float64("min-lon", 122.0, "bounding box minimum longitude")
	pollCmd.Flags().Float64("max-lon", 153.0, "bounding box maximum longitude")
	pollCmd.Flags().String("region", "Japan", "region name used in notifications")
	pollCmd.Flags().String("webhook-url", "", "chat webhook URL, empty means log only")
	pollCmd.Flags().Int("dedup-size", 100, "number of recent event ids remembered")
	pollCmd.Flags().String("seen-file", "", "optional file persisting seen event ids")
	pollCmd.Flags().Int("max-retries", 3, "maximum feed fetch retries per pass")
	pollCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	addLogFlags(pollCmd.Flags())

	root.AddCommand(pollCmd)

	setConfigCmd := &cobra.Command{
		Use:   "setconfig",
		Short: "Write a guild configuration directly to Postgres",
		RunE:  runSetConfig,
	}
	addStoreFlags(setConfigCmd.Flags())
	setConfigCmd.Flags().String("guild", "", "guild name")
	setConfigCmd.Flags().String("indexer-key", "", "indexer API key for the guild")
	setConfigCmd.Flags().String("contract", "", "asset contract address")
	setConfigCmd.Flags().String("role", "", "role granted to verified members")
	setConfigCmd.Flags().String("oracle", "", "ownership oracle (chain, indexer), empty picks by indexer key")
	addLogFlags(setConfigCmd.Flags())

	root.AddCommand(setConfigCmd)

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Apply the Postgres schema",
		RunE:  runSchema,
	}
	addStoreFlags(schemaCmd.Flags())
	addLogFlags(schemaCmd.Flags())

	root.AddCommand(schemaCmd)

	importCmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import legacy <guild>_nft_users.json membership files into Postgres",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addStoreFlags(importCmd.Flags())
	importCmd.Flags().String("guild", "", "guild name, derived from the file name when empty")
	addLogFlags(importCmd.Flags())

	root.AddCommand(importCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("pg-dsn", "", "Postgres DSN, empty means in-memory")
}

func addLogFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-file", "", "optional rotated log file, written in addition to stderr")
	fs.Int("log-max-size-mb", 100, "log file size before rotation")
	fs.Int("log-max-backups", 5, "rotated log files kept")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevel()
	if err := zcfg.Level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.File == "" {
		return zcfg.Build()
	}

	fileSync := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	})
	return zcfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zcfg.EncoderConfig), fileSync, zcfg.Level)
		return zapcore.NewTee(core, fileCore)
	}))
}

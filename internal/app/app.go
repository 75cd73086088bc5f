package app

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"guildgate/internal/chain"
	"guildgate/internal/config"
	"guildgate/internal/oracle"
	"guildgate/internal/platform"
	"guildgate/internal/ratelimit"
	"guildgate/internal/storage"
	"guildgate/internal/storage/postgres"
	"guildgate/internal/verify"
)

// Store is the persistence the serve command needs.
type Store interface {
	storage.ConfigStore
	storage.MembershipStore
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App wires the verification service and its collaborators for the serve command.
type App struct {
	Store    Store
	Oracles  oracle.Selector
	Limiter  ratelimit.Limiter
	Platform *platform.Memory
	Service  *verify.Service
	Logger   *zap.Logger

	checks  map[string]Pinger
	closers []func()
}

// New builds an App from cfg. Postgres and Redis are used when configured,
// otherwise the in-process implementations.
func New(ctx context.Context, cfg config.ServeConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Platform: platform.NewMemory(),
		Logger:   logger,
		checks:   map[string]Pinger{},
	}

	if err := a.openStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openLimiter(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openOracles(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	svc, err := verify.NewService(verify.Config{
		VerifyRule: ratelimit.Rule{Limit: cfg.VerifyLimit, Window: cfg.VerifyWindow},
		ListRule:   ratelimit.Rule{Limit: cfg.ListLimit, Window: cfg.ListWindow},
	}, verify.Deps{
		Configs:  a.Store,
		Members:  a.Store,
		Oracles:  a.Oracles,
		Limiter:  a.Limiter,
		Platform: a.Platform,
		Audit:    storage.NewAuditLog(cfg.AuditLog),
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.ServeConfig) error {
	if cfg.PGDSN == "" {
		a.Logger.Info("using in-memory store")
		a.Store = storage.NewMemory()
		return nil
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	a.Store = store
	a.checks["postgres"] = store
	a.Logger.Info("using postgres store")
	return nil
}

func (a *App) openLimiter(ctx context.Context, cfg config.ServeConfig) error {
	if cfg.RedisAddr == "" {
		a.Limiter = ratelimit.NewMemory()
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	limiter := ratelimit.NewRedisLimiter(client, a.Logger)
	if err := limiter.Ping(ctx); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.Limiter = limiter
	a.checks["redis"] = limiter
	a.Logger.Info("using redis rate limiter", zap.String("addr", cfg.RedisAddr))
	return nil
}

func (a *App) openOracles(ctx context.Context, cfg config.ServeConfig) error {
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		q, err := oracle.NewChainQuery(oracle.ChainQueryConfig{
			Method:  oracle.ChainMethod(cfg.ChainMethod),
			TokenID: cfg.TokenID,
			Timeout: cfg.OracleTimeout,
		}, client, a.Logger)
		if err != nil {
			return err
		}
		a.Oracles.Chain = q
	}
	if cfg.IndexerURL != "" {
		q, err := oracle.NewIndexerQuery(oracle.IndexerConfig{
			BaseURL: cfg.IndexerURL,
			Timeout: cfg.OracleTimeout,
		}, a.Logger)
		if err != nil {
			return err
		}
		a.Oracles.Indexer = q
	}
	if a.Oracles.Chain == nil && a.Oracles.Indexer == nil {
		a.Logger.Warn("no ownership oracle configured, every verify will report unavailable")
	}
	return nil
}

// Ready pings every remote dependency and returns the first failure.
func (a *App) Ready(ctx context.Context) error {
	for name, p := range a.checks {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

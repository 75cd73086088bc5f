package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Listen        string
	RPCURL        string
	TokenID       *big.Int
	ChainMethod   string
	IndexerURL    string
	OracleTimeout time.Duration
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	VerifyLimit   int
	VerifyWindow  time.Duration
	ListLimit     int
	ListWindow    time.Duration
	AdminTokens   []string
	AuditLog      string
	Log           LogConfig
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"listen":         ":8080",
		"chain-method":   "ownerOf",
		"oracle-timeout": 10 * time.Second,
		"verify-limit":   1,
		"verify-window":  time.Minute,
		"list-limit":     1,
		"list-window":    30 * time.Second,
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Listen:        v.GetString("listen"),
		RPCURL:        strings.TrimSpace(v.GetString("rpc")),
		ChainMethod:   v.GetString("chain-method"),
		IndexerURL:    strings.TrimSpace(v.GetString("indexer-url")),
		OracleTimeout: v.GetDuration("oracle-timeout"),
		PGDSN:         strings.TrimSpace(v.GetString("pg-dsn")),
		RedisAddr:     strings.TrimSpace(v.GetString("redis-addr")),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		VerifyLimit:   v.GetInt("verify-limit"),
		VerifyWindow:  v.GetDuration("verify-window"),
		ListLimit:     v.GetInt("list-limit"),
		ListWindow:    v.GetDuration("list-window"),
		AdminTokens:   getStringSlice(v, "admin-token"),
		AuditLog:      strings.TrimSpace(v.GetString("audit-log")),
		Log:           loadLog(v),
	}

	if raw := strings.TrimSpace(v.GetString("token-id")); raw != "" {
		id, ok := new(big.Int).SetString(raw, 0)
		if !ok || id.Sign() < 0 {
			return ServeConfig{}, fmt.Errorf("invalid token-id %q", raw)
		}
		cfg.TokenID = id
	}

	if err := cfg.Validate(); err != nil {
		return ServeConfig{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a command.
func (c ServeConfig) Validate() error {
	if c.VerifyLimit <= 0 || c.VerifyWindow <= 0 {
		return fmt.Errorf("verify-limit and verify-window must be greater than zero")
	}
	if c.ListLimit <= 0 || c.ListWindow <= 0 {
		return fmt.Errorf("list-limit and list-window must be greater than zero")
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("oracle-timeout must be greater than zero")
	}
	switch c.ChainMethod {
	case "ownerOf", "balanceOf":
	default:
		return fmt.Errorf("chain-method must be ownerOf or balanceOf, got %q", c.ChainMethod)
	}
	if c.ChainMethod == "ownerOf" && c.RPCURL != "" && c.TokenID == nil {
		return fmt.Errorf("token-id is required for chain-method ownerOf")
	}
	return nil
}

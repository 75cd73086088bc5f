package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"guildgate/internal/model"
)

// ErrUnavailable means ownership could not be determined. It is never used
// to signal a definitive "not owned".
var ErrUnavailable = errors.New("ownership oracle unavailable")

// Request carries everything a strategy needs for one ownership check.
type Request struct {
	Owner      common.Address
	Contract   common.Address
	IndexerKey string
}

// Oracle answers whether Owner currently holds the asset at Contract.
// Results are never cached; every call goes to the backing source.
type Oracle interface {
	CheckOwnership(ctx context.Context, req Request) (bool, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, req Request) (bool, error)

func (f Func) CheckOwnership(ctx context.Context, req Request) (bool, error) {
	return f(ctx, req)
}

// Selector picks the strategy configured for a guild.
type Selector struct {
	Chain   Oracle
	Indexer Oracle
}

// For returns the oracle matching cfg.
func (s Selector) For(cfg model.GuildConfig) (Oracle, error) {
	switch kind := cfg.OracleKindOrDefault(); kind {
	case model.OracleChain:
		if s.Chain == nil {
			return nil, fmt.Errorf("%w: chain oracle not configured", ErrUnavailable)
		}
		return s.Chain, nil
	case model.OracleIndexer:
		if s.Indexer == nil {
			return nil, fmt.Errorf("%w: indexer oracle not configured", ErrUnavailable)
		}
		return s.Indexer, nil
	default:
		return nil, fmt.Errorf("%w: unknown oracle %q", ErrUnavailable, kind)
	}
}

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

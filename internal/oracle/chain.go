package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"guildgate/internal/chain"
	"guildgate/internal/model"
)

// ChainMethod is the contract read used by ChainQuery.
type ChainMethod string

const (
	MethodOwnerOf   ChainMethod = "ownerOf"
	MethodBalanceOf ChainMethod = "balanceOf"
)

// ChainQueryConfig configures a ChainQuery.
type ChainQueryConfig struct {
	Method  ChainMethod
	TokenID *big.Int
	Timeout time.Duration
}

// ChainQuery reads ownership straight from the asset contract over JSON-RPC.
type ChainQuery struct {
	caller  chain.Caller
	method  ChainMethod
	tokenID *big.Int
	timeout time.Duration
	logger  *zap.Logger
}

// NewChainQuery builds a ChainQuery. ownerOf requires a token id.
func NewChainQuery(cfg ChainQueryConfig, caller chain.Caller, logger *zap.Logger) (*ChainQuery, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	method := cfg.Method
	if method == "" {
		method = MethodOwnerOf
	}
	switch method {
	case MethodOwnerOf:
		if cfg.TokenID == nil || cfg.TokenID.Sign() < 0 {
			return nil, fmt.Errorf("ownerOf requires a non-negative token id")
		}
	case MethodBalanceOf:
	default:
		return nil, fmt.Errorf("unsupported chain method %q", method)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChainQuery{
		caller:  caller,
		method:  method,
		tokenID: cfg.TokenID,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// CheckOwnership implements Oracle.
func (q *ChainQuery) CheckOwnership(ctx context.Context, req Request) (bool, error) {
	parsed, err := ERC721ABI()
	if err != nil {
		return false, fmt.Errorf("parse erc721 abi: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	switch q.method {
	case MethodBalanceOf:
		values, err := q.call(ctx, parsed, req.Contract, string(MethodBalanceOf), req.Owner)
		if err != nil {
			return false, err
		}
		balance, ok := values[0].(*big.Int)
		if !ok {
			return false, unavailable("balanceOf returned %T", values[0])
		}
		return balance.Sign() > 0, nil
	default:
		values, err := q.call(ctx, parsed, req.Contract, string(MethodOwnerOf), q.tokenID)
		if err != nil {
			return false, err
		}
		owner, ok := values[0].(common.Address)
		if !ok {
			return false, unavailable("ownerOf returned %T", values[0])
		}
		return model.SameAddress(owner, req.Owner), nil
	}
}

func (q *ChainQuery) call(ctx context.Context, parsed abi.ABI, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := q.caller.CallContract(ctx, msg, nil)
	if err != nil {
		q.logger.Warn("contract call failed",
			zap.String("method", method),
			zap.String("contract", contract.Hex()),
			zap.Error(err),
		)
		return nil, unavailable("call %s: %v", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, unavailable("unpack %s: %v", method, err)
	}
	if len(values) == 0 {
		return nil, unavailable("%s returned no values", method)
	}
	return values, nil
}

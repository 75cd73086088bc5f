package oracle

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildgate/internal/model"
)

var (
	holder   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	stranger = common.HexToAddress("0x2222222222222222222222222222222222222222")
	contract = common.HexToAddress("0xCAFE000000000000000000000000000000000000")
)

type fakeCaller struct {
	resp  []byte
	err   error
	calls []ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	return f.resp, f.err
}

func packOutput(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := ERC721ABI()
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func TestChainQueryOwnerOf(t *testing.T) {
	caller := &fakeCaller{resp: packOutput(t, "ownerOf", holder)}
	q, err := NewChainQuery(ChainQueryConfig{Method: MethodOwnerOf, TokenID: big.NewInt(1)}, caller, nil)
	require.NoError(t, err)

	owned, err := q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = q.CheckOwnership(context.Background(), Request{Owner: stranger, Contract: contract})
	require.NoError(t, err)
	assert.False(t, owned)

	require.Len(t, caller.calls, 2)
	assert.Equal(t, contract, *caller.calls[0].To)
}

func TestChainQueryBalanceOf(t *testing.T) {
	caller := &fakeCaller{resp: packOutput(t, "balanceOf", big.NewInt(3))}
	q, err := NewChainQuery(ChainQueryConfig{Method: MethodBalanceOf}, caller, nil)
	require.NoError(t, err)

	owned, err := q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	require.NoError(t, err)
	assert.True(t, owned)

	caller.resp = packOutput(t, "balanceOf", big.NewInt(0))
	owned, err = q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestChainQueryFailuresAreUnavailable(t *testing.T) {
	caller := &fakeCaller{err: errors.New("execution reverted")}
	q, err := NewChainQuery(ChainQueryConfig{Method: MethodOwnerOf, TokenID: big.NewInt(1)}, caller, nil)
	require.NoError(t, err)

	_, err = q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	assert.ErrorIs(t, err, ErrUnavailable)

	caller.err = nil
	caller.resp = nil
	_, err = q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewChainQueryValidation(t *testing.T) {
	_, err := NewChainQuery(ChainQueryConfig{Method: MethodOwnerOf}, &fakeCaller{}, nil)
	assert.Error(t, err)
	_, err = NewChainQuery(ChainQueryConfig{Method: "tokenURI"}, &fakeCaller{}, nil)
	assert.Error(t, err)
	_, err = NewChainQuery(ChainQueryConfig{Method: MethodBalanceOf}, nil, nil)
	assert.Error(t, err)
}

func TestIndexerQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, contract.Hex(), r.URL.Query().Get("contractAddress"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("owner") == holder.Hex() {
			_, _ = w.Write([]byte(`{"ownedNfts":[{"tokenId":"1"}],"totalCount":1}`))
			return
		}
		_, _ = w.Write([]byte(`{"ownedNfts":[],"totalCount":0}`))
	}))
	defer server.Close()

	q, err := NewIndexerQuery(IndexerConfig{BaseURL: server.URL + "/getNFTs"}, nil)
	require.NoError(t, err)

	owned, err := q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract, IndexerKey: "secret"})
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = q.CheckOwnership(context.Background(), Request{Owner: stranger, Contract: contract, IndexerKey: "secret"})
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestIndexerQueryErrorStatusIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	q, err := NewIndexerQuery(IndexerConfig{BaseURL: server.URL}, nil)
	require.NoError(t, err)

	owned, err := q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	assert.False(t, owned)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIndexerQueryMalformedBodyIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalCount":0}`))
	}))
	defer server.Close()

	q, err := NewIndexerQuery(IndexerConfig{BaseURL: server.URL}, nil)
	require.NoError(t, err)

	_, err = q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIndexerQueryTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	q, err := NewIndexerQuery(IndexerConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = q.CheckOwnership(context.Background(), Request{Owner: holder, Contract: contract})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSelector(t *testing.T) {
	chainOracle := Func(func(context.Context, Request) (bool, error) { return true, nil })
	indexerOracle := Func(func(context.Context, Request) (bool, error) { return false, nil })
	sel := Selector{Chain: chainOracle, Indexer: indexerOracle}

	o, err := sel.For(model.GuildConfig{Oracle: model.OracleChain})
	require.NoError(t, err)
	owned, _ := o.CheckOwnership(context.Background(), Request{})
	assert.True(t, owned)

	o, err = sel.For(model.GuildConfig{IndexerKey: "k"})
	require.NoError(t, err)
	owned, _ = o.CheckOwnership(context.Background(), Request{})
	assert.False(t, owned)

	_, err = Selector{}.For(model.GuildConfig{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

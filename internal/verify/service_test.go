package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildgate/internal/model"
	"guildgate/internal/oracle"
	"guildgate/internal/platform"
	"guildgate/internal/ratelimit"
	"guildgate/internal/storage"
)

const (
	holderHex   = "0x1111111111111111111111111111111111111111"
	contractHex = "0xCAFE000000000000000000000000000000000000"
)

type recordingPlatform struct {
	*platform.Memory
	mu         sync.Mutex
	attachErr  error
	attachCall int
	detachCall int
}

func (p *recordingPlatform) AttachRole(ctx context.Context, guildID, memberID string, role platform.Role) error {
	p.mu.Lock()
	p.attachCall++
	err := p.attachErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.Memory.AttachRole(ctx, guildID, memberID, role)
}

func (p *recordingPlatform) DetachRole(ctx context.Context, guildID, memberID string, role platform.Role) error {
	p.mu.Lock()
	p.detachCall++
	p.mu.Unlock()
	return p.Memory.DetachRole(ctx, guildID, memberID, role)
}

type countingOracle struct {
	mu    sync.Mutex
	calls int
	owned map[common.Address]bool
	err   error
}

func (o *countingOracle) CheckOwnership(_ context.Context, req oracle.Request) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return false, o.err
	}
	return o.owned[req.Owner], nil
}

type failingMembers struct {
	storage.MembershipStore
}

func (failingMembers) UpsertVerification(context.Context, model.VerificationRecord) error {
	return errors.New("disk full")
}

type fixture struct {
	svc      *Service
	store    *storage.Memory
	platform *recordingPlatform
	oracle   *countingOracle
}

func newFixture(t *testing.T, mutate func(*Deps)) fixture {
	t.Helper()
	store := storage.NewMemory()
	plat := &recordingPlatform{Memory: platform.NewMemory()}
	ora := &countingOracle{owned: map[common.Address]bool{common.HexToAddress(holderHex): true}}
	deps := Deps{
		Configs:  store,
		Members:  store,
		Oracles:  oracle.Selector{Chain: ora, Indexer: ora},
		Limiter:  ratelimit.NewMemory(),
		Platform: plat,
	}
	if mutate != nil {
		mutate(&deps)
	}
	svc, err := NewService(Config{
		VerifyRule: ratelimit.Rule{Limit: 1, Window: time.Minute},
		ListRule:   ratelimit.Rule{Limit: 1, Window: time.Minute},
	}, deps)
	require.NoError(t, err)
	return fixture{svc: svc, store: store, platform: plat, oracle: ora}
}

func (f fixture) configure(t *testing.T, guild string) {
	t.Helper()
	_, err := f.svc.SetConfig(context.Background(), SetConfigRequest{
		GuildName:       guild,
		IndexerKey:      "key",
		ContractAddress: contractHex,
		RoleName:        "Verified NFT Holder",
	})
	require.NoError(t, err)
}

func TestVerifyUnconfigured(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "Test Server", MemberID: "42", Address: "0xAbC0000000000000000000000000000000000000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnconfigured, res.Outcome)
	assert.Equal(t, "test_server", res.GuildKey)
	assert.Zero(t, f.oracle.calls)
	assert.Contains(t, res.Message(), "contact an admin")
}

func TestVerifySuccess(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "Test Server")

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "Test Server", MemberID: "7", Address: holderHex})
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.True(t, res.RoleAssigned)
	assert.NotEmpty(t, res.AttemptID)

	rec, err := f.store.GetVerification(context.Background(), "test_server", "7")
	require.NoError(t, err)
	assert.Equal(t, model.VerificationRecord{GuildKey: "test_server", MemberID: "7", Address: common.HexToAddress(holderHex)}, rec)

	assert.Equal(t, 1, f.platform.attachCall)
	assert.Equal(t, []string{"Verified NFT Holder"}, f.platform.MemberRoles("test_server", "7"))
	assert.Equal(t, "Verification complete! Role 'Verified NFT Holder' assigned.", res.Message())
}

func TestVerifyRateLimitedBeforeAnyIO(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")

	_, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: "0x2222222222222222222222222222222222222222"})
	require.NoError(t, err)
	require.Equal(t, 1, f.oracle.calls)

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: holderHex})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, res.Outcome)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.Equal(t, 1, f.oracle.calls)

	_, err = f.store.GetVerification(context.Background(), "g", "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVerifyInvalidAddressShortCircuits(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: "0x123"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidAddress, res.Outcome)
	assert.Zero(t, f.oracle.calls)
	assert.Equal(t, "Invalid Ethereum address.", res.Message())
}

func TestVerifyOracleUnavailableLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")
	f.oracle.err = oracle.ErrUnavailable

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: holderHex})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOracleUnavailable, res.Outcome)
	assert.True(t, res.Outcome.Retryable())

	list, err := f.store.ListVerified(context.Background(), "g")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, f.platform.attachCall)
}

func TestVerifyNotOwned(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: "0x3333333333333333333333333333333333333333"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotOwned, res.Outcome)
	assert.False(t, res.Outcome.Retryable())
	assert.Zero(t, f.platform.attachCall)
}

func TestVerifyRoleFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")
	f.platform.attachErr = errors.New("missing permissions")

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: holderHex})
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.False(t, res.RoleAssigned)

	_, err = f.store.GetVerification(context.Background(), "g", "7")
	assert.NoError(t, err)
}

func TestVerifyStoreFailurePropagates(t *testing.T) {
	var store *storage.Memory
	f := newFixture(t, func(d *Deps) {
		store = d.Configs.(*storage.Memory)
		d.Members = failingMembers{MembershipStore: store}
	})
	f.configure(t, "g")

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: holderHex})
	assert.Error(t, err)
	assert.Equal(t, OutcomeStoreFailure, res.Outcome)
	assert.Zero(t, f.platform.attachCall)
}

func TestReverifyReplacesAddress(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.cfg.VerifyRule = ratelimit.Rule{Limit: 5, Window: time.Minute}
	f.configure(t, "g")
	second := common.HexToAddress("0x4444444444444444444444444444444444444444")
	f.oracle.owned[second] = true

	_, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: holderHex})
	require.NoError(t, err)
	_, err = f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: second.Hex()})
	require.NoError(t, err)

	list, err := f.store.ListVerified(context.Background(), "g")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second, list[0].Address)
}

func TestUnverifyIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")
	_, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: holderHex})
	require.NoError(t, err)

	res, err := f.svc.Unverify(context.Background(), "g", "7")
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.True(t, res.RoleRemoved)
	assert.Empty(t, f.platform.MemberRoles("g", "7"))

	_, err = f.store.GetVerification(context.Background(), "g", "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	res, err = f.svc.Unverify(context.Background(), "g", "7")
	require.NoError(t, err)
	assert.False(t, res.Removed)
	assert.Equal(t, 1, f.platform.detachCall)
}

func TestUnverifyAcrossGuildNameSpellings(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "Test Server")

	res, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "Test Server", MemberID: "7", Address: holderHex})
	require.NoError(t, err)
	require.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, []string{"Verified NFT Holder"}, f.platform.MemberRoles("test_server", "7"))

	removed, err := f.svc.Unverify(context.Background(), "test  server", "7")
	require.NoError(t, err)
	assert.True(t, removed.Removed)
	assert.True(t, removed.RoleRemoved)
	assert.Empty(t, f.platform.MemberRoles("test_server", "7"))
}

func TestVerifyRejectsEmptyMember(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")

	_, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "  ", Address: holderHex})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, f.oracle.calls)
}

func TestListVerified(t *testing.T) {
	f := newFixture(t, nil)
	f.configure(t, "g")
	f.platform.AddMember("g", "7", "alice")
	_, err := f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "7", Address: holderHex})
	require.NoError(t, err)
	_, err = f.svc.Verify(context.Background(), VerifyRequest{GuildName: "g", MemberID: "8", Address: holderHex})
	require.NoError(t, err)

	res, err := f.svc.ListVerified(context.Background(), "g")
	require.NoError(t, err)
	require.False(t, res.RateLimited)
	require.Len(t, res.Members, 2)
	assert.Equal(t, "alice", res.Members[0].DisplayName)
	assert.Equal(t, "8", res.Members[1].DisplayName)
	assert.Equal(t, common.HexToAddress(holderHex).Hex(), res.Members[0].Address)

	res, err = f.svc.ListVerified(context.Background(), "g")
	require.NoError(t, err)
	assert.True(t, res.RateLimited)
	assert.Empty(t, res.Members)
}

func TestSetConfigValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []SetConfigRequest{
		{GuildName: "!!!", ContractAddress: contractHex, RoleName: "r"},
		{GuildName: "g", ContractAddress: "0xnope", RoleName: "r"},
		{GuildName: "g", ContractAddress: contractHex, RoleName: "  "},
		{GuildName: "g", ContractAddress: contractHex, RoleName: "r", Oracle: "magic"},
		{GuildName: "g", ContractAddress: contractHex, RoleName: "r", Oracle: "indexer"},
	}
	for _, req := range cases {
		_, err := f.svc.SetConfig(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", req)
	}

	cfg, err := f.svc.SetConfig(ctx, SetConfigRequest{GuildName: "My Guild", ContractAddress: contractHex, RoleName: "Holder", Oracle: "Chain"})
	require.NoError(t, err)
	assert.Equal(t, "my_guild", cfg.GuildKey)
	assert.Equal(t, model.OracleChain, cfg.Oracle)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Config{}, Deps{})
	assert.Error(t, err)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(10*time.Millisecond))
	assert.Equal(t, 40, RetryAfterSeconds(40*time.Second))
}

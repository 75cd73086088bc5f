package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"guildgate/internal/metrics"
	"guildgate/internal/model"
	"guildgate/internal/oracle"
	"guildgate/internal/platform"
	"guildgate/internal/ratelimit"
	"guildgate/internal/storage"
)

// ErrInvalidInput is returned for malformed command arguments.
var ErrInvalidInput = errors.New("invalid input")

// Config holds the limiter rules for the command entry points.
type Config struct {
	VerifyRule ratelimit.Rule
	ListRule   ratelimit.Rule
}

// Deps are the collaborators a Service orchestrates.
type Deps struct {
	Configs  storage.ConfigStore
	Members  storage.MembershipStore
	Oracles  oracle.Selector
	Limiter  ratelimit.Limiter
	Platform platform.Platform
	Audit    *storage.AuditLog
	Logger   *zap.Logger
}

// Service runs the verification state machine and the admin commands.
type Service struct {
	cfg      Config
	configs  storage.ConfigStore
	members  storage.MembershipStore
	oracles  oracle.Selector
	limiter  ratelimit.Limiter
	platform platform.Platform
	audit    *storage.AuditLog
	logger   *zap.Logger
}

// NewService validates deps and builds a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Configs == nil {
		return nil, fmt.Errorf("config store is nil")
	}
	if deps.Members == nil {
		return nil, fmt.Errorf("membership store is nil")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("limiter is nil")
	}
	if deps.Platform == nil {
		return nil, fmt.Errorf("platform is nil")
	}
	if cfg.VerifyRule.Limit <= 0 || cfg.VerifyRule.Window <= 0 {
		return nil, fmt.Errorf("verify rate limit must be positive")
	}
	if cfg.ListRule.Limit <= 0 || cfg.ListRule.Window <= 0 {
		return nil, fmt.Errorf("list rate limit must be positive")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		configs:  deps.Configs,
		members:  deps.Members,
		oracles:  deps.Oracles,
		limiter:  deps.Limiter,
		platform: deps.Platform,
		audit:    deps.Audit,
		logger:   logger,
	}, nil
}

// SetConfigRequest carries the arguments of the admin setconfig command.
type SetConfigRequest struct {
	GuildName       string
	IndexerKey      string
	ContractAddress string
	RoleName        string
	Oracle          string
}

// SetConfig validates and fully replaces the guild's configuration.
func (s *Service) SetConfig(ctx context.Context, req SetConfigRequest) (model.GuildConfig, error) {
	guildKey, err := storage.SanitizeGuildKey(req.GuildName)
	if err != nil {
		return model.GuildConfig{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	contract, err := model.ParseAddress(req.ContractAddress)
	if err != nil {
		return model.GuildConfig{}, fmt.Errorf("%w: contract: %v", ErrInvalidInput, err)
	}
	roleName := strings.TrimSpace(req.RoleName)
	if roleName == "" {
		return model.GuildConfig{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	kind := model.OracleKind(strings.ToLower(strings.TrimSpace(req.Oracle)))
	switch kind {
	case "", model.OracleChain, model.OracleIndexer:
	default:
		return model.GuildConfig{}, fmt.Errorf("%w: unknown oracle %q", ErrInvalidInput, req.Oracle)
	}
	indexerKey := strings.TrimSpace(req.IndexerKey)
	if kind == model.OracleIndexer && indexerKey == "" {
		return model.GuildConfig{}, fmt.Errorf("%w: indexer oracle requires an indexer key", ErrInvalidInput)
	}

	cfg := model.GuildConfig{
		GuildKey:      guildKey,
		IndexerKey:    indexerKey,
		AssetContract: contract,
		RoleName:      roleName,
		Oracle:        kind,
	}
	if err := s.configs.SetGuildConfig(ctx, cfg); err != nil {
		s.logger.Error("save guild config failed", zap.String("guild", guildKey), zap.Error(err))
		return model.GuildConfig{}, fmt.Errorf("save guild config: %w", err)
	}

	s.logger.Info("guild configured",
		zap.String("guild", guildKey),
		zap.String("contract", contract.Hex()),
		zap.String("role", roleName),
		zap.String("oracle", string(cfg.OracleKindOrDefault())),
	)
	return cfg, nil
}

// VerifyRequest is one member's verify command.
type VerifyRequest struct {
	GuildName string
	MemberID  string
	Address   string
}

// Verify runs one attempt through rate limit, config, address validation,
// the ownership oracle and, on success, the membership upsert and role grant.
// The returned error is non-nil only for StoreFailure, or ErrInvalidInput
// when the member id is empty.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (Result, error) {
	if strings.TrimSpace(req.MemberID) == "" {
		return Result{}, fmt.Errorf("%w: member id is required", ErrInvalidInput)
	}
	res := Result{AttemptID: uuid.NewString(), MemberID: req.MemberID}
	logger := s.logger.With(zap.String("attempt", res.AttemptID), zap.String("member", req.MemberID))

	res, err := s.verify(ctx, req, res, logger)
	metrics.ObserveVerification(string(res.Outcome))
	return res, err
}

func (s *Service) verify(ctx context.Context, req VerifyRequest, res Result, logger *zap.Logger) (Result, error) {
	guildKey, err := storage.SanitizeGuildKey(req.GuildName)
	if err != nil {
		res.Outcome = OutcomeUnconfigured
		return res, nil
	}
	res.GuildKey = guildKey
	logger = logger.With(zap.String("guild", guildKey))

	decision, err := s.limiter.Allow(ctx, ratelimit.VerifyKey(guildKey, req.MemberID), s.cfg.VerifyRule)
	if err != nil {
		logger.Error("rate limiter failed", zap.Error(err))
		res.Outcome = OutcomeStoreFailure
		return res, fmt.Errorf("rate limit: %w", err)
	}
	if !decision.Allowed {
		logger.Debug("verify rate limited", zap.Duration("retry_after", decision.RetryAfter))
		res.Outcome = OutcomeRateLimited
		res.RetryAfter = decision.RetryAfter
		return res, nil
	}

	cfg, err := s.configs.GetGuildConfig(ctx, guildKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			res.Outcome = OutcomeUnconfigured
			return res, nil
		}
		logger.Error("load guild config failed", zap.Error(err))
		res.Outcome = OutcomeStoreFailure
		return res, fmt.Errorf("load guild config: %w", err)
	}
	res.RoleName = cfg.RoleName

	address, err := model.ParseAddress(req.Address)
	if err != nil {
		res.Outcome = OutcomeInvalidAddress
		return res, nil
	}
	res.Address = address

	ora, err := s.oracles.For(cfg)
	if err != nil {
		logger.Warn("no oracle for guild", zap.Error(err))
		res.Outcome = OutcomeOracleUnavailable
		return res, nil
	}

	started := time.Now()
	owned, err := ora.CheckOwnership(ctx, oracle.Request{
		Owner:      address,
		Contract:   cfg.AssetContract,
		IndexerKey: cfg.IndexerKey,
	})
	if err != nil {
		logger.Warn("ownership check failed",
			zap.String("address", address.Hex()),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		res.Outcome = OutcomeOracleUnavailable
		return res, nil
	}
	if !owned {
		res.Outcome = OutcomeNotOwned
		return res, nil
	}

	rec := model.VerificationRecord{GuildKey: guildKey, MemberID: req.MemberID, Address: address}
	if err := s.members.UpsertVerification(ctx, rec); err != nil {
		logger.Error("save verification failed", zap.Error(err))
		res.Outcome = OutcomeStoreFailure
		return res, fmt.Errorf("save verification: %w", err)
	}
	if err := s.audit.Append(storage.AuditVerify, rec); err != nil {
		logger.Warn("audit append failed", zap.Error(err))
	}

	res.Outcome = OutcomeVerified
	res.RoleAssigned = s.grantRole(ctx, guildKey, req.MemberID, cfg.RoleName, logger)

	logger.Info("member verified",
		zap.String("address", address.Hex()),
		zap.Bool("role_assigned", res.RoleAssigned),
	)
	return res, nil
}

// grantRole is best effort: the membership record stays even when the
// platform call fails.
func (s *Service) grantRole(ctx context.Context, guildID, memberID, roleName string, logger *zap.Logger) bool {
	role, err := platform.EnsureRole(ctx, s.platform, guildID, roleName)
	if err != nil {
		logger.Warn("role lookup failed", zap.String("role", roleName), zap.Error(err))
		return false
	}
	if err := s.platform.AttachRole(ctx, guildID, memberID, role); err != nil {
		logger.Warn("role attach failed", zap.String("role", roleName), zap.Error(err))
		return false
	}
	return true
}

// UnverifyResult reports whether a record was removed.
type UnverifyResult struct {
	GuildKey    string `json:"guild_key"`
	MemberID    string `json:"member_id"`
	Removed     bool   `json:"removed"`
	RoleRemoved bool   `json:"role_removed"`
}

// Unverify deletes the member's record and detaches the role. It is a no-op
// when no record exists.
func (s *Service) Unverify(ctx context.Context, guildName, memberID string) (UnverifyResult, error) {
	guildKey, err := storage.SanitizeGuildKey(guildName)
	if err != nil {
		return UnverifyResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(memberID) == "" {
		return UnverifyResult{}, fmt.Errorf("%w: member id is required", ErrInvalidInput)
	}
	res := UnverifyResult{GuildKey: guildKey, MemberID: memberID}
	logger := s.logger.With(zap.String("guild", guildKey), zap.String("member", memberID))

	existing, err := s.members.GetVerification(ctx, guildKey, memberID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("load verification failed", zap.Error(err))
		return res, fmt.Errorf("load verification: %w", err)
	}

	removed, err := s.members.DeleteVerification(ctx, guildKey, memberID)
	if err != nil {
		logger.Error("delete verification failed", zap.Error(err))
		return res, fmt.Errorf("delete verification: %w", err)
	}
	if !removed {
		return res, nil
	}
	res.Removed = true
	if existing.MemberID == "" {
		existing = model.VerificationRecord{GuildKey: guildKey, MemberID: memberID}
	}
	if err := s.audit.Append(storage.AuditUnverify, existing); err != nil {
		logger.Warn("audit append failed", zap.Error(err))
	}

	cfg, err := s.configs.GetGuildConfig(ctx, guildKey)
	if err != nil {
		logger.Warn("skip role removal, guild config unavailable", zap.Error(err))
		return res, nil
	}
	role, err := s.platform.FindRoleByName(ctx, guildKey, cfg.RoleName)
	if err != nil {
		logger.Warn("role lookup failed", zap.Error(err))
		return res, nil
	}
	if role == nil {
		return res, nil
	}
	if err := s.platform.DetachRole(ctx, guildKey, memberID, *role); err != nil {
		logger.Warn("role detach failed", zap.Error(err))
		return res, nil
	}
	res.RoleRemoved = true

	logger.Info("member unverified")
	return res, nil
}

// ListedMember is one row of the verified listing.
type ListedMember struct {
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name"`
	Address     string `json:"address"`
}

// ListResult is the outcome of the admin listing command.
type ListResult struct {
	GuildKey    string         `json:"guild_key"`
	RateLimited bool           `json:"rate_limited"`
	RetryAfter  time.Duration  `json:"-"`
	Members     []ListedMember `json:"members"`
}

// ListVerified returns the guild's verified members, rate limited per guild.
func (s *Service) ListVerified(ctx context.Context, guildName string) (ListResult, error) {
	guildKey, err := storage.SanitizeGuildKey(guildName)
	if err != nil {
		return ListResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	res := ListResult{GuildKey: guildKey}

	decision, err := s.limiter.Allow(ctx, ratelimit.ListKey(guildKey), s.cfg.ListRule)
	if err != nil {
		return res, fmt.Errorf("rate limit: %w", err)
	}
	if !decision.Allowed {
		res.RateLimited = true
		res.RetryAfter = decision.RetryAfter
		return res, nil
	}

	records, err := s.members.ListVerified(ctx, guildKey)
	if err != nil {
		s.logger.Error("list verified failed", zap.String("guild", guildKey), zap.Error(err))
		return res, fmt.Errorf("list verified: %w", err)
	}

	res.Members = make([]ListedMember, 0, len(records))
	for _, rec := range records {
		name := rec.MemberID
		if member, err := s.platform.ResolveMember(ctx, guildKey, rec.MemberID); err == nil && member.DisplayName != "" {
			name = member.DisplayName
		}
		res.Members = append(res.Members, ListedMember{
			MemberID:    rec.MemberID,
			DisplayName: name,
			Address:     rec.Address.Hex(),
		})
	}
	return res, nil
}

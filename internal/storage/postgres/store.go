package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"guildgate/internal/model"
	"guildgate/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS guild_settings (
	guild_key      TEXT PRIMARY KEY,
	indexer_key    TEXT NOT NULL DEFAULT '',
	asset_contract TEXT NOT NULL,
	role_name      TEXT NOT NULL,
	oracle         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verified_members (
	guild_key   TEXT NOT NULL,
	member_id   TEXT NOT NULL,
	address     TEXT NOT NULL,
	created_seq BIGSERIAL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (guild_key, member_id)
);

CREATE INDEX IF NOT EXISTS verified_members_guild_seq ON verified_members (guild_key, created_seq);
`

// Store provides Postgres persistence for guild settings and verified members.
// Every guild shares the same two tables, partitioned by the guild_key column.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// GetGuildConfig returns storage.ErrNotFound for an unconfigured guild.
func (s *Store) GetGuildConfig(ctx context.Context, guildKey string) (model.GuildConfig, error) {
	var (
		cfg      model.GuildConfig
		contract string
		oracle   string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT guild_key, indexer_key, asset_contract, role_name, oracle
		FROM guild_settings WHERE guild_key = $1
	`, guildKey)
	if err := row.Scan(&cfg.GuildKey, &cfg.IndexerKey, &contract, &cfg.RoleName, &oracle); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GuildConfig{}, storage.ErrNotFound
		}
		return model.GuildConfig{}, err
	}
	cfg.AssetContract = common.HexToAddress(contract)
	cfg.Oracle = model.OracleKind(oracle)
	return cfg, nil
}

// SetGuildConfig inserts or fully replaces the guild settings row.
func (s *Store) SetGuildConfig(ctx context.Context, cfg model.GuildConfig) error {
	if cfg.GuildKey == "" {
		return storage.ErrInvalidGuildKey
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO guild_settings (guild_key, indexer_key, asset_contract, role_name, oracle, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (guild_key) DO UPDATE SET
			indexer_key = EXCLUDED.indexer_key,
			asset_contract = EXCLUDED.asset_contract,
			role_name = EXCLUDED.role_name,
			oracle = EXCLUDED.oracle,
			updated_at = now()
	`, cfg.GuildKey, cfg.IndexerKey, cfg.AssetContract.Hex(), cfg.RoleName, string(cfg.Oracle))
	return err
}

// UpsertVerification replaces the address for (guild, member). The first
// created_seq is kept so listings stay in first-verification order.
func (s *Store) UpsertVerification(ctx context.Context, rec model.VerificationRecord) error {
	if rec.GuildKey == "" {
		return storage.ErrInvalidGuildKey
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verified_members (guild_key, member_id, address, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (guild_key, member_id) DO UPDATE SET
			address = EXCLUDED.address,
			updated_at = now()
	`, rec.GuildKey, rec.MemberID, rec.Address.Hex())
	return err
}

func (s *Store) GetVerification(ctx context.Context, guildKey, memberID string) (model.VerificationRecord, error) {
	var address string
	row := s.pool.QueryRow(ctx, `
		SELECT address FROM verified_members WHERE guild_key = $1 AND member_id = $2
	`, guildKey, memberID)
	if err := row.Scan(&address); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.VerificationRecord{}, storage.ErrNotFound
		}
		return model.VerificationRecord{}, err
	}
	return model.VerificationRecord{
		GuildKey: guildKey,
		MemberID: memberID,
		Address:  common.HexToAddress(address),
	}, nil
}

func (s *Store) DeleteVerification(ctx context.Context, guildKey, memberID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM verified_members WHERE guild_key = $1 AND member_id = $2
	`, guildKey, memberID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListVerified(ctx context.Context, guildKey string) ([]model.VerificationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT member_id, address FROM verified_members
		WHERE guild_key = $1
		ORDER BY created_seq
	`, guildKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VerificationRecord
	for rows.Next() {
		var memberID, address string
		if err := rows.Scan(&memberID, &address); err != nil {
			return nil, err
		}
		out = append(out, model.VerificationRecord{
			GuildKey: guildKey,
			MemberID: memberID,
			Address:  common.HexToAddress(address),
		})
	}
	return out, rows.Err()
}

// ImportVerifications upserts many records in one batch, used when migrating
// per-guild membership files into the shared table.
func (s *Store) ImportVerifications(ctx context.Context, records []model.VerificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO verified_members (guild_key, member_id, address, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (guild_key, member_id) DO UPDATE SET
				address = EXCLUDED.address,
				updated_at = now()
		`, rec.GuildKey, rec.MemberID, rec.Address.Hex())
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ storage.ConfigStore     = (*Store)(nil)
	_ storage.MembershipStore = (*Store)(nil)
)

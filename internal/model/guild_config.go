package model

import "github.com/ethereum/go-ethereum/common"

// OracleKind selects how ownership is checked for a guild.
type OracleKind string

const (
	OracleChain   OracleKind = "chain"
	OracleIndexer OracleKind = "indexer"
)

// GuildConfig holds the per-guild verification settings.
type GuildConfig struct {
	GuildKey      string         `json:"guild_key"`
	IndexerKey    string         `json:"indexer_key"`
	AssetContract common.Address `json:"asset_contract"`
	RoleName      string         `json:"role_name"`
	Oracle        OracleKind     `json:"oracle"`
}

// OracleKindOrDefault returns the configured oracle, falling back to the
// indexer when a key is present and to the chain otherwise.
func (c GuildConfig) OracleKindOrDefault() OracleKind {
	switch c.Oracle {
	case OracleChain, OracleIndexer:
		return c.Oracle
	}
	if c.IndexerKey != "" {
		return OracleIndexer
	}
	return OracleChain
}

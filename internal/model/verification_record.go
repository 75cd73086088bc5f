package model

import "github.com/ethereum/go-ethereum/common"

// VerificationRecord maps a guild member to the address they proved ownership with.
type VerificationRecord struct {
	GuildKey string         `json:"guild_key"`
	MemberID string         `json:"member_id"`
	Address  common.Address `json:"address"`
}

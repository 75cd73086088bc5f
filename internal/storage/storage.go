package storage

import (
	"context"
	"errors"

	"guildgate/internal/model"
)

var (
	// ErrNotFound is returned when a guild config or verification record is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidGuildKey is returned when a guild name sanitizes to nothing.
	ErrInvalidGuildKey = errors.New("invalid guild key")
)

// ConfigStore persists one GuildConfig per sanitized guild key.
type ConfigStore interface {
	GetGuildConfig(ctx context.Context, guildKey string) (model.GuildConfig, error)
	SetGuildConfig(ctx context.Context, cfg model.GuildConfig) error
}

// MembershipStore persists one VerificationRecord per (guild key, member id).
type MembershipStore interface {
	UpsertVerification(ctx context.Context, rec model.VerificationRecord) error
	GetVerification(ctx context.Context, guildKey, memberID string) (model.VerificationRecord, error)
	// DeleteVerification reports whether a record existed.
	DeleteVerification(ctx context.Context, guildKey, memberID string) (bool, error)
	// ListVerified returns records in first-verification order.
	ListVerified(ctx context.Context, guildKey string) ([]model.VerificationRecord, error)
}

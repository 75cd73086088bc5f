package platform

import (
	"context"
	"errors"
	"fmt"
)

// ErrMemberNotFound is returned by ResolveMember for unknown members.
var ErrMemberNotFound = errors.New("member not found")

// Role is a community role as seen by the chat platform.
type Role struct {
	ID   string
	Name string
}

// Member is the displayable form of a guild member.
type Member struct {
	ID          string
	DisplayName string
}

// Platform is the chat-platform collaborator. Gateway sessions and command
// dispatch live outside this module; only role and member primitives are used.
// guildID is always the sanitized guild key, so every spelling of a guild name
// resolves to one role set.
type Platform interface {
	FindRoleByName(ctx context.Context, guildID, name string) (*Role, error)
	CreateRole(ctx context.Context, guildID, name string) (Role, error)
	AttachRole(ctx context.Context, guildID, memberID string, role Role) error
	DetachRole(ctx context.Context, guildID, memberID string, role Role) error
	ResolveMember(ctx context.Context, guildID, memberID string) (Member, error)
}

// EnsureRole looks the role up by name and creates it when missing.
func EnsureRole(ctx context.Context, p Platform, guildID, name string) (Role, error) {
	role, err := p.FindRoleByName(ctx, guildID, name)
	if err != nil {
		return Role{}, fmt.Errorf("find role %q: %w", name, err)
	}
	if role != nil {
		return *role, nil
	}
	created, err := p.CreateRole(ctx, guildID, name)
	if err != nil {
		return Role{}, fmt.Errorf("create role %q: %w", name, err)
	}
	return created, nil
}

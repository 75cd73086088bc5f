package ratelimit

import (
	"context"
	"time"
)

// Rule is a fixed-window quota: at most Limit calls per Window, where a
// window opens at the first call for a key and the count resets when it ends.
// A sliding span of Window length that straddles two windows can therefore
// see up to 2*Limit allowed calls. With Limit 1 that is one call just before
// expiry and one just after, never two inside the same window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts calls per subject key. Implementations must make the
// increment-and-compare for a single key linearizable.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
	Reset(ctx context.Context, key string) error
}

// VerifyKey is the subject key for a member's verify attempts.
func VerifyKey(guildKey, memberID string) string {
	return "verify:" + guildKey + ":" + memberID
}

// ListKey is the subject key for a guild's listing command.
func ListKey(guildKey string) string {
	return "list:" + guildKey
}

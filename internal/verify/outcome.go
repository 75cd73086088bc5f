package verify

import (
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome is the terminal state of one verification attempt.
type Outcome string

const (
	OutcomeVerified          Outcome = "verified"
	OutcomeRateLimited       Outcome = "rate_limited"
	OutcomeUnconfigured      Outcome = "unconfigured"
	OutcomeInvalidAddress    Outcome = "invalid_address"
	OutcomeOracleUnavailable Outcome = "oracle_unavailable"
	OutcomeNotOwned          Outcome = "not_owned"
	OutcomeStoreFailure      Outcome = "store_failure"
)

// Accepted reports whether the attempt ended in Verified.
func (o Outcome) Accepted() bool {
	return o == OutcomeVerified
}

// Retryable reports whether the caller may try again later with the same input.
func (o Outcome) Retryable() bool {
	return o == OutcomeOracleUnavailable
}

// Result describes one verification attempt.
type Result struct {
	AttemptID    string         `json:"attempt_id"`
	Outcome      Outcome        `json:"outcome"`
	GuildKey     string         `json:"guild_key,omitempty"`
	MemberID     string         `json:"member_id"`
	Address      common.Address `json:"-"`
	RoleName     string         `json:"role_name,omitempty"`
	RoleAssigned bool           `json:"role_assigned"`
	RetryAfter   time.Duration  `json:"-"`
}

// Message renders the single user-facing reply for the attempt.
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeVerified:
		if r.RoleAssigned {
			return fmt.Sprintf("Verification complete! Role '%s' assigned.", r.RoleName)
		}
		return fmt.Sprintf("Verification complete! Role '%s' will be assigned shortly.", r.RoleName)
	case OutcomeRateLimited:
		return fmt.Sprintf("You're doing that too often. Try again in %d seconds.", RetryAfterSeconds(r.RetryAfter))
	case OutcomeUnconfigured:
		return "This server is not configured for verification yet. Please contact an admin."
	case OutcomeInvalidAddress:
		return "Invalid Ethereum address."
	case OutcomeOracleUnavailable:
		return "Could not check ownership right now. Please try again later."
	case OutcomeNotOwned:
		return "NFT ownership not verified. Please ensure you own the correct NFT."
	case OutcomeStoreFailure:
		return "Something went wrong saving your verification. Please try again later."
	default:
		return "Verification failed."
	}
}

// RetryAfterSeconds rounds d up to whole seconds.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

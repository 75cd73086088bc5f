package model

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIsAddressValid(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"0x1111111111111111111111111111111111111111", true},
		{"0xabcdefABCDEF0123456789abcdefABCDEF012345", true},
		{"0X1111111111111111111111111111111111111111", true},
		{"1111111111111111111111111111111111111111", false},
		{"0x111111111111111111111111111111111111111", false},
		{"0x11111111111111111111111111111111111111111", false},
		{"0x111111111111111111111111111111111111111g", false},
		{"", false},
		{"0x", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsAddressValid(tc.input), tc.input)
	}
}

func TestProperty_AddressValidityIgnoresCase(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.StringMatching(`[0-9a-fA-F]{40}`).Draw(rt, "payload")
		addr := "0x" + payload
		if !IsAddressValid(addr) {
			rt.Fatalf("expected %s to be valid", addr)
		}
		if !IsAddressValid("0x" + strings.ToUpper(payload)) {
			rt.Fatalf("upper-case form of %s should be valid", addr)
		}
		if !IsAddressValid("0x" + strings.ToLower(payload)) {
			rt.Fatalf("lower-case form of %s should be valid", addr)
		}
	})
}

func TestProperty_AddressInvalidLength(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 80).Filter(func(n int) bool { return n != 40 }).Draw(rt, "len")
		payload := strings.Repeat("a", n)
		if IsAddressValid("0x" + payload) {
			rt.Fatalf("length %d should be invalid", n)
		}
	})
}

func TestParseAddressChecksumComparison(t *testing.T) {
	lower, err := ParseAddress("0xeb0ddc0579cf3894c78ae2c4a7d5ec3b36bfa13a")
	require.NoError(t, err)
	mixed, err := ParseAddress("  0xEb0Ddc0579CF3894C78ae2C4A7d5ec3B36bFa13A ")
	require.NoError(t, err)

	assert.True(t, SameAddress(lower, mixed))
	assert.Equal(t, common.HexToAddress("0xEb0Ddc0579CF3894C78ae2C4A7d5ec3B36bFa13A").Hex(), lower.Hex())

	_, err = ParseAddress("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestGuildConfigOracleKindOrDefault(t *testing.T) {
	assert.Equal(t, OracleIndexer, GuildConfig{IndexerKey: "k"}.OracleKindOrDefault())
	assert.Equal(t, OracleChain, GuildConfig{}.OracleKindOrDefault())
	assert.Equal(t, OracleChain, GuildConfig{IndexerKey: "k", Oracle: OracleChain}.OracleKindOrDefault())
}

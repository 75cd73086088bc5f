package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for strings that are not 0x-prefixed 20-byte hex.
var ErrInvalidAddress = errors.New("invalid address")

const addressLength = 2 + 2*common.AddressLength

// IsAddressValid reports whether input is "0x" followed by exactly 40 hex digits.
// Letter case is ignored; mixed-case input is not checked against EIP-55.
func IsAddressValid(input string) bool {
	if len(input) != addressLength {
		return false
	}
	if input[0] != '0' || (input[1] != 'x' && input[1] != 'X') {
		return false
	}
	return common.IsHexAddress(input)
}

// ParseAddress validates input and returns the decoded address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !IsAddressValid(input) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, input)
	}
	return common.HexToAddress(input), nil
}

// SameAddress compares two addresses by their checksummed form.
func SameAddress(a, b common.Address) bool {
	return a.Hex() == b.Hex()
}

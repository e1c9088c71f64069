package wallet

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// addressRegex is a regular expression for validating the basic format of Ethereum-style addresses.
	// It checks for a "0x" prefix followed by exactly 40 hexadecimal characters.
	addressRegex = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")
)

// ValidateAddress validates an address string and returns it parsed.
// Mixed-case input must carry a valid EIP-55 checksum.
//
// Example:
//
//	addr, err := ValidateAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
//	if err != nil {
//	    log.Fatal(err)
//	}
func ValidateAddress(address string) (common.Address, error) {
	if !addressRegex.MatchString(address) {
		return common.Address{}, NewWalletError(ErrCodeInvalidAddress, "invalid address format", nil, "")
	}

	parsed := common.HexToAddress(address)
	lower := strings.ToLower(address)
	if address != lower && address != "0x"+strings.ToUpper(lower[2:]) && address != parsed.Hex() {
		return common.Address{}, NewWalletError(ErrCodeInvalidAddress, "invalid address checksum", nil, "")
	}

	if parsed == (common.Address{}) {
		return common.Address{}, NewWalletError(ErrCodeInvalidAddress, "zero address", nil, "")
	}

	return parsed, nil
}

// Package mint executes public mints: it picks the call shape, checks balances and
// drives wallets through their units one transaction at a time.
package mint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Variant is one of the two argument shapes deployed contracts use for public mint.
type Variant int

const (
	// FourParam is mintPublic(address to, uint256 tokenId, uint256 qty, bytes data).
	FourParam Variant = iota
	// TwoParam is mintPublic(address to, uint256 qty).
	TwoParam
)

const mintMethod = "mintPublic"

const fourParamABI = `[{
	"inputs": [
		{"name": "to", "type": "address"},
		{"name": "tokenId", "type": "uint256"},
		{"name": "qty", "type": "uint256"},
		{"name": "data", "type": "bytes"}
	],
	"name": "mintPublic",
	"outputs": [],
	"stateMutability": "payable",
	"type": "function"
}]`

const twoParamABI = `[{
	"inputs": [
		{"name": "to", "type": "address"},
		{"name": "qty", "type": "uint256"}
	],
	"name": "mintPublic",
	"outputs": [],
	"stateMutability": "payable",
	"type": "function"
}]`

var (
	fourParamContract = mustParseABI(fourParamABI)
	twoParamContract  = mustParseABI(twoParamABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("mint: invalid ABI: %v", err))
	}
	return parsed
}

// ParseVariant accepts "four", "4", "fourparam", "two", "2" or "twoparam" in any case.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "four", "4", "fourparam", "four-param":
		return FourParam, nil
	case "two", "2", "twoparam", "two-param":
		return TwoParam, nil
	default:
		return 0, fmt.Errorf("unknown mint variant %q", s)
	}
}

func (v Variant) String() string {
	switch v {
	case FourParam:
		return "FourParam"
	case TwoParam:
		return "TwoParam"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Alternate returns the other calling convention.
func (v Variant) Alternate() Variant {
	if v == FourParam {
		return TwoParam
	}
	return FourParam
}

// Pack encodes a call minting quantity units to recipient. The price is not part of
// the calldata; it travels as the transaction value.
func (v Variant) Pack(recipient common.Address, quantity *big.Int) ([]byte, error) {
	switch v {
	case FourParam:
		return fourParamContract.Pack(mintMethod, recipient, big.NewInt(0), quantity, []byte{})
	case TwoParam:
		return twoParamContract.Pack(mintMethod, recipient, quantity)
	default:
		return nil, fmt.Errorf("cannot pack %s", v)
	}
}

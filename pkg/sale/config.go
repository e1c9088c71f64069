// Package sale reads a contract's public sale configuration and waits for its window
// to open.
package sale

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/lisanmuaddib/nft-minter/pkg/logging"
)

const configMethod = "getConfig"

// maxUnixSeconds is roughly the year 2242.
const maxUnixSeconds = 1 << 33

// Both shapes return (publicStage, maxSupply, walletLimit).
const configOutputs = `"outputs": [
	{
		"name": "publicStage",
		"type": "tuple",
		"components": [
			{"name": "startTime", "type": "uint256"},
			{"name": "endTime", "type": "uint256"},
			{"name": "price", "type": "uint256"}
		]
	},
	{"name": "maxSupply", "type": "uint256"},
	{"name": "walletLimit", "type": "uint256"}
]`

var (
	noArgABI = mustParseABI(`[{
		"inputs": [],
		"name": "getConfig",
		` + configOutputs + `,
		"stateMutability": "view",
		"type": "function"
	}]`)

	indexedABI = mustParseABI(`[{
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "getConfig",
		` + configOutputs + `,
		"stateMutability": "view",
		"type": "function"
	}]`)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("sale: invalid ABI: %v", err))
	}
	return parsed
}

type publicStage struct {
	StartTime *big.Int
	EndTime   *big.Int
	Price     *big.Int
}

// SaleConfig is one snapshot of the contract's public sale settings.
type SaleConfig struct {
	StartTime   time.Time
	EndTime     time.Time
	Price       *big.Int
	MaxSupply   *big.Int
	WalletLimit *big.Int

	// Probe names the getConfig shape that produced this snapshot.
	Probe string
}

// IsOpen reports whether start <= now <= end. A zero end time means the sale has no end.
func (c *SaleConfig) IsOpen(now time.Time) bool {
	if now.Before(c.StartTime) {
		return false
	}
	// zero end means open-ended
	return c.EndTime.IsZero() || !now.After(c.EndTime)
}

// HasEnded reports whether now is past a set end time.
func (c *SaleConfig) HasEnded(now time.Time) bool {
	return !c.EndTime.IsZero() && now.After(c.EndTime)
}

// Fields renders the snapshot for structured logs.
func (c *SaleConfig) Fields() logging.Fields {
	f := logging.Fields{
		"probe":      c.Probe,
		"start_time": c.StartTime.UTC().Format(time.RFC3339),
		"price":      c.Price,
	}
	if !c.EndTime.IsZero() {
		f["end_time"] = c.EndTime.UTC().Format(time.RFC3339)
	}
	if c.MaxSupply != nil {
		f["max_supply"] = c.MaxSupply
	}
	if c.WalletLimit != nil {
		f["wallet_limit"] = c.WalletLimit
	}
	return f
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	// Clamp far-future sentinels such as type(uint256).max.
	if !v.IsInt64() || v.Int64() > maxUnixSeconds {
		return time.Unix(maxUnixSeconds, 0)
	}
	return time.Unix(v.Int64(), 0)
}

func decodeConfig(method abi.Method, data []byte) (*SaleConfig, error) {
	out, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", method.Name, err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("decode %s output: expected 3 values, got %d", method.Name, len(out))
	}

	stage, ok := abi.ConvertType(out[0], new(publicStage)).(*publicStage)
	if !ok {
		return nil, fmt.Errorf("decode %s output: unexpected publicStage type %T", method.Name, out[0])
	}
	maxSupply, _ := out[1].(*big.Int)
	walletLimit, _ := out[2].(*big.Int)

	price := stage.Price
	if price == nil {
		price = new(big.Int)
	}

	return &SaleConfig{
		StartTime:   unixTime(stage.StartTime),
		EndTime:     unixTime(stage.EndTime),
		Price:       price,
		MaxSupply:   maxSupply,
		WalletLimit: walletLimit,
	}, nil
}

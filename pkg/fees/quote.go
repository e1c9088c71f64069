// Package fees derives EIP-1559 fee bids for mint transactions.
package fees

import (
	"math/big"

	"github.com/lisanmuaddib/nft-minter/pkg/logging"
)

var gweiUnit = big.NewInt(1_000_000_000)

// Gwei converts a whole gwei amount to wei.
func Gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), gweiUnit)
}

// GweiFloat converts a fractional gwei amount (e.g. 1.5) to wei, truncating below 1 wei.
func GweiFloat(g float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(g), new(big.Float).SetInt(gweiUnit))
	wei, _ := f.Int(nil)
	return wei
}

// ToGwei renders a wei amount in gwei for logs.
func ToGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetInt(gweiUnit)).Text('f', 3)
}

// FeeQuote is a fee bid in wei. MaxFeePerGas is meant to cover BaseFee and
// MaxPriorityFeePerGas, but user overrides may break that and are still honoured.
type FeeQuote struct {
	BaseFee              *big.Int
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	// Fallback is set when the quote is the static default because the node could not be read.
	Fallback bool
}

// Fields returns the quote as log fields.
func (q FeeQuote) Fields() logging.Fields {
	return logging.Fields{
		"base_fee_gwei":     ToGwei(q.BaseFee),
		"gas_price_gwei":    ToGwei(q.GasPrice),
		"max_fee_gwei":      ToGwei(q.MaxFeePerGas),
		"priority_fee_gwei": ToGwei(q.MaxPriorityFeePerGas),
		"fallback":          q.Fallback,
	}
}

// Overrides are user-supplied fee values; nil fields keep the quoted value.
type Overrides struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Resolve applies overrides to a quote. A user max fee is accepted as long as it is
// not below the quote's base fee; below that floor the tx could never be included,
// so the quoted max fee is used instead. A fallback quote carries no observed base
// fee, so there the user max fee is taken as given. The priority fee is capped at the final max
// fee since nodes reject tip > cap. Every adjustment is logged as a warning.
func Resolve(quote FeeQuote, o Overrides, log logging.Logger) FeeQuote {
	out := quote
	out.MaxFeePerGas = new(big.Int).Set(quote.MaxFeePerGas)
	out.MaxPriorityFeePerGas = new(big.Int).Set(quote.MaxPriorityFeePerGas)

	if o.MaxFeePerGas != nil {
		if !quote.Fallback && quote.BaseFee != nil && o.MaxFeePerGas.Cmp(quote.BaseFee) < 0 {
			log.Warn("Max fee override is below the current base fee, using quoted max fee", logging.Fields{
				"override_gwei": ToGwei(o.MaxFeePerGas),
				"base_fee_gwei": ToGwei(quote.BaseFee),
				"max_fee_gwei":  ToGwei(quote.MaxFeePerGas),
			})
		} else {
			out.MaxFeePerGas = new(big.Int).Set(o.MaxFeePerGas)
		}
	}

	if o.MaxPriorityFeePerGas != nil {
		out.MaxPriorityFeePerGas = new(big.Int).Set(o.MaxPriorityFeePerGas)
	}

	if out.MaxPriorityFeePerGas.Cmp(out.MaxFeePerGas) > 0 {
		log.Warn("Priority fee exceeds max fee, capping", logging.Fields{
			"priority_fee_gwei": ToGwei(out.MaxPriorityFeePerGas),
			"max_fee_gwei":      ToGwei(out.MaxFeePerGas),
		})
		out.MaxPriorityFeePerGas = new(big.Int).Set(out.MaxFeePerGas)
	}

	return out
}

package mint

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceReader reads a native balance; nil blockNumber means latest.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Check is the outcome of a balance preflight.
type Check struct {
	Balance    *big.Int
	Required   *big.Int
	Sufficient bool
}

// Preflight verifies a wallet can afford a run before anything is submitted.
type Preflight struct {
	reader BalanceReader
}

func NewPreflight(reader BalanceReader) *Preflight {
	return &Preflight{reader: reader}
}

// RequiredBalance is price*quantity + maxFee*gasLimit*quantity. Each unit is its own
// transaction, so the worst-case gas cost is paid quantity times.
func RequiredBalance(price *big.Int, quantity int64, maxFeePerGas *big.Int, gasLimit uint64) *big.Int {
	qty := big.NewInt(quantity)

	required := new(big.Int)
	if price != nil {
		required.Mul(price, qty)
	}

	gas := new(big.Int).SetUint64(gasLimit)
	gas.Mul(gas, maxFeePerGas)
	gas.Mul(gas, qty)

	return required.Add(required, gas)
}

// Check reads account's balance and compares it to RequiredBalance.
func (p *Preflight) Check(ctx context.Context, account common.Address, price *big.Int, quantity int64, maxFeePerGas *big.Int, gasLimit uint64) (Check, error) {
	required := RequiredBalance(price, quantity, maxFeePerGas, gasLimit)

	balance, err := p.reader.BalanceAt(ctx, account, nil)
	if err != nil {
		return Check{Required: required}, fmt.Errorf("read balance of %s: %w", account.Hex(), err)
	}

	return Check{
		Balance:    balance,
		Required:   required,
		Sufficient: balance.Cmp(required) >= 0,
	}, nil
}

package mint

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lisanmuaddib/nft-minter/pkg/logging"
	"github.com/lisanmuaddib/nft-minter/pkg/wallet"
)

// Submitter sends a signed call and waits for it to be mined. *wallet.Client
// implements it.
type Submitter interface {
	SubmitCall(ctx context.Context, req wallet.CallRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*wallet.TransactionStatus, error)
}

// Request is one unit of mint: a single transaction for quantity 1.
type Request struct {
	Contract             common.Address
	Wallet               *wallet.Wallet
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Variant              Variant
	Price                *big.Int
}

// Receipt is the observable part of a successful mint.
type Receipt struct {
	TxHash            common.Hash
	BlockNumber       *big.Int
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Failure describes a failed attempt. TxHash is set when the failure happened after
// broadcast.
type Failure struct {
	Class  FailureClass
	Reason string
	Err    error
	TxHash common.Hash
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Class, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is exactly one of Receipt or Failure. Variant is the convention that produced
// the outcome; Tried lists every convention attempted, in order.
type Result struct {
	Variant Variant
	Tried   []Variant
	Receipt *Receipt
	Failure *Failure
}

// Succeeded reports whether the unit was minted.
func (r Result) Succeeded() bool {
	return r.Receipt != nil
}

// Executor issues mint calls and applies the FourParam → TwoParam fallback.
type Executor struct {
	submitter Submitter
	log       logging.Logger
	fallback  bool
}

// NewExecutor returns an executor with variant fallback enabled.
func NewExecutor(submitter Submitter, log logging.Logger) *Executor {
	return &Executor{submitter: submitter, log: log, fallback: true}
}

// WithoutFallback disables the automatic retry with the alternate variant.
func (e *Executor) WithoutFallback() *Executor {
	cp := *e
	cp.fallback = false
	return &cp
}

// Execute mints one unit with req.Variant. If that variant is FourParam and the call
// reverts, it retries once as TwoParam with identical fees. Insufficient funds,
// network errors and mined-but-failed transactions are returned as they are.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	tried := make([]Variant, 0, 2)
	variant := req.Variant

	for {
		tried = append(tried, variant)
		res := e.attempt(ctx, req, variant)
		res.Tried = tried

		if res.Succeeded() || !e.shouldFallback(variant, res.Failure, tried) {
			return res
		}

		next := variant.Alternate()
		e.log.Warn("Mint call reverted, retrying with alternate variant", logging.Fields{
			"wallet":  req.Wallet.Address().Hex(),
			"variant": variant.String(),
			"next":    next.String(),
			"reason":  res.Failure.Reason,
		})
		variant = next
	}
}

func (e *Executor) shouldFallback(variant Variant, f *Failure, tried []Variant) bool {
	return e.fallback &&
		variant == FourParam &&
		f != nil && f.Class == CallReverted &&
		len(tried) == 1
}

func (e *Executor) attempt(ctx context.Context, req Request, variant Variant) Result {
	res := Result{Variant: variant}
	fail := func(class FailureClass, reason string, err error, hash common.Hash) Result {
		res.Failure = &Failure{Class: class, Reason: reason, Err: err, TxHash: hash}
		return res
	}

	data, err := variant.Pack(req.Wallet.Address(), big.NewInt(1))
	if err != nil {
		return fail(Other, "failed to encode mint call", err, common.Hash{})
	}

	e.log.Debug("Submitting mint call", logging.Fields{
		"wallet":    req.Wallet.Address().Hex(),
		"variant":   variant.String(),
		"contract":  req.Contract.Hex(),
		"gas_limit": req.GasLimit,
	})

	hash, err := e.submitter.SubmitCall(ctx, wallet.CallRequest{
		From:      req.Wallet,
		To:        req.Contract,
		Data:      data,
		Value:     req.Price,
		GasLimit:  req.GasLimit,
		GasFeeCap: req.MaxFeePerGas,
		GasTipCap: req.MaxPriorityFeePerGas,
	})
	if err != nil {
		return fail(Classify(err), reasonOf(err), err, common.Hash{})
	}

	e.log.Info("Mint transaction submitted, waiting to be mined", logging.Fields{
		"wallet":  req.Wallet.Address().Hex(),
		"variant": variant.String(),
		"tx_hash": hash.Hex(),
	})

	status, err := e.submitter.WaitForReceipt(ctx, hash)
	if err != nil {
		return fail(Other, "failed waiting for receipt", err, hash)
	}
	if !status.Succeeded() {
		err := wallet.NewWalletError(wallet.ErrCodeReceiptFailed, "transaction mined with failed status", nil, "")
		return fail(ExecutionFailed, "transaction mined but execution failed", err, hash)
	}

	res.Receipt = &Receipt{
		TxHash:            hash,
		BlockNumber:       status.BlockNumber,
		GasUsed:           status.GasUsed,
		EffectiveGasPrice: status.EffectiveGasPrice,
	}
	return res
}

func reasonOf(err error) string {
	var we *wallet.WalletError
	if errors.As(err, &we) {
		return we.Message
	}
	return err.Error()
}

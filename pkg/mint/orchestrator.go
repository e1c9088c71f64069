package mint

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lisanmuaddib/nft-minter/pkg/fees"
	"github.com/lisanmuaddib/nft-minter/pkg/logging"
	"github.com/lisanmuaddib/nft-minter/pkg/wallet"
)

const (
	// DefaultUnitDelay is the pause between units minted by the same wallet.
	DefaultUnitDelay = 2 * time.Second
	// DefaultWalletDelay is the pause before moving to the next wallet.
	DefaultWalletDelay = 5 * time.Second
)

// FeeQuoter produces a fee bid. *fees.Estimator implements it.
type FeeQuoter interface {
	Estimate(ctx context.Context) fees.FeeQuote
}

// PriceReader returns the current public mint price.
type PriceReader interface {
	CurrentPrice(ctx context.Context) (*big.Int, error)
}

// WindowWaiter blocks until the sale opens and then calls onOpen once with the price.
type WindowWaiter interface {
	Wait(ctx context.Context, onOpen func(ctx context.Context, price *big.Int) error) error
}

// Attempt is one executed unit, handed to a Recorder.
type Attempt struct {
	RunID    uuid.UUID
	WalletID int
	Wallet   common.Address
	Contract common.Address
	Unit     int
	Price    *big.Int
	Fees     fees.FeeQuote
	Result   Result
	At       time.Time
}

// Recorder persists attempts for later diagnosis. It is never read back by a run.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// Plan is everything one run needs. Wallets are processed in slice order.
type Plan struct {
	Contract   common.Address
	Wallets    []*wallet.Wallet
	MintAmount int
	GasLimit   uint64
	Variant    Variant
	Price      *big.Int
	Fees       fees.Overrides
}

func (p Plan) validate() error {
	if p.Contract == (common.Address{}) {
		return errors.New("contract address is required")
	}
	if len(p.Wallets) == 0 {
		return errors.New("at least one wallet is required")
	}
	if p.MintAmount < 1 {
		return fmt.Errorf("mint amount must be at least 1, got %d", p.MintAmount)
	}
	if p.GasLimit == 0 {
		return errors.New("gas limit is required")
	}
	return nil
}

// WalletSummary is what happened to one wallet.
type WalletSummary struct {
	WalletID   int
	Address    common.Address
	Preflight  Check
	Attempts   int
	Successes  int
	Skipped    bool
	SkipReason string
	Failure    *Failure
}

// Summary is the outcome of a run.
type Summary struct {
	RunID     uuid.UUID
	Wallets   []WalletSummary
	Successes int
	Failures  int
	Skipped   int
}

func (s *Summary) add(ws WalletSummary) {
	s.Wallets = append(s.Wallets, ws)
	s.Successes += ws.Successes
	if ws.Failure != nil {
		s.Failures++
	}
	if ws.Skipped {
		s.Skipped++
	}
}

// Config wires an Orchestrator. Fees, Preflight, Executor and Logger are required.
type Config struct {
	Fees      FeeQuoter
	Preflight *Preflight
	Executor  *Executor
	Logger    logging.Logger
	Recorder  Recorder

	UnitDelay     time.Duration
	WalletDelay   time.Duration
	ExplorerTxURL string

	// Sleep pauses between units and wallets; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator runs plans: wallets in order, units in order, one transaction in flight.
type Orchestrator struct {
	config Config
	log    logging.Logger
}

// New creates an orchestrator.
func New(config Config) (*Orchestrator, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &Orchestrator{config: config, log: config.Logger}, nil
}

func validateConfig(config *Config) error {
	if config.Fees == nil {
		return errors.New("fee estimator is required")
	}
	if config.Preflight == nil {
		return errors.New("balance preflight is required")
	}
	if config.Executor == nil {
		return errors.New("mint executor is required")
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	if config.Sleep == nil {
		config.Sleep = sleep
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunImmediate mints now. A nil plan price is read once from prices.
func (o *Orchestrator) RunImmediate(ctx context.Context, plan Plan, prices PriceReader) (*Summary, error) {
	if plan.Price == nil {
		if prices == nil {
			return nil, errors.New("mint price is unknown and no price reader is configured")
		}
		price, err := prices.CurrentPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("read mint price: %w", err)
		}
		plan.Price = price
	}
	return o.Run(ctx, plan)
}

// RunMonitored waits for the sale window, then runs the plan at the on-chain price.
func (o *Orchestrator) RunMonitored(ctx context.Context, plan Plan, waiter WindowWaiter) (*Summary, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}

	var summary *Summary
	err := waiter.Wait(ctx, func(ctx context.Context, price *big.Int) error {
		if plan.Price != nil && plan.Price.Cmp(price) != 0 {
			o.log.Warn("Configured price differs from on-chain price, using on-chain price", logging.Fields{
				"configured": plan.Price,
				"on_chain":   price,
			})
		}
		plan.Price = price

		var runErr error
		summary, runErr = o.Run(ctx, plan)
		return runErr
	})
	return summary, err
}

// Run executes plan. Per-wallet problems are logged and recorded in the summary;
// only an invalid plan or a cancelled context returns an error.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*Summary, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	if plan.Price == nil {
		return nil, errors.New("mint price is required")
	}

	summary := &Summary{RunID: uuid.New()}
	o.log.Info("Starting mint run", logging.Fields{
		"run_id":      summary.RunID.String(),
		"contract":    plan.Contract.Hex(),
		"wallets":     len(plan.Wallets),
		"mint_amount": plan.MintAmount,
		"variant":     plan.Variant.String(),
		"price":       plan.Price,
	})

	for i, w := range plan.Wallets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.add(o.runWallet(ctx, summary.RunID, plan, w))

		if i < len(plan.Wallets)-1 {
			if err := o.config.Sleep(ctx, o.config.WalletDelay); err != nil {
				return summary, err
			}
		}
	}

	o.log.Info("Mint run finished", logging.Fields{
		"run_id":    summary.RunID.String(),
		"successes": summary.Successes,
		"failures":  summary.Failures,
		"skipped":   summary.Skipped,
	})
	return summary, nil
}

func (o *Orchestrator) runWallet(ctx context.Context, runID uuid.UUID, plan Plan, w *wallet.Wallet) WalletSummary {
	ws := WalletSummary{WalletID: w.ID(), Address: w.Address()}
	fields := func(extra logging.Fields) logging.Fields {
		f := logging.Fields{"run_id": runID.String(), "wallet": w.Address().Hex(), "wallet_id": w.ID()}
		for k, v := range extra {
			f[k] = v
		}
		return f
	}

	quote := fees.Resolve(o.config.Fees.Estimate(ctx), plan.Fees, o.log)
	o.log.Info("Processing wallet", fields(quote.Fields()))

	check, err := o.config.Preflight.Check(ctx, w.Address(), plan.Price, int64(plan.MintAmount), quote.MaxFeePerGas, plan.GasLimit)
	ws.Preflight = check
	if err != nil {
		ws.Skipped = true
		ws.SkipReason = "balance unavailable"
		o.log.Error("Could not read wallet balance, skipping wallet", err, fields(nil))
		return ws
	}
	if !check.Sufficient {
		ws.Skipped = true
		ws.SkipReason = "insufficient balance"
		o.log.Warn("Insufficient balance, skipping wallet", fields(logging.Fields{
			"balance":  check.Balance,
			"required": check.Required,
		}))
		return ws
	}

	for unit := 1; unit <= plan.MintAmount; unit++ {
		res := o.config.Executor.Execute(ctx, Request{
			Contract:             plan.Contract,
			Wallet:               w,
			GasLimit:             plan.GasLimit,
			MaxFeePerGas:         quote.MaxFeePerGas,
			MaxPriorityFeePerGas: quote.MaxPriorityFeePerGas,
			Variant:              plan.Variant,
			Price:                plan.Price,
		})
		ws.Attempts++
		o.record(ctx, Attempt{
			RunID:    runID,
			WalletID: w.ID(),
			Wallet:   w.Address(),
			Contract: plan.Contract,
			Unit:     unit,
			Price:    plan.Price,
			Fees:     quote,
			Result:   res,
			At:       time.Now(),
		})

		unitFields := logging.Fields{"unit": unit, "of": plan.MintAmount, "variant": res.Variant.String()}
		if !res.Succeeded() {
			ws.Failure = res.Failure
			unitFields["class"] = string(res.Failure.Class)
			unitFields["reason"] = res.Failure.Reason
			if res.Failure.TxHash != (common.Hash{}) {
				unitFields["tx_hash"] = res.Failure.TxHash.Hex()
			}
			o.log.Error("Mint failed, abandoning remaining units for wallet", res.Failure.Err, fields(unitFields))
			break
		}

		ws.Successes++
		unitFields["tx_hash"] = res.Receipt.TxHash.Hex()
		unitFields["block"] = res.Receipt.BlockNumber
		unitFields["gas_used"] = res.Receipt.GasUsed
		unitFields["effective_gas_price"] = res.Receipt.EffectiveGasPrice
		if o.config.ExplorerTxURL != "" {
			unitFields["explorer_url"] = o.config.ExplorerTxURL + res.Receipt.TxHash.Hex()
		}
		o.log.Success("Minted", fields(unitFields))

		if unit < plan.MintAmount {
			if err := o.config.Sleep(ctx, o.config.UnitDelay); err != nil {
				break
			}
		}
	}

	return ws
}

func (o *Orchestrator) record(ctx context.Context, attempt Attempt) {
	if o.config.Recorder == nil {
		return
	}
	if err := o.config.Recorder.RecordAttempt(ctx, attempt); err != nil {
		o.log.Warn("Failed to record mint attempt", logging.Fields{
			"run_id": attempt.RunID.String(),
			"unit":   attempt.Unit,
			"error":  err,
		})
	}
}

package fees

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lisanmuaddib/nft-minter/pkg/logging"
)

const (
	// DefaultAttempts is how many times Estimate reads the fee market before falling back.
	DefaultAttempts = 3

	// DefaultRetryDelay is the pause between failed reads.
	DefaultRetryDelay = time.Second

	// baseFeeMultiplier over-provisions the max fee against base fee growth between
	// estimation and inclusion.
	baseFeeMultiplier = 2
)

var (
	// DefaultBaseFee is the base fee assumed when the node cannot be read.
	DefaultBaseFee = Gwei(50)
	// DefaultGasPrice is the gas price assumed when the node cannot be read.
	DefaultGasPrice = Gwei(100)
	// DefaultPriorityFee is the tip used unless configured otherwise (1.5 gwei).
	DefaultPriorityFee = big.NewInt(1_500_000_000)
)

// FeeReader is the fee-market view the estimator needs. *wallet.Client and
// *ethclient.Client both satisfy it.
type FeeReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Config controls retries and the priority fee.
type Config struct {
	Attempts    int
	RetryDelay  time.Duration
	PriorityFee *big.Int
}

// DefaultConfig returns 3 attempts, 1s apart, with a 1.5 gwei tip.
func DefaultConfig() Config {
	return Config{
		Attempts:    DefaultAttempts,
		RetryDelay:  DefaultRetryDelay,
		PriorityFee: new(big.Int).Set(DefaultPriorityFee),
	}
}

// Estimator produces fee quotes. It keeps no state between calls.
type Estimator struct {
	reader FeeReader
	config Config
	log    logging.Logger
}

// NewEstimator builds an estimator; zero config fields take their defaults.
func NewEstimator(reader FeeReader, config Config, log logging.Logger) *Estimator {
	def := DefaultConfig()
	if config.Attempts <= 0 {
		config.Attempts = def.Attempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}
	if config.PriorityFee == nil {
		config.PriorityFee = def.PriorityFee
	}
	return &Estimator{reader: reader, config: config, log: log}
}

// DefaultQuote is the conservative quote used when the fee market is unreadable.
func (e *Estimator) DefaultQuote() FeeQuote {
	return e.quote(DefaultBaseFee, DefaultGasPrice, true)
}

// Estimate reads the latest base fee and suggested gas price and returns a bid with
// MaxFeePerGas = max(gasPrice, 2*baseFee). After Attempts failed reads, or if ctx
// ends while waiting to retry, it returns DefaultQuote. It never fails.
func (e *Estimator) Estimate(ctx context.Context) FeeQuote {
	for attempt := 1; attempt <= e.config.Attempts; attempt++ {
		baseFee, gasPrice, err := e.read(ctx)
		if err == nil {
			q := e.quote(baseFee, gasPrice, false)
			e.log.Debug("Fee quote estimated", q.Fields())
			return q
		}

		e.log.Warn("Failed to read fee data", logging.Fields{
			"attempt":  attempt,
			"attempts": e.config.Attempts,
			"error":    err,
		})

		if attempt == e.config.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			e.log.Warn("Fee estimation cancelled, using default quote", nil)
			return e.DefaultQuote()
		case <-time.After(e.config.RetryDelay):
		}
	}

	q := e.DefaultQuote()
	e.log.Warn("Fee data unavailable, using default quote", q.Fields())
	return q
}

func (e *Estimator) read(ctx context.Context) (*big.Int, *big.Int, error) {
	header, err := e.reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	baseFee := new(big.Int)
	if header.BaseFee != nil {
		baseFee.Set(header.BaseFee)
	}

	gasPrice, err := e.reader.SuggestGasPrice(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return baseFee, gasPrice, nil
}

func (e *Estimator) quote(baseFee, gasPrice *big.Int, fallback bool) FeeQuote {
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(baseFeeMultiplier))
	if gasPrice.Cmp(maxFee) > 0 {
		maxFee.Set(gasPrice)
	}

	tip := new(big.Int).Set(e.config.PriorityFee)
	if tip.Cmp(maxFee) > 0 {
		tip.Set(maxFee)
	}

	return FeeQuote{
		BaseFee:              new(big.Int).Set(baseFee),
		GasPrice:             new(big.Int).Set(gasPrice),
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
		Fallback:             fallback,
	}
}

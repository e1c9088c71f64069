package sale

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/lisanmuaddib/nft-minter/pkg/logging"
)

const (
	DefaultInterval = time.Second
	MinInterval     = 100 * time.Millisecond
)

// State of a Monitor. Open is terminal.
type State int32

const (
	Waiting State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "waiting"
}

// ConfigReader returns the current sale configuration. *Reader implements it.
type ConfigReader interface {
	Read(ctx context.Context) (*SaleConfig, error)
}

// MonitorConfig tunes polling. Zero values take defaults; Interval is raised to
// MinInterval when lower. Deadline, when positive, bounds the whole wait.
type MonitorConfig struct {
	Interval time.Duration
	Deadline time.Duration
	Now      func() time.Time
}

// Monitor polls the sale config until the public window opens.
type Monitor struct {
	reader ConfigReader
	config MonitorConfig
	log    logging.Logger
	state  atomic.Int32
}

func NewMonitor(reader ConfigReader, config MonitorConfig, log logging.Logger) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Interval < MinInterval {
		config.Interval = MinInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Monitor{reader: reader, config: config, log: log}
}

// State returns Waiting until Wait has seen the window open.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Interval is the effective polling period.
func (m *Monitor) Interval() time.Duration {
	return m.config.Interval
}

// Wait polls every interval, one read at a time. When the window is open it calls
// onOpen exactly once with the price from that snapshot and returns its error. Read
// failures count as not open. Cancelling parent or passing the deadline returns the
// context's error.
func (m *Monitor) Wait(parent context.Context, onOpen func(ctx context.Context, price *big.Int) error) error {
	ctx := parent
	if m.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, m.config.Deadline)
		defer cancel()
	}

	m.log.Info("Monitoring sale window", logging.Fields{
		"interval": m.config.Interval.String(),
		"deadline": m.config.Deadline.String(),
	})

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	warnedEnded := false
	for {
		if err := ctx.Err(); err != nil {
			m.log.Warn("Stopped monitoring sale window", logging.Fields{"error": err})
			return err
		}

		cfg, open := m.tick(ctx, &warnedEnded)
		if open {
			m.state.Store(int32(Open))
			m.log.Success("Sale window is open", cfg.Fields())
			// The deadline bounds waiting only; the callback runs under the caller's ctx.
			return onOpen(parent, cfg.Price)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

func (m *Monitor) tick(ctx context.Context, warnedEnded *bool) (*SaleConfig, bool) {
	cfg, err := m.reader.Read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("Could not read sale config, still waiting", logging.Fields{"error": err})
		}
		return nil, false
	}

	now := m.config.Now()
	if cfg.IsOpen(now) {
		return cfg, true
	}

	if cfg.HasEnded(now) {
		if !*warnedEnded {
			*warnedEnded = true
			m.log.Warn("Sale window has already closed, still waiting", cfg.Fields())
		}
		return cfg, false
	}

	fields := cfg.Fields()
	fields["starts_in"] = cfg.StartTime.Sub(now).Round(time.Second).String()
	m.log.Debug("Sale not open yet", fields)
	return cfg, false
}

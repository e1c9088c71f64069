package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lisanmuaddib/nft-minter/internal/mintconfig"
	"github.com/lisanmuaddib/nft-minter/pkg/fees"
	"github.com/lisanmuaddib/nft-minter/pkg/journal"
	"github.com/lisanmuaddib/nft-minter/pkg/logging"
	"github.com/lisanmuaddib/nft-minter/pkg/mint"
	"github.com/lisanmuaddib/nft-minter/pkg/sale"
	"github.com/lisanmuaddib/nft-minter/pkg/wallet"
)

const (
	modeImmediate = "immediate"
	modeMonitor   = "monitor"
)

// app is the state shared by every subcommand once flags and config are loaded.
type app struct {
	envFile string
	cfg     *mintconfig.Config
	base    *logrus.Logger
	log     logging.Logger
}

// flagKeys maps CLI flags onto config keys so a flag overrides its env var.
var flagKeys = map[string]string{
	"log-level":         mintconfig.KeyLogLevel,
	"rpc-url":           mintconfig.KeyRPCURL,
	"network":           mintconfig.KeyNetwork,
	"contract":          mintconfig.KeyContract,
	"amount":            mintconfig.KeyMintAmount,
	"gas-limit":         mintconfig.KeyGasLimit,
	"variant":           mintconfig.KeyVariant,
	"price-wei":         mintconfig.KeyPriceWei,
	"max-fee-gwei":      mintconfig.KeyMaxFeeGwei,
	"priority-fee-gwei": mintconfig.KeyPriorityFeeGwei,
	"poll-interval":     mintconfig.KeyPollInterval,
	"deadline":          mintconfig.KeyMonitorDeadline,
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&app{})
}

func newRootCmdFor(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "minter",
		Short:         "Mint NFTs from a public sale across several wallets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("rpc-url", "", "JSON-RPC endpoint")
	pf.String("network", "", "network defaults to use: ETH, BASE or BSC")
	pf.String("contract", "", "NFT contract address")

	root.AddCommand(newRunCmd(a), newFeesCmd(a), newConfigCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	v, err := mintconfig.NewViper(a.envFile)
	if err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	base, levelErr := logging.NewConsole(v.GetString(mintconfig.KeyLogLevel))
	a.base, a.log = base, logging.New(base)
	if levelErr != nil {
		a.log.Warn("Invalid log level specified, defaulting to INFO", logging.Fields{
			"attempted_level": v.GetString(mintconfig.KeyLogLevel),
		})
	}

	a.cfg, err = mintconfig.Load(v)
	if err != nil {
		a.log.Error("Failed to load configuration", err, nil)
		return err
	}
	return nil
}

func (a *app) dial(ctx context.Context) (*wallet.Client, error) {
	client, err := wallet.Dial(ctx, a.base, a.cfg.NetworkConfig())
	if err != nil {
		return nil, err
	}
	chainID, err := client.VerifyChainID(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	a.log.Info("Connected to network", logging.Fields{
		"network":  string(a.cfg.Network),
		"chain_id": chainID,
	})
	return client, nil
}

func newRunCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mint now, or wait for the sale window and then mint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != modeImmediate && mode != modeMonitor {
				return fmt.Errorf("--mode must be %q or %q, got %q", modeImmediate, modeMonitor, mode)
			}
			if err := a.cfg.Validate(); err != nil {
				a.log.Error("Invalid configuration", err, nil)
				return err
			}
			return a.run(cmd.Context(), mode)
		},
	}

	f := cmd.Flags()
	f.StringVar(&mode, "mode", modeImmediate, "immediate or monitor")
	f.Int("amount", mintconfig.DefaultMintAmount, "units to mint per wallet")
	f.Uint64("gas-limit", mintconfig.DefaultGasLimit, "gas limit per mint transaction")
	f.String("variant", mint.FourParam.String(), "mintPublic shape to try first: four or two")
	f.String("price-wei", "", "mint price in wei; read from the contract when empty")
	f.Float64("max-fee-gwei", 0, "max fee per gas override in gwei")
	f.Float64("priority-fee-gwei", 0, "priority fee override in gwei")
	f.Duration("poll-interval", sale.DefaultInterval, "sale window polling interval")
	f.Duration("deadline", 0, "give up monitoring after this long (0 waits forever)")
	return cmd
}

func (a *app) run(ctx context.Context, mode string) error {
	client, err := a.dial(ctx)
	if err != nil {
		a.log.Error("Failed to connect to network", err, logging.Fields{"rpc_url": a.cfg.RPCURL})
		return err
	}
	defer client.Close()

	var recorder mint.Recorder
	if a.cfg.Journal.Enabled() {
		store, err := journal.Open(a.base, a.cfg.Journal)
		if err != nil {
			a.log.Error("Journal unavailable, continuing without it", err, nil)
		} else {
			defer store.Close()
			recorder = store
		}
	}

	orch, err := mint.New(mint.Config{
		Fees:          fees.NewEstimator(client, fees.DefaultConfig(), a.log),
		Preflight:     mint.NewPreflight(client),
		Executor:      mint.NewExecutor(client, a.log),
		Logger:        a.log,
		Recorder:      recorder,
		UnitDelay:     a.cfg.UnitDelay,
		WalletDelay:   a.cfg.WalletDelay,
		ExplorerTxURL: a.cfg.ExplorerTxURL,
	})
	if err != nil {
		return err
	}

	reader := sale.NewReader(client, a.cfg.Contract)
	plan := a.cfg.Plan()

	var summary *mint.Summary
	switch mode {
	case modeMonitor:
		monitor := sale.NewMonitor(reader, sale.MonitorConfig{
			Interval: a.cfg.PollInterval,
			Deadline: a.cfg.MonitorDeadline,
		}, a.log)
		summary, err = orch.RunMonitored(ctx, plan, monitor)
	default:
		summary, err = orch.RunImmediate(ctx, plan, reader)
	}

	if summary != nil {
		a.report(summary)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.log.Warn("Run cancelled", nil)
		} else {
			a.log.Error("Run stopped", err, nil)
		}
		return err
	}
	if summary.Successes == 0 {
		return errors.New("no units were minted")
	}
	return nil
}

func (a *app) report(s *mint.Summary) {
	for _, ws := range s.Wallets {
		fields := logging.Fields{
			"wallet":    ws.Address.Hex(),
			"wallet_id": ws.WalletID,
			"attempts":  ws.Attempts,
			"successes": ws.Successes,
		}
		switch {
		case ws.Skipped:
			fields["skipped"] = ws.SkipReason
			a.log.Warn("Wallet skipped", fields)
		case ws.Failure != nil:
			fields["failure"] = ws.Failure.Error()
			a.log.Warn("Wallet stopped early", fields)
		default:
			a.log.Success("Wallet complete", fields)
		}
	}
	a.log.Info("Summary", logging.Fields{
		"run_id":    s.RunID.String(),
		"successes": s.Successes,
		"failures":  s.Failures,
		"skipped":   s.Skipped,
	})
}

func newFeesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fees",
		Short: "Print the current fee quote with overrides applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.RPCURL == "" {
				return fmt.Errorf("%s is required", mintconfig.KeyRPCURL)
			}
			client, err := a.dial(cmd.Context())
			if err != nil {
				a.log.Error("Failed to connect to network", err, nil)
				return err
			}
			defer client.Close()

			quote := fees.NewEstimator(client, fees.DefaultConfig(), a.log).Estimate(cmd.Context())
			resolved := fees.Resolve(quote, a.cfg.FeeOverrides(), a.log)
			a.log.Info("Fee quote", resolved.Fields())
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Read and print the contract's public sale configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.RPCURL == "" || a.cfg.Contract == (common.Address{}) {
				return fmt.Errorf("%s and %s are required", mintconfig.KeyRPCURL, mintconfig.KeyContract)
			}
			client, err := a.dial(cmd.Context())
			if err != nil {
				a.log.Error("Failed to connect to network", err, nil)
				return err
			}
			defer client.Close()

			cfg, err := sale.NewReader(client, a.cfg.Contract).Read(cmd.Context())
			if err != nil {
				a.log.Error("Failed to read sale config", err, logging.Fields{"contract": a.cfg.Contract.Hex()})
				return err
			}
			fields := cfg.Fields()
			fields["open"] = cfg.IsOpen(time.Now())
			a.log.Info("Sale config", fields)
			return nil
		},
	}
}

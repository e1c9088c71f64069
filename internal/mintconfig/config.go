// Package mintconfig loads run settings from .env, the environment and CLI flags.
package mintconfig

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lisanmuaddib/nft-minter/pkg/fees"
	"github.com/lisanmuaddib/nft-minter/pkg/journal"
	"github.com/lisanmuaddib/nft-minter/pkg/mint"
	"github.com/lisanmuaddib/nft-minter/pkg/sale"
	"github.com/lisanmuaddib/nft-minter/pkg/wallet"
)

// Keys, as environment variable names. Viper matches them case-insensitively.
const (
	KeyNetwork         = "NETWORK"
	KeyRPCURL          = "RPC_URL"
	KeyChainID         = "CHAIN_ID"
	KeyExplorerTxURL   = "EXPLORER_TX_URL"
	KeyContract        = "CONTRACT_ADDRESS"
	KeyMintAmount      = "MINT_AMOUNT"
	KeyGasLimit        = "GAS_LIMIT"
	KeyVariant         = "VARIANT"
	KeyPriceWei        = "PRICE_WEI"
	KeyMaxFeeGwei      = "MAX_FEE_GWEI"
	KeyPriorityFeeGwei = "PRIORITY_FEE_GWEI"
	KeyPollInterval    = "POLL_INTERVAL"
	KeyUnitDelay       = "UNIT_DELAY"
	KeyWalletDelay     = "WALLET_DELAY"
	KeyMonitorDeadline = "MONITOR_DEADLINE"
	KeyRPCRPS          = "RPC_RPS"
	KeyPrivateKeys     = "PRIVATE_KEYS"
	KeyLogLevel        = "LOG_LEVEL"
	KeyDBHost          = "DB_HOST"
	KeyDBPort          = "DB_PORT"
	KeyDBUser          = "DB_USER"
	KeyDBPassword      = "DB_PASSWORD"
	KeyDBName          = "DB_NAME"
	KeyDBSSLMode       = "DB_SSLMODE"
)

const (
	DefaultMintAmount = 1
	DefaultGasLimit   = 300_000
)

// Config is a fully loaded run configuration.
type Config struct {
	Network       wallet.NetworkType
	RPCURL        string
	ChainID       int64
	ExplorerTxURL string
	RPCRPS        float64

	Contract   common.Address
	MintAmount int
	GasLimit   uint64
	Variant    mint.Variant
	// Price is nil unless PRICE_WEI is set; the run then reads it from the contract.
	Price *big.Int

	// Zero means "use the estimate".
	MaxFeeGwei      float64
	PriorityFeeGwei float64

	PollInterval    time.Duration
	UnitDelay       time.Duration
	WalletDelay     time.Duration
	MonitorDeadline time.Duration

	LogLevel string
	Journal  journal.Config
	Wallets  []*wallet.Wallet
}

// NewViper loads the given .env files (default ".env"; missing files are ignored) and
// returns a viper instance reading the environment with defaults applied.
func NewViper(envFiles ...string) (*viper.Viper, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	SetDefaults(v)
	return v, nil
}

// SetDefaults registers the default for every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyNetwork, string(wallet.ETH))
	v.SetDefault(KeyMintAmount, DefaultMintAmount)
	v.SetDefault(KeyGasLimit, DefaultGasLimit)
	v.SetDefault(KeyVariant, mint.FourParam.String())
	v.SetDefault(KeyPollInterval, sale.DefaultInterval)
	v.SetDefault(KeyUnitDelay, mint.DefaultUnitDelay)
	v.SetDefault(KeyWalletDelay, mint.DefaultWalletDelay)
	v.SetDefault(KeyMonitorDeadline, time.Duration(0))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyDBPort, "5432")
	v.SetDefault(KeyDBSSLMode, "disable")
}

// Load reads every setting from v. Network defaults fill in the RPC throttle, chain id
// and explorer link when they are not set. Load does not validate; call Validate.
func Load(v *viper.Viper) (*Config, error) {
	network := wallet.NetworkType(strings.ToUpper(v.GetString(KeyNetwork)))
	netDefaults, err := wallet.DefaultNetworkConfig(network)
	if err != nil {
		return nil, err
	}

	variant, err := mint.ParseVariant(v.GetString(KeyVariant))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Network:         network,
		RPCURL:          strings.TrimSpace(v.GetString(KeyRPCURL)),
		ChainID:         netDefaults.ChainID,
		ExplorerTxURL:   netDefaults.ExplorerTxURL,
		RPCRPS:          netDefaults.RequestsPerSecond,
		MintAmount:      v.GetInt(KeyMintAmount),
		GasLimit:        v.GetUint64(KeyGasLimit),
		Variant:         variant,
		MaxFeeGwei:      v.GetFloat64(KeyMaxFeeGwei),
		PriorityFeeGwei: v.GetFloat64(KeyPriorityFeeGwei),
		PollInterval:    v.GetDuration(KeyPollInterval),
		UnitDelay:       v.GetDuration(KeyUnitDelay),
		WalletDelay:     v.GetDuration(KeyWalletDelay),
		MonitorDeadline: v.GetDuration(KeyMonitorDeadline),
		LogLevel:        v.GetString(KeyLogLevel),
		Journal: journal.Config{
			Host:     v.GetString(KeyDBHost),
			Port:     v.GetString(KeyDBPort),
			User:     v.GetString(KeyDBUser),
			Password: v.GetString(KeyDBPassword),
			Name:     v.GetString(KeyDBName),
			SSLMode:  v.GetString(KeyDBSSLMode),
		},
	}

	if v.IsSet(KeyChainID) {
		cfg.ChainID = v.GetInt64(KeyChainID)
	}
	if v.IsSet(KeyExplorerTxURL) {
		cfg.ExplorerTxURL = v.GetString(KeyExplorerTxURL)
	}
	if v.IsSet(KeyRPCRPS) {
		cfg.RPCRPS = v.GetFloat64(KeyRPCRPS)
	}

	if raw := strings.TrimSpace(v.GetString(KeyContract)); raw != "" {
		addr, err := wallet.ValidateAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyContract, err)
		}
		cfg.Contract = addr
	}

	if raw := strings.TrimSpace(v.GetString(KeyPriceWei)); raw != "" {
		price, ok := new(big.Int).SetString(raw, 10)
		if !ok || price.Sign() < 0 {
			return nil, fmt.Errorf("%s: invalid wei amount %q", KeyPriceWei, raw)
		}
		cfg.Price = price
	}

	cfg.Wallets, err = LoadWallets(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyRPCURL))
	}
	if c.Contract == (common.Address{}) {
		errs = append(errs, fmt.Errorf("%s is required", KeyContract))
	}
	if c.MintAmount < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyMintAmount, c.MintAmount))
	}
	if c.GasLimit == 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyGasLimit))
	}
	if c.MaxFeeGwei < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyMaxFeeGwei))
	}
	if c.PriorityFeeGwei < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyPriorityFeeGwei))
	}
	if c.UnitDelay < 0 || c.WalletDelay < 0 || c.MonitorDeadline < 0 || c.PollInterval < 0 {
		errs = append(errs, errors.New("durations cannot be negative"))
	}
	if c.RPCRPS < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyRPCRPS))
	}
	if len(c.Wallets) == 0 {
		errs = append(errs, fmt.Errorf("no wallets configured: set %s or PRIVATE_KEY_1..N", KeyPrivateKeys))
	}
	return errors.Join(errs...)
}

// NetworkConfig is the wallet client configuration for this run.
func (c *Config) NetworkConfig() wallet.NetworkConfig {
	netCfg, err := wallet.DefaultNetworkConfig(c.Network)
	if err != nil {
		netCfg = wallet.NetworkConfig{Type: c.Network, MaxRetries: 3}
	}
	netCfg.RPCURL = c.RPCURL
	netCfg.ChainID = c.ChainID
	netCfg.ExplorerTxURL = c.ExplorerTxURL
	netCfg.RequestsPerSecond = c.RPCRPS
	return netCfg
}

// FeeOverrides converts the gwei settings; unset values stay nil.
func (c *Config) FeeOverrides() fees.Overrides {
	var o fees.Overrides
	if c.MaxFeeGwei > 0 {
		o.MaxFeePerGas = fees.GweiFloat(c.MaxFeeGwei)
	}
	if c.PriorityFeeGwei > 0 {
		o.MaxPriorityFeePerGas = fees.GweiFloat(c.PriorityFeeGwei)
	}
	return o
}

// Plan builds the mint plan for this configuration.
func (c *Config) Plan() mint.Plan {
	return mint.Plan{
		Contract:   c.Contract,
		Wallets:    c.Wallets,
		MintAmount: c.MintAmount,
		GasLimit:   c.GasLimit,
		Variant:    c.Variant,
		Price:      c.Price,
		Fees:       c.FeeOverrides(),
	}
}

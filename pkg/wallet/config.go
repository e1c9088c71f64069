package wallet

import (
	"fmt"
	"strings"
	"time"
)

// NetworkType names a supported EVM network.
type NetworkType string

const (
	// ETH represents the Ethereum mainnet network
	ETH NetworkType = "ETH"
	// BASE represents the Base network
	BASE NetworkType = "BASE"
	// BSC represents the Binance Smart Chain network
	BSC NetworkType = "BSC"
)

// NetworkConfig holds network-specific configuration parameters for blockchain interactions.
// It defines connection retries, RPC throttling and receipt polling for the one network
// a minting run targets.
type NetworkConfig struct {
	// Type identifies which blockchain network this config is for (e.g. ETH, BSC)
	Type NetworkType

	// RPCURL is the HTTP(S) or WS endpoint for connecting to the network
	RPCURL string

	// ChainID is the unique identifier for the blockchain network.
	// Zero means it is read from the node on first use.
	ChainID int64

	// ExplorerTxURL is prefixed to a transaction hash to build a block explorer link
	ExplorerTxURL string

	// MaxRetries specifies how many times to retry a failed dial
	MaxRetries int

	// RetryDelay is the duration to wait between dial attempts
	RetryDelay time.Duration

	// RequestsPerSecond caps outbound RPC calls. Zero disables the limit.
	RequestsPerSecond float64

	// ReceiptTimeout bounds how long WaitForReceipt polls for a mined receipt
	ReceiptTimeout time.Duration

	// ReceiptPollInterval is how often WaitForReceipt asks for the receipt
	ReceiptPollInterval time.Duration
}

const (
	// defaultReceiptTimeout is how long to wait for a receipt
	defaultReceiptTimeout = 5 * time.Minute

	// defaultPollInterval is how often to check for receipt
	defaultPollInterval = 2 * time.Second
)

// DefaultNetworkConfigs returns pre-configured settings for supported blockchain networks.
//
// The defaults include:
//   - 3 dial retries with 1 second delay
//   - 10 RPC requests per second
//   - the network's canonical block explorer
func DefaultNetworkConfigs() []NetworkConfig {
	return []NetworkConfig{
		{
			Type:                ETH,
			ChainID:             1,
			ExplorerTxURL:       "https://etherscan.io/tx/",
			MaxRetries:          3,
			RetryDelay:          time.Second,
			RequestsPerSecond:   10,
			ReceiptTimeout:      defaultReceiptTimeout,
			ReceiptPollInterval: defaultPollInterval,
		},
		{
			Type:                BASE,
			ChainID:             8453,
			ExplorerTxURL:       "https://basescan.org/tx/",
			MaxRetries:          3,
			RetryDelay:          time.Second,
			RequestsPerSecond:   10,
			ReceiptTimeout:      defaultReceiptTimeout,
			ReceiptPollInterval: defaultPollInterval,
		},
		{
			Type:                BSC,
			ChainID:             56,
			ExplorerTxURL:       "https://bscscan.com/tx/",
			MaxRetries:          3,
			RetryDelay:          time.Second,
			RequestsPerSecond:   10,
			ReceiptTimeout:      defaultReceiptTimeout,
			ReceiptPollInterval: defaultPollInterval,
		},
	}
}

// DefaultNetworkConfig returns the defaults for the named network.
func DefaultNetworkConfig(network NetworkType) (NetworkConfig, error) {
	want := NetworkType(strings.ToUpper(string(network)))
	for _, cfg := range DefaultNetworkConfigs() {
		if cfg.Type == want {
			return cfg, nil
		}
	}
	return NetworkConfig{}, NewWalletError(ErrCodeInvalidNetwork, fmt.Sprintf("unsupported network: %s", network), nil, network)
}

func (c NetworkConfig) withDefaults() NetworkConfig {
	if c.ReceiptTimeout <= 0 {
		c.ReceiptTimeout = defaultReceiptTimeout
	}
	if c.ReceiptPollInterval <= 0 {
		c.ReceiptPollInterval = defaultPollInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

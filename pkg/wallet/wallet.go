package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Backend is the subset of an EVM node client the wallet Client drives.
// *ethclient.Client and the go-ethereum simulated backend both satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client is a rate-limited view of one EVM network. It reads chain state for the
// fee estimator, balance preflight and sale config reader, and submits signed
// EIP-1559 contract calls on behalf of any Wallet.
type Client struct {
	backend      Backend
	closer       func()
	config       NetworkConfig
	limiter      *rate.Limiter
	nonceManager *NonceManager
	log          logrus.FieldLogger

	chainMu sync.Mutex
	chainID *big.Int
}

// Dial connects to config.RPCURL, retrying per config, and wraps the connection.
//
// Example:
//
//	cfg, _ := DefaultNetworkConfig(ETH)
//	cfg.RPCURL = "https://eth-mainnet.example.com"
//	client, err := Dial(ctx, logger, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func Dial(ctx context.Context, log logrus.FieldLogger, config NetworkConfig) (*Client, error) {
	config = config.withDefaults()
	ethClient, err := dialWithRetry(ctx, log, config)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to connect to network", err, config.Type)
	}
	c := NewClient(log, ethClient, config)
	c.closer = ethClient.Close
	return c, nil
}

// NewClient wraps an existing backend.
func NewClient(log logrus.FieldLogger, backend Backend, config NetworkConfig) *Client {
	config = config.withDefaults()
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	c := &Client{
		backend:      backend,
		config:       config,
		limiter:      rate.NewLimiter(limit, 1),
		nonceManager: newNonceManager(),
		log:          log,
	}
	if config.ChainID > 0 {
		c.chainID = big.NewInt(config.ChainID)
	}
	return c
}

// Config returns the network configuration the client was built with.
func (c *Client) Config() NetworkConfig {
	return c.config
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return NewWalletError(ErrCodeTimeout, "rate limiter wait aborted", err, c.config.Type)
	}
	return nil
}

// ChainID returns the configured chain id, reading it from the node once if unset.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()

	if c.chainID != nil {
		return c.chainID, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get chain ID", err, c.config.Type)
	}
	c.chainID = id
	return id, nil
}

// VerifyChainID asks the node for its chain id and compares it with the configured
// one. With no configured id it only records what the node reports.
func (c *Client) VerifyChainID(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	remote, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get chain ID", err, c.config.Type)
	}
	if c.config.ChainID > 0 && remote.Cmp(big.NewInt(c.config.ChainID)) != 0 {
		msg := fmt.Sprintf("node reports chain %s, expected %d", remote, c.config.ChainID)
		return nil, NewWalletError(ErrCodeChainMismatch, msg, nil, c.config.Type)
	}

	c.chainMu.Lock()
	c.chainID = remote
	c.chainMu.Unlock()
	return remote, nil
}

// HeaderByNumber returns a block header; nil number means the latest block.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	header, err := c.backend.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get header", err, c.config.Type)
	}
	return header, nil
}

// SuggestGasPrice returns the node's suggested legacy gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get gas price", err, c.config.Type)
	}
	return price, nil
}

// BalanceAt retrieves the native balance of account; nil blockNumber means latest.
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	balance, err := c.backend.BalanceAt(ctx, account, blockNumber)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get balance", err, c.config.Type)
	}

	c.log.WithFields(logrus.Fields{
		"network": c.config.Type,
		"address": account.Hex(),
		"balance": balance.String(),
	}).Debug("Retrieved balance")

	return balance, nil
}

// CallContract executes a read-only call. Node errors are classified so a revert
// reads as ErrCodeCallReverted.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, call, blockNumber)
	if err != nil {
		return nil, classifyCallError(err, c.config.Type)
	}
	return out, nil
}

// dialWithRetry attempts to connect to the network with retry mechanism.
// It will retry failed connection attempts based on the network configuration.
func dialWithRetry(ctx context.Context, log logrus.FieldLogger, config NetworkConfig) (*ethclient.Client, error) {
	var client *ethclient.Client
	var err error

	for i := 0; i <= config.MaxRetries; i++ {
		client, err = ethclient.DialContext(ctx, config.RPCURL)
		if err == nil {
			return client, nil
		}

		if i < config.MaxRetries {
			log.WithFields(logrus.Fields{
				"network": config.Type,
				"attempt": i + 1,
				"error":   err,
			}).Debug("Retrying network connection")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(config.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", config.MaxRetries, err)
}

// Close releases the underlying connection when the client owns it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
		c.log.WithField("network", c.config.Type).Debug("Closed network connection")
	}
}

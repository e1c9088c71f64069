package wallet

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// TransactionStatus represents the status of a transaction on the blockchain.
type TransactionStatus struct {
	// Hash is the unique transaction identifier
	Hash common.Hash

	// Status indicates transaction success (1) or failure (0)
	Status uint64

	// BlockNumber is the block height where transaction was mined
	BlockNumber *big.Int

	// GasUsed is the actual amount of gas consumed
	GasUsed uint64

	// EffectiveGasPrice is the actual gas price paid
	EffectiveGasPrice *big.Int

	// Timestamp when the status was last updated
	Timestamp time.Time
}

// Succeeded reports whether the mined receipt carries status 1.
func (ts *TransactionStatus) Succeeded() bool {
	return ts.Status == types.ReceiptStatusSuccessful
}

// CallRequest describes one signed EIP-1559 contract call.
type CallRequest struct {
	From      *Wallet
	To        common.Address
	Data      []byte
	Value     *big.Int
	GasLimit  uint64
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

func (r CallRequest) callMsg() ethereum.CallMsg {
	return ethereum.CallMsg{
		From:      r.From.Address(),
		To:        &r.To,
		Gas:       r.GasLimit,
		GasFeeCap: r.GasFeeCap,
		GasTipCap: r.GasTipCap,
		Value:     r.Value,
		Data:      r.Data,
	}
}

// SubmitCall simulates the call against the latest state, then signs and broadcasts
// it. A simulated revert is returned as ErrCodeCallReverted without broadcasting, so
// a doomed call never spends gas.
//
// Example:
//
//	hash, err := client.SubmitCall(ctx, CallRequest{From: w, To: contract, Data: data, Value: price,
//	    GasLimit: 200000, GasFeeCap: maxFee, GasTipCap: tip})
//	if err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) SubmitCall(ctx context.Context, req CallRequest) (common.Hash, error) {
	if req.From == nil {
		return common.Hash{}, NewWalletError(ErrCodeInvalidPrivateKey, "call has no signing wallet", nil, c.config.Type)
	}
	if req.Value == nil {
		req.Value = new(big.Int)
	}

	if _, err := c.CallContract(ctx, req.callMsg(), nil); err != nil {
		return common.Hash{}, err
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	account := req.From.Address()
	nonce, err := c.nonceManager.GetNonce(ctx, c.backend, account, c.config.Type)
	if err != nil {
		return common.Hash{}, err
	}
	defer c.nonceManager.ReleaseNonce(account, nonce)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: req.GasTipCap,
		GasFeeCap: req.GasFeeCap,
		Gas:       req.GasLimit,
		To:        &req.To,
		Value:     req.Value,
		Data:      req.Data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), req.From.privateKey)
	if err != nil {
		return common.Hash{}, NewWalletError(ErrCodeTransactionFailed, "failed to sign transaction", err, c.config.Type)
	}

	if err := c.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, classifyCallError(err, c.config.Type)
	}

	c.log.WithFields(logrus.Fields{
		"network": c.config.Type,
		"from":    account.Hex(),
		"nonce":   nonce,
		"tx_hash": signedTx.Hash().Hex(),
	}).Debug("Transaction broadcast")

	return signedTx.Hash(), nil
}

// WaitForReceipt waits for a transaction receipt and returns the transaction status.
// It polls the network at regular intervals until the transaction is mined.
//
// Example:
//
//	status, err := client.WaitForReceipt(ctx, txHash)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Transaction mined in block %s\n", status.BlockNumber)
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*TransactionStatus, error) {
	ticker := time.NewTicker(c.config.ReceiptPollInterval)
	defer ticker.Stop()

	timeout := time.After(c.config.ReceiptTimeout)

	for {
		status, err := c.pollReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if status != nil {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, NewWalletError(ErrCodeTimeout, "context cancelled while waiting for receipt", ctx.Err(), c.config.Type)
		case <-timeout:
			return nil, NewWalletError(ErrCodeTimeout, "timeout waiting for receipt", nil, c.config.Type)
		case <-ticker.C:
		}
	}
}

// pollReceipt returns nil, nil while the receipt is missing.
func (c *Client) pollReceipt(ctx context.Context, hash common.Hash) (*TransactionStatus, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			c.log.WithFields(logrus.Fields{
				"tx_hash": hash.Hex(),
				"error":   err,
			}).Debug("Receipt lookup failed, retrying")
		}
		return nil, nil
	}

	return &TransactionStatus{
		Hash:              hash,
		Status:            receipt.Status,
		BlockNumber:       receipt.BlockNumber,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Timestamp:         time.Now(),
	}, nil
}

// Package wallet provides the EVM plumbing the minter calls into: signing wallets,
// a rate-limited chain client, call submission and receipt tracking.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Error codes for various wallet operations
const (
	// ErrCodeInvalidNetwork indicates the specified network is not supported
	ErrCodeInvalidNetwork = "INVALID_NETWORK"
	// ErrCodeInvalidAddress indicates an invalid blockchain address format
	ErrCodeInvalidAddress = "INVALID_ADDRESS"
	// ErrCodeInvalidPrivateKey indicates an invalid or malformed private key
	ErrCodeInvalidPrivateKey = "INVALID_PRIVATE_KEY"
	// ErrCodeTransactionFailed indicates a transaction could not be submitted
	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
	// ErrCodeCallReverted indicates the contract rejected the call
	ErrCodeCallReverted = "CALL_REVERTED"
	// ErrCodeInsufficientFunds indicates insufficient balance for transaction
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	// ErrCodeRPCError indicates an RPC connection or call failed
	ErrCodeRPCError = "RPC_ERROR"
	// ErrCodeTimeout indicates operation timed out
	ErrCodeTimeout = "TIMEOUT"
	// ErrCodeReceiptFailed indicates the transaction was mined with status 0
	ErrCodeReceiptFailed = "RECEIPT_FAILED"
	// ErrCodeChainMismatch indicates chain ID mismatch
	ErrCodeChainMismatch = "CHAIN_MISMATCH"
)

// WalletError represents a wallet-specific error with additional context
// about the error type, message, underlying error and network.
type WalletError struct {
	Code    string      // Error code identifying the type of error
	Message string      // Human readable error message
	Err     error       // Underlying error if any
	Network NetworkType // Network where the error occurred
}

// Error implements the error interface for WalletError.
func (e *WalletError) Error() string {
	if e.Network != "" {
		return fmt.Sprintf("[%s] %s on network %s: %v", e.Code, e.Message, e.Network, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *WalletError) Unwrap() error {
	return e.Err
}

// NewWalletError creates a new WalletError with the given parameters.
func NewWalletError(code string, message string, err error, network NetworkType) *WalletError {
	return &WalletError{
		Code:    code,
		Message: message,
		Err:     err,
		Network: network,
	}
}

// IsWalletError reports whether err, or anything it wraps, is a WalletError with the
// given code.
func IsWalletError(err error, code string) bool {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}

// ErrorCode returns the code of the first WalletError in err's chain, or "".
func ErrorCode(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// classifyCallError maps a node error from eth_call or eth_sendRawTransaction to a
// WalletError code. Revert payloads are decoded into the message when present.
func classifyCallError(err error, network NetworkType) *WalletError {
	if reason, ok := revertReason(err); ok {
		return NewWalletError(ErrCodeCallReverted, reason, err, network)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return NewWalletError(ErrCodeInsufficientFunds, "insufficient funds for gas * price + value", err, network)
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "revert"):
		return NewWalletError(ErrCodeCallReverted, "execution reverted", err, network)
	case strings.Contains(msg, "context deadline exceeded"):
		return NewWalletError(ErrCodeTimeout, "call timed out", err, network)
	default:
		return NewWalletError(ErrCodeRPCError, "call failed", err, network)
	}
}

func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	raw, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	data, decodeErr := hexutil.Decode(raw)
	if decodeErr != nil {
		return "", false
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return "execution reverted", true
	}
	return "execution reverted: " + reason, true
}

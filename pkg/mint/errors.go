package mint

import (
	"context"
	"errors"
	"strings"

	"github.com/lisanmuaddib/nft-minter/pkg/wallet"
)

// FailureClass says why a mint attempt failed and drives fallback and logging.
type FailureClass string

const (
	// CallReverted means the contract rejected the call: sale inactive, supply
	// exhausted, wallet limit reached, or the wrong calling convention.
	CallReverted FailureClass = "call_reverted"
	// InsufficientFunds means the wallet cannot pay value plus gas.
	InsufficientFunds FailureClass = "insufficient_funds"
	// ExecutionFailed means the transaction was mined with status 0.
	ExecutionFailed FailureClass = "execution_failed"
	// Other covers network errors, timeouts and anything unclassified.
	Other FailureClass = "other"
)

// Classify maps a submission error to a FailureClass. WalletError codes take
// precedence; bare node errors are matched on their text.
func Classify(err error) FailureClass {
	if err == nil {
		return ""
	}

	switch wallet.ErrorCode(err) {
	case wallet.ErrCodeCallReverted:
		return CallReverted
	case wallet.ErrCodeInsufficientFunds:
		return InsufficientFunds
	case wallet.ErrCodeReceiptFailed:
		return ExecutionFailed
	case "":
	default:
		return Other
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Other
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return InsufficientFunds
	case strings.Contains(msg, "revert"), strings.Contains(msg, "call exception"):
		return CallReverted
	default:
		return Other
	}
}

package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type pendingNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out nonces per sending address. It tracks nonces that were
// issued but not yet released so two submissions from the same wallet never share
// one, even if the node's pending count lags.
type NonceManager struct {
	pendingNonces map[common.Address]map[uint64]time.Time
	mu            sync.Mutex
}

func newNonceManager() *NonceManager {
	return &NonceManager{
		pendingNonces: make(map[common.Address]map[uint64]time.Time),
	}
}

// GetNonce returns the next free nonce for account, starting from the node's
// pending nonce and skipping any still held by this manager.
func (nm *NonceManager) GetNonce(ctx context.Context, reader pendingNonceReader, account common.Address, network NetworkType) (uint64, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nonce, err := reader.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, NewWalletError(ErrCodeRPCError, "failed to get nonce", err, network)
	}

	if nm.pendingNonces[account] == nil {
		nm.pendingNonces[account] = make(map[uint64]time.Time)
	}

	for {
		if _, isPending := nm.pendingNonces[account][nonce]; !isPending {
			nm.pendingNonces[account][nonce] = time.Now()
			return nonce, nil
		}
		nonce++
	}
}

// ReleaseNonce forgets a nonce once its transaction was accepted or abandoned.
func (nm *NonceManager) ReleaseNonce(account common.Address, nonce uint64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if nm.pendingNonces[account] != nil {
		delete(nm.pendingNonces[account], nonce)
	}
}

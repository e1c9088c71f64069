package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is one signing identity taking part in a run. It is built once from a
// private key and never mutated afterwards.
type Wallet struct {
	id         int
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewWallet creates a wallet from a hex-encoded private key (with or without 0x prefix).
// The id is the wallet's position in the run, used only for reporting.
//
// Example:
//
//	w, err := NewWallet(1, "0x1234...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	address := w.Address()
func NewWallet(id int, privateKeyHex string) (*Wallet, error) {
	privateKeyHex = strings.TrimSpace(privateKeyHex)
	if privateKeyHex == "" {
		return nil, NewWalletError(ErrCodeInvalidPrivateKey, "private key cannot be empty", nil, "")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, NewWalletError(ErrCodeInvalidPrivateKey, fmt.Sprintf("invalid private key for wallet %d", id), err, "")
	}

	publicKey := privateKey.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &Wallet{
		id:         id,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// ID returns the wallet's position in the run.
func (w *Wallet) ID() int {
	return w.id
}

// Address returns the Ethereum address derived from the wallet's key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// String renders the wallet for logs without exposing key material.
func (w *Wallet) String() string {
	return fmt.Sprintf("#%d %s", w.id, w.address.Hex())
}

package chain

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the deployer account used to sign every transaction.
type Signer struct {
	opts *bind.TransactOpts
}

// NewSignerFromHex creates a signer from a hex encoded secp256k1 key.
func NewSignerFromHex(hexKey string, chainID *big.Int) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrMissingKey
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, ErrChainIDUnknown
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	return &Signer{opts: opts}, nil
}

// NewSignerFromKeystore creates a signer from an encrypted Web3 keystore file.
func NewSignerFromKeystore(keyJSON io.Reader, passphrase string, chainID *big.Int) (*Signer, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, ErrChainIDUnknown
	}

	opts, err := bind.NewTransactorWithChainID(keyJSON, passphrase, chainID)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return &Signer{opts: opts}, nil
}

// Address returns the deployer address.
func (s *Signer) Address() common.Address {
	return s.opts.From
}

// transactOpts returns a fresh copy bound to ctx so per-call tweaks never
// leak into the next transaction.
func (s *Signer) transactOpts(ctx context.Context) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:    s.opts.From,
		Signer:  s.opts.Signer,
		Context: ctx,
	}
}

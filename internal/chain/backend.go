// Package chain submits contract deployments and configuration transactions
// to an EVM network and waits for them to be mined.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrTxReverted     = errors.New("chain: transaction reverted")
	ErrMissingKey     = errors.New("chain: private key or keystore is required")
	ErrChainIDUnknown = errors.New("chain: chain ID is required to sign transactions")
)

// Backend is everything the deployer needs from a node connection.
// *ethclient.Client and the go-ethereum simulated backend both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Dial connects to an Ethereum RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", rpcURL, err)
	}
	return client, nil
}

var _ Backend = (*ethclient.Client)(nil)

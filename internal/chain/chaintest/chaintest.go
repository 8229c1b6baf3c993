// Package chaintest provides an in-process simulated chain and stand-in
// contract artifacts for tests.
package chaintest

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
	"github.com/yfiag/yfiag-deploy/internal/chain"
)

// Hand-assembled creation code. Each copies a runtime of N bytes located at
// offset 0x0c and returns it.
const (
	// runtime: STOP. Accepts any call.
	StopBytecode = "0x6001600c60003960016000f300"
	// runtime: PUSH1 0 PUSH1 0 REVERT. Rejects any call.
	RevertBytecode = "0x6005600c60003960056000f360006000fd"
	// creation code that reverts in the constructor.
	RevertingConstructorBytecode = "0x60006000fd"
)

const MarketplaceABI = `[
	{"inputs":[{"name":"_fee","type":"uint256"}],"name":"setPlatformFee","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"_launchPad","type":"address"}],"name":"setLaunchPad","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"newOwner","type":"address"}],"name":"transferOwnership","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"_admin","type":"address"},{"name":"_isAdmin","type":"bool"}],"name":"setAdmin","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const LaunchPadABI = `[
	{"inputs":[{"name":"_marketplace","type":"address"}],"name":"setAddressMarketplace","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"newOwner","type":"address"}],"name":"transferOwnership","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const MulticallABI = `[
	{"inputs":[{"components":[{"name":"target","type":"address"},{"name":"callData","type":"bytes"}],"name":"calls","type":"tuple[]"}],"name":"aggregate","outputs":[{"name":"blockNumber","type":"uint256"},{"name":"returnData","type":"bytes[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// Artifact builds an artifact from an ABI and creation code.
func Artifact(name, abiJSON, bytecode string) *artifacts.ContractArtifact {
	return &artifacts.ContractArtifact{
		ContractName: name,
		ABI:          []byte(abiJSON),
		Bytecode:     artifacts.Bytecode{Object: bytecode},
	}
}

// Artifacts returns the three YFIAG artifacts backed by StopBytecode, so
// every configuration call succeeds.
func Artifacts() *artifacts.Set {
	return &artifacts.Set{
		Marketplace: Artifact(artifacts.MarketplaceContract, MarketplaceABI, StopBytecode),
		LaunchPad:   Artifact(artifacts.LaunchPadContract, LaunchPadABI, StopBytecode),
		Multicall:   Artifact(artifacts.MulticallContract, MulticallABI, StopBytecode),
	}
}

// autoCommit mines a block after every accepted transaction so receipts are
// available as soon as the sender starts waiting.
type autoCommit struct {
	simulated.Client
	backend *simulated.Backend
}

func (a *autoCommit) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := a.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	a.backend.Commit()
	return nil
}

// Env is a funded deployer on a simulated chain.
type Env struct {
	Sim     *simulated.Backend
	Backend chain.Backend
	Key     *ecdsa.PrivateKey
	Signer  *chain.Signer
	ChainID *big.Int
}

// NewEnv starts a simulated chain with a funded deployer account.
func NewEnv(t testing.TB) *Env {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	deployer := crypto.PubkeyToAddress(key.PublicKey)

	funds := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
	sim := simulated.NewBackend(types.GenesisAlloc{
		deployer: {Balance: funds},
	})
	t.Cleanup(func() { _ = sim.Close() })

	backend := &autoCommit{Client: sim.Client(), backend: sim}

	chainID, err := backend.ChainID(context.Background())
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}

	signer, err := chain.NewSignerFromHex(hexKey(key), chainID)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	return &Env{
		Sim:     sim,
		Backend: backend,
		Key:     key,
		Signer:  signer,
		ChainID: chainID,
	}
}

func hexKey(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}

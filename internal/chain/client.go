package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
)

// TxResult describes a mined transaction.
type TxResult struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Deployment is a confirmed contract creation.
type Deployment struct {
	Address common.Address
	TxResult
}

// Client deploys contracts and sends transactions from a single signer.
type Client struct {
	backend  Backend
	signer   *Signer
	logger   *slog.Logger
	gasPrice *big.Int
	gasLimit uint64
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithGasPrice forces a legacy gas price instead of EIP-1559 estimation.
func WithGasPrice(price *big.Int) Option {
	return func(c *Client) {
		c.gasPrice = price
	}
}

// WithGasLimit forces a gas limit instead of estimating one per transaction.
func WithGasLimit(limit uint64) Option {
	return func(c *Client) {
		c.gasLimit = limit
	}
}

// NewClient creates a new client.
func NewClient(backend Backend, signer *Signer, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		signer:  signer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// From returns the address transactions are sent from.
func (c *Client) From() common.Address {
	return c.signer.Address()
}

func (c *Client) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := c.signer.transactOpts(ctx)
	if c.gasPrice != nil {
		opts.GasPrice = new(big.Int).Set(c.gasPrice)
	}
	opts.GasLimit = c.gasLimit
	return opts
}

// Deploy creates the contract described by artifact and waits until it is
// mined and has code.
func (c *Client) Deploy(ctx context.Context, artifact *artifacts.ContractArtifact, args ...interface{}) (*Deployment, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}
	code, err := artifact.BytecodeBytes()
	if err != nil {
		return nil, fmt.Errorf("%s bytecode: %w", artifact.ContractName, err)
	}

	address, tx, _, err := bind.DeployContract(c.transactOpts(ctx), parsed, code, c.backend, args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", artifact.ContractName, err)
	}

	c.logger.Info("deployment submitted, waiting for confirmation",
		slog.String("contract", artifact.ContractName),
		slog.String("address", address.Hex()),
		slog.String("tx_hash", tx.Hash().Hex()),
	)

	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", artifact.ContractName, err)
	}

	deployed, err := c.backend.CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("read %s code: %w", artifact.ContractName, err)
	}
	if len(deployed) == 0 {
		return nil, fmt.Errorf("deploy %s: %w", artifact.ContractName, bind.ErrNoCodeAfterDeploy)
	}

	d := &Deployment{
		Address:  receipt.ContractAddress,
		TxResult: txResult(receipt),
	}

	c.logger.Info("contract deployed",
		slog.String("contract", artifact.ContractName),
		slog.String("address", d.Address.Hex()),
		slog.Uint64("block_number", d.BlockNumber),
		slog.Uint64("gas_used", d.GasUsed),
	)
	return d, nil
}

// Transact calls method on the contract at address and waits for the receipt.
// A reverted receipt is reported as ErrTxReverted.
func (c *Client) Transact(ctx context.Context, address common.Address, parsed abi.ABI, method string, args ...interface{}) (*TxResult, error) {
	bound := bind.NewBoundContract(address, parsed, c.backend, c.backend, c.backend)

	tx, err := bound.Transact(c.transactOpts(ctx), method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	c.logger.Info("transaction submitted, waiting for confirmation",
		slog.String("method", method),
		slog.String("to", address.Hex()),
		slog.String("tx_hash", tx.Hash().Hex()),
	)

	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	res := txResult(receipt)
	c.logger.Info("transaction confirmed",
		slog.String("method", method),
		slog.Uint64("block_number", res.BlockNumber),
	)
	return &res, nil
}

func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

func txResult(receipt *types.Receipt) TxResult {
	res := TxResult{
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return res
}

// Package deploy drives the YFIAG deployment: three contract creations
// followed by the configuration transactions that wire them together.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
	"github.com/yfiag/yfiag-deploy/internal/chain"
)

// DefaultTargetAddress receives ownership and the admin role unless
// configured otherwise.
const DefaultTargetAddress = "0xeFfe75B1574Bdd2FE0Bc955b57e4f82A2BAD6bF9"

// DefaultPlatformFee is the marketplace platform fee set after deployment.
const DefaultPlatformFee = 100

var (
	ErrNilChain     = errors.New("deploy: chain is required")
	ErrNilArtifacts = errors.New("deploy: artifacts are required")
	ErrZeroAddress  = errors.New("deploy: zero address")
)

// Chain deploys artifacts and sends transactions, waiting for each to be
// confirmed. *chain.Client implements it.
type Chain interface {
	From() common.Address
	Deploy(ctx context.Context, artifact *artifacts.ContractArtifact, args ...interface{}) (*chain.Deployment, error)
	Transact(ctx context.Context, address common.Address, parsed abi.ABI, method string, args ...interface{}) (*chain.TxResult, error)
}

var _ Chain = (*chain.Client)(nil)

// Config holds the values the configuration transactions are sent with.
type Config struct {
	ChainID     uint64
	Owner       common.Address
	Admin       common.Address
	PlatformFee *big.Int
}

// DefaultConfig reproduces the stock deployment.
func DefaultConfig() Config {
	target := common.HexToAddress(DefaultTargetAddress)
	return Config{
		Owner:       target,
		Admin:       target,
		PlatformFee: big.NewInt(DefaultPlatformFee),
	}
}

func (c *Config) validate() error {
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("owner: %w", ErrZeroAddress)
	}
	if c.Admin == (common.Address{}) {
		return fmt.Errorf("admin: %w", ErrZeroAddress)
	}
	if c.PlatformFee == nil || c.PlatformFee.Sign() < 0 {
		return fmt.Errorf("platform fee must be a non-negative integer")
	}
	return nil
}

// StepKind distinguishes contract creations from calls.
type StepKind string

const (
	KindDeploy   StepKind = "deploy"
	KindTransact StepKind = "transact"
)

// StepStatus is the outcome of a step.
type StepStatus string

const (
	StatusConfirmed StepStatus = "confirmed"
	StatusFailed    StepStatus = "failed"
)

// StepResult records one executed step.
type StepResult struct {
	Name        string
	Kind        StepKind
	Contract    string
	Method      string
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Status      StepStatus
	Error       string
}

// ContractDeployment is a confirmed deployment of one contract.
type ContractDeployment struct {
	Contract    string
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
}

// Result is the outcome of a run. On failure it holds everything that was
// confirmed before the failing step.
type Result struct {
	RunID      uuid.UUID
	ChainID    uint64
	Deployer   common.Address
	Config     Config
	StartedAt  time.Time
	FinishedAt time.Time

	Marketplace *ContractDeployment
	LaunchPad   *ContractDeployment
	Multicall   *ContractDeployment

	Steps    []StepResult
	Complete bool
	Error    string
}

// Deployments returns the confirmed deployments in deployment order.
func (r *Result) Deployments() []*ContractDeployment {
	var out []*ContractDeployment
	for _, d := range []*ContractDeployment{r.Marketplace, r.LaunchPad, r.Multicall} {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// StepError reports the step that stopped a run.
type StepError struct {
	Step  string
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ProgressCallback is called after each confirmed step.
type ProgressCallback func(step StepResult, index, total int)

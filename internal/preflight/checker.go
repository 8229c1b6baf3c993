// Package preflight provides pre-deployment validation checks.
package preflight

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultTimeout is the default timeout for RPC calls.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckRPCReachable verifies the RPC endpoint answers.
	CheckRPCReachable CheckName = "rpc_reachable"
	// CheckChainIDMatch verifies the chain ID matches the expected value.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckDeployerBalance verifies the deployer has sufficient funds.
	CheckDeployerBalance CheckName = "deployer_balance"
)

// Node is the subset of the RPC client the checks need.
type Node interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName              `json:"name"`
	Passed  bool                   `json:"passed"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Request contains the parameters for pre-flight checks.
type Request struct {
	// ExpectedChainID is skipped when zero.
	ExpectedChainID uint64
	Deployer        common.Address
	// MinBalanceWei overrides the per-network funding requirement.
	MinBalanceWei *big.Int
}

// Response contains the results of all pre-flight checks.
type Response struct {
	OK                 bool          `json:"ok"`
	ChainID            uint64        `json:"chain_id"`
	Network            string        `json:"network"`
	Checks             []CheckResult `json:"checks"`
	DeployerAddress    string        `json:"deployer_address"`
	RequiredFundingETH string        `json:"required_funding_eth"`
	CurrentBalanceETH  string        `json:"current_balance_eth,omitempty"`
}

// Checker performs pre-flight validation checks.
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a new pre-flight checker.
func NewChecker() *Checker {
	return &Checker{
		timeout: DefaultTimeout,
	}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// RunChecks performs all pre-flight checks and returns the results.
func (c *Checker) RunChecks(ctx context.Context, node Node, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response := &Response{
		OK:              true,
		Checks:          make([]CheckResult, 0, 3),
		DeployerAddress: req.Deployer.Hex(),
	}

	// Check 1: RPC reachable
	chainID, reachableResult := c.checkReachable(rpcCtx, node)
	response.Checks = append(response.Checks, reachableResult)
	if !reachableResult.Passed {
		response.OK = false
		return response, nil // Can't continue without connection
	}
	response.ChainID = chainID
	response.Network = GetNetworkName(chainID)

	// Check 2: Chain ID match
	if req.ExpectedChainID != 0 {
		chainIDResult := c.checkChainIDMatch(chainID, req.ExpectedChainID)
		response.Checks = append(response.Checks, chainIDResult)
		if !chainIDResult.Passed {
			response.OK = false
		}
	}

	// Check 3: Deployer balance
	requiredWei := req.MinBalanceWei
	if requiredWei == nil {
		requiredWei = c.getRequiredFunding(chainID)
	}
	response.RequiredFundingETH = weiToETHString(requiredWei)

	balanceResult := c.checkDeployerBalance(rpcCtx, node, req.Deployer, requiredWei)
	response.Checks = append(response.Checks, balanceResult)
	if !balanceResult.Passed {
		response.OK = false
	}

	if details := balanceResult.Details; details != nil {
		if haveETH, ok := details["have_eth"].(string); ok {
			response.CurrentBalanceETH = haveETH
		}
	}

	return response, nil
}

// Failed returns the checks that did not pass.
func (r *Response) Failed() []CheckResult {
	var failed []CheckResult
	for _, check := range r.Checks {
		if !check.Passed {
			failed = append(failed, check)
		}
	}
	return failed
}

func (c *Checker) validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("request is required")
	}
	if req.Deployer == (common.Address{}) {
		return fmt.Errorf("deployer address is required")
	}
	if req.MinBalanceWei != nil && req.MinBalanceWei.Sign() < 0 {
		return fmt.Errorf("minimum balance must not be negative")
	}
	return nil
}

func (c *Checker) checkReachable(ctx context.Context, node Node) (uint64, CheckResult) {
	result := CheckResult{
		Name: CheckRPCReachable,
	}

	chainID, err := node.ChainID(ctx)
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("RPC connection failed: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return 0, result
	}

	result.Passed = true
	result.Message = "Connected to RPC successfully"
	return chainID.Uint64(), result
}

func (c *Checker) checkChainIDMatch(actual, expected uint64) CheckResult {
	result := CheckResult{
		Name: CheckChainIDMatch,
	}

	if actual != expected {
		result.Passed = false
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %d, got %d", expected, actual)
		result.Details = map[string]interface{}{
			"expected": expected,
			"actual":   actual,
		}
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %d confirmed", expected)
	result.Details = map[string]interface{}{
		"chain_id": expected,
	}
	return result
}

func (c *Checker) checkDeployerBalance(ctx context.Context, node Node, deployer common.Address, requiredWei *big.Int) CheckResult {
	result := CheckResult{
		Name: CheckDeployerBalance,
	}

	balance, err := node.BalanceAt(ctx, deployer, nil)
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("Failed to get deployer balance: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return result
	}

	haveETH := weiToETHString(balance)
	needETH := weiToETHString(requiredWei)

	result.Details = map[string]interface{}{
		"have_wei": balance.String(),
		"need_wei": requiredWei.String(),
		"have_eth": haveETH,
		"need_eth": needETH,
	}

	// a zero balance can never pay for the deployment, whatever the minimum
	if balance.Sign() == 0 || balance.Cmp(requiredWei) < 0 {
		result.Passed = false
		result.Message = fmt.Sprintf("Insufficient deployer balance: have %s, need %s", haveETH, needETH)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Deployer has sufficient balance: %s", haveETH)
	return result
}

// getRequiredFunding returns the required funding in wei based on the network.
func (c *Checker) getRequiredFunding(chainID uint64) *big.Int {
	switch chainID {
	case 1: // Ethereum Mainnet
		// 0.5 ETH
		return new(big.Int).Div(big.NewInt(1e18), big.NewInt(2))
	case 56, 137: // BNB Smart Chain, Polygon
		// 0.1 native
		return big.NewInt(1e17)
	default:
		// Testnets: 0.01 native
		return big.NewInt(1e16)
	}
}

// weiToETHString converts wei to a human-readable string in whole units.
func weiToETHString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	weiFloat := new(big.Float).SetInt(wei)
	ethFloat := new(big.Float).Quo(weiFloat, big.NewFloat(1e18))

	// Format with up to 4 decimal places
	return ethFloat.Text('f', 4)
}

// GetNetworkName returns a human-readable name for a chain ID.
func GetNetworkName(chainID uint64) string {
	switch chainID {
	case 1:
		return "Ethereum Mainnet"
	case 56:
		return "BNB Smart Chain"
	case 97:
		return "BNB Smart Chain Testnet"
	case 137:
		return "Polygon"
	case 80002:
		return "Polygon Amoy"
	case 11155111:
		return "Sepolia"
	case 17000:
		return "Holesky"
	case 1337, 31337:
		return "Local Devnet"
	default:
		return fmt.Sprintf("Chain %d", chainID)
	}
}

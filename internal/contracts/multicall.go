package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall.aggregate((address,bytes)[]) -> (uint256, bytes[])
const multicallABIJSON = `[{
	"inputs": [{
		"components": [
			{"name": "target", "type": "address"},
			{"name": "callData", "type": "bytes"}
		],
		"name": "calls",
		"type": "tuple[]"
	}],
	"name": "aggregate",
	"outputs": [
		{"name": "blockNumber", "type": "uint256"},
		{"name": "returnData", "type": "bytes[]"}
	],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// Ownable.owner() -> address
const ownableABIJSON = `[{
	"inputs": [],
	"name": "owner",
	"outputs": [{"name": "", "type": "address"}],
	"stateMutability": "view",
	"type": "function"
}]`

var (
	multicallABI = mustParseABI(multicallABIJSON)
	ownableABI   = mustParseABI(ownableABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse embedded ABI: %v", err))
	}
	return parsed
}

// Call is one entry of a Multicall aggregate batch.
type Call struct {
	Target   common.Address
	CallData []byte
}

// Inspector reads contract state in a single eth_call through a deployed
// Multicall contract.
type Inspector struct {
	caller    bind.ContractCaller
	multicall common.Address
}

// NewInspector creates a new inspector.
func NewInspector(caller bind.ContractCaller, multicall common.Address) *Inspector {
	return &Inspector{
		caller:    caller,
		multicall: multicall,
	}
}

// Aggregate executes calls as one eth_call and returns the block number the
// batch was evaluated at along with each call's raw return data.
func (i *Inspector) Aggregate(ctx context.Context, calls []Call) (*big.Int, [][]byte, error) {
	data, err := multicallABI.Pack(MethodAggregate, calls)
	if err != nil {
		return nil, nil, fmt.Errorf("pack aggregate: %w", err)
	}

	out, err := i.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &i.multicall,
		Data: data,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("call aggregate: %w", err)
	}

	values, err := multicallABI.Unpack(MethodAggregate, out)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack aggregate: %w", err)
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("unpack aggregate: got %d values", len(values))
	}

	blockNumber, ok := values[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("unpack aggregate: unexpected block number type %T", values[0])
	}
	returnData, ok := values[1].([][]byte)
	if !ok {
		return nil, nil, fmt.Errorf("unpack aggregate: unexpected return data type %T", values[1])
	}
	if len(returnData) != len(calls) {
		return nil, nil, fmt.Errorf("aggregate returned %d results for %d calls", len(returnData), len(calls))
	}
	return blockNumber, returnData, nil
}

// Owners returns owner() of every target, read at the same block.
func (i *Inspector) Owners(ctx context.Context, targets ...common.Address) (map[common.Address]common.Address, error) {
	ownerCall, err := ownableABI.Pack(MethodOwner)
	if err != nil {
		return nil, fmt.Errorf("pack owner: %w", err)
	}

	calls := make([]Call, len(targets))
	for idx, target := range targets {
		calls[idx] = Call{Target: target, CallData: ownerCall}
	}

	_, results, err := i.Aggregate(ctx, calls)
	if err != nil {
		return nil, err
	}

	owners := make(map[common.Address]common.Address, len(targets))
	for idx, raw := range results {
		values, err := ownableABI.Unpack(MethodOwner, raw)
		if err != nil {
			return nil, fmt.Errorf("unpack owner of %s: %w", targets[idx].Hex(), err)
		}
		owner, ok := values[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("unpack owner of %s: unexpected type %T", targets[idx].Hex(), values[0])
		}
		owners[targets[idx]] = owner
	}
	return owners, nil
}

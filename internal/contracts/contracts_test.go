package contracts

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feeABI = `[
	{"inputs":[{"name":"fee","type":"uint16"}],"name":"setPlatformFee","outputs":[],"type":"function"},
	{"inputs":[{"name":"fee","type":"uint256"}],"name":"setBigFee","outputs":[],"type":"function"},
	{"inputs":[{"name":"who","type":"address"}],"name":"transferOwnership","outputs":[],"type":"function"}
]`

func parse(t *testing.T, s string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(s))
	require.NoError(t, err)
	return parsed
}

func TestRequireMethods(t *testing.T) {
	parsed := parse(t, feeABI)

	assert.NoError(t, RequireMethods(parsed, "Market", MethodSetPlatformFee, MethodTransferOwnership))

	err := RequireMethods(parsed, "Market", MarketplaceMethods...)
	require.ErrorIs(t, err, ErrMissingMethod)
	assert.Contains(t, err.Error(), "Market lacks setLaunchPad, setAdmin")
}

func TestUintArg(t *testing.T) {
	parsed := parse(t, feeABI)

	tests := []struct {
		name    string
		method  string
		idx     int
		value   *big.Int
		want    interface{}
		wantErr string
	}{
		{name: "uint16", method: "setPlatformFee", value: big.NewInt(100), want: uint16(100)},
		{name: "uint256", method: "setBigFee", value: big.NewInt(100), want: big.NewInt(100)},
		{name: "overflow", method: "setPlatformFee", value: big.NewInt(70000), wantErr: "does not fit"},
		{name: "negative", method: "setBigFee", value: big.NewInt(-1), wantErr: "does not fit"},
		{name: "wrong type", method: "transferOwnership", value: big.NewInt(1), wantErr: "not an unsigned integer"},
		{name: "bad index", method: "setBigFee", idx: 3, value: big.NewInt(1), wantErr: "has 1 inputs"},
		{name: "unknown", method: "nope", value: big.NewInt(1), wantErr: "method not in ABI"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UintArg(parsed, tc.method, tc.idx, tc.value)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			_, err = parsed.Pack(tc.method, got)
			assert.NoError(t, err)
		})
	}
}

// fakeCaller answers aggregate calls with owners from a map.
type fakeCaller struct {
	owners map[common.Address]common.Address
	block  int64
	err    error
	to     common.Address
}

func (f *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x00}, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.to = *call.To

	method, err := multicallABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	var calls []Call
	if err := method.Inputs.Copy(&calls, args); err != nil {
		return nil, err
	}

	results := make([][]byte, len(calls))
	for i, c := range calls {
		out, err := ownableABI.Methods[MethodOwner].Outputs.Pack(f.owners[c.Target])
		if err != nil {
			return nil, err
		}
		results[i] = out
	}
	return method.Outputs.Pack(big.NewInt(f.block), results)
}

func TestInspector_Owners(t *testing.T) {
	market := common.HexToAddress("0x1000000000000000000000000000000000000001")
	pad := common.HexToAddress("0x2000000000000000000000000000000000000002")
	owner := common.HexToAddress("0xeFfe75B1574Bdd2FE0Bc955b57e4f82A2BAD6bF9")
	multicall := common.HexToAddress("0x3000000000000000000000000000000000000003")

	caller := &fakeCaller{
		owners: map[common.Address]common.Address{market: owner, pad: owner},
		block:  42,
	}

	owners, err := NewInspector(caller, multicall).Owners(context.Background(), market, pad)
	require.NoError(t, err)
	assert.Equal(t, multicall, caller.to)
	assert.Equal(t, owner, owners[market])
	assert.Equal(t, owner, owners[pad])
}

func TestInspector_Aggregate(t *testing.T) {
	caller := &fakeCaller{block: 7}
	target := common.HexToAddress("0x1000000000000000000000000000000000000001")

	block, results, err := NewInspector(caller, common.Address{}).Aggregate(context.Background(), []Call{{Target: target}})
	require.NoError(t, err)
	assert.Equal(t, int64(7), block.Int64())
	assert.Len(t, results, 1)
}

func TestInspector_CallError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("rpc down")}

	_, err := NewInspector(caller, common.Address{}).Owners(context.Background(), common.Address{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call aggregate: rpc down")
}

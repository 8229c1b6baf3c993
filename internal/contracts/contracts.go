// Package contracts describes the callable surface of the YFIAG contracts the
// deployer configures, and reads their state back through Multicall.
package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Configuration methods called after deployment.
const (
	MethodSetPlatformFee        = "setPlatformFee"
	MethodSetLaunchPad          = "setLaunchPad"
	MethodSetAdmin              = "setAdmin"
	MethodSetAddressMarketplace = "setAddressMarketplace"
	MethodTransferOwnership     = "transferOwnership"
	MethodOwner                 = "owner"
	MethodAggregate             = "aggregate"
)

// MarketplaceMethods are required on the marketplace ABI.
var MarketplaceMethods = []string{
	MethodSetPlatformFee,
	MethodSetLaunchPad,
	MethodTransferOwnership,
	MethodSetAdmin,
}

// LaunchPadMethods are required on the launchpad ABI.
var LaunchPadMethods = []string{
	MethodSetAddressMarketplace,
	MethodTransferOwnership,
}

var ErrMissingMethod = errors.New("contracts: method not in ABI")

// RequireMethods fails if any of methods is absent from parsed.
func RequireMethods(parsed abi.ABI, contract string, methods ...string) error {
	var missing []string
	for _, m := range methods {
		if _, ok := parsed.Methods[m]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s lacks %s", ErrMissingMethod, contract, strings.Join(missing, ", "))
	}
	return nil
}

// UintArg converts v to the Go type the ABI encoder expects for the idx-th
// input of method, so a fee can be passed whatever uint width the contract
// declares.
func UintArg(parsed abi.ABI, method string, idx int, v *big.Int) (interface{}, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingMethod, method)
	}
	if idx >= len(m.Inputs) {
		return nil, fmt.Errorf("%s has %d inputs, want index %d", method, len(m.Inputs), idx)
	}
	typ := m.Inputs[idx].Type
	if typ.T != abi.UintTy {
		return nil, fmt.Errorf("%s input %d is %s, not an unsigned integer", method, idx, typ.String())
	}
	if v.Sign() < 0 || v.BitLen() > typ.Size {
		return nil, fmt.Errorf("%s does not fit in %s", v, typ.String())
	}

	switch typ.Size {
	case 8:
		return uint8(v.Uint64()), nil
	case 16:
		return uint16(v.Uint64()), nil
	case 32:
		return uint32(v.Uint64()), nil
	case 64:
		return v.Uint64(), nil
	default:
		return new(big.Int).Set(v), nil
	}
}

package deploy

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
	"github.com/yfiag/yfiag-deploy/internal/contracts"
)

type step struct {
	name string
	kind StepKind
	run  func(ctx context.Context, res *Result) (StepResult, error)
}

func (o *Orchestrator) steps() []step {
	fee, _ := contracts.UintArg(o.marketplaceABI, contracts.MethodSetPlatformFee, 0, o.config.PlatformFee)

	marketplace := func(r *Result) *ContractDeployment { return r.Marketplace }
	launchPad := func(r *Result) *ContractDeployment { return r.LaunchPad }

	return []step{
		o.deployStep("deploy-marketplace", o.artifacts.Marketplace, func(r *Result, d *ContractDeployment) { r.Marketplace = d }),
		o.deployStep("deploy-launchpad", o.artifacts.LaunchPad, func(r *Result, d *ContractDeployment) { r.LaunchPad = d }),
		o.deployStep("deploy-multicall", o.artifacts.Multicall, func(r *Result, d *ContractDeployment) { r.Multicall = d }),

		o.transactStep("launchpad-set-marketplace", launchPad, o.launchPadABI, contracts.MethodSetAddressMarketplace,
			func(r *Result) ([]interface{}, error) {
				if r.Marketplace == nil {
					return nil, notDeployed(artifacts.MarketplaceContract)
				}
				return []interface{}{r.Marketplace.Address}, nil
			}),
		o.transactStep("launchpad-transfer-ownership", launchPad, o.launchPadABI, contracts.MethodTransferOwnership,
			func(*Result) ([]interface{}, error) {
				return []interface{}{o.config.Owner}, nil
			}),
		o.transactStep("marketplace-set-platform-fee", marketplace, o.marketplaceABI, contracts.MethodSetPlatformFee,
			func(*Result) ([]interface{}, error) {
				return []interface{}{fee}, nil
			}),
		o.transactStep("marketplace-set-launchpad", marketplace, o.marketplaceABI, contracts.MethodSetLaunchPad,
			func(r *Result) ([]interface{}, error) {
				if r.LaunchPad == nil {
					return nil, notDeployed(artifacts.LaunchPadContract)
				}
				return []interface{}{r.LaunchPad.Address}, nil
			}),
		o.transactStep("marketplace-transfer-ownership", marketplace, o.marketplaceABI, contracts.MethodTransferOwnership,
			func(*Result) ([]interface{}, error) {
				return []interface{}{o.config.Owner}, nil
			}),
		o.transactStep("marketplace-set-admin", marketplace, o.marketplaceABI, contracts.MethodSetAdmin,
			func(*Result) ([]interface{}, error) {
				return []interface{}{o.config.Admin, true}, nil
			}),
	}
}

func notDeployed(contract string) error {
	return fmt.Errorf("%s is not deployed", contract)
}

func (o *Orchestrator) deployStep(name string, artifact *artifacts.ContractArtifact, store func(*Result, *ContractDeployment)) step {
	return step{
		name: name,
		kind: KindDeploy,
		run: func(ctx context.Context, res *Result) (StepResult, error) {
			sr := StepResult{Contract: artifact.ContractName}

			d, err := o.chain.Deploy(ctx, artifact)
			if err != nil {
				return sr, err
			}

			store(res, &ContractDeployment{
				Contract:    artifact.ContractName,
				Address:     d.Address,
				TxHash:      d.TxHash,
				BlockNumber: d.BlockNumber,
			})

			sr.Address = d.Address
			sr.TxHash = d.TxHash
			sr.BlockNumber = d.BlockNumber
			sr.GasUsed = d.GasUsed
			return sr, nil
		},
	}
}

func (o *Orchestrator) transactStep(
	name string,
	target func(*Result) *ContractDeployment,
	parsed abi.ABI,
	method string,
	args func(*Result) ([]interface{}, error),
) step {
	return step{
		name: name,
		kind: KindTransact,
		run: func(ctx context.Context, res *Result) (StepResult, error) {
			sr := StepResult{Method: method}

			t := target(res)
			if t == nil {
				return sr, fmt.Errorf("call %s: target contract is not deployed", method)
			}
			sr.Contract = t.Contract
			sr.Address = t.Address

			callArgs, err := args(res)
			if err != nil {
				return sr, err
			}

			tx, err := o.chain.Transact(ctx, t.Address, parsed, method, callArgs...)
			if err != nil {
				return sr, err
			}

			sr.TxHash = tx.TxHash
			sr.BlockNumber = tx.BlockNumber
			sr.GasUsed = tx.GasUsed
			return sr, nil
		},
	}
}

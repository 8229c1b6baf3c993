package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
	"github.com/yfiag/yfiag-deploy/internal/contracts"
	"github.com/yfiag/yfiag-deploy/internal/record"
)

var ErrOwnerMismatch = errors.New("ownership was not transferred")

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <record>",
		Short: "Verify contract ownership recorded by a deploy run",
		Long: `Read owner() of the recorded Marketplace and LaunchPad in a single call
through the recorded Multicall and compare it with the configured owner.`,
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}
}

type ownerCheck struct {
	Contract string `json:"contract"`
	Address  string `json:"address"`
	Owner    string `json:"owner"`
	Expected string `json:"expected"`
	OK       bool   `json:"ok"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	rec, err := record.Read(args[0])
	if err != nil {
		return err
	}

	multicall, err := recordedAddress(rec, artifacts.MulticallContract)
	if err != nil {
		return err
	}
	marketplace, err := recordedAddress(rec, artifacts.MarketplaceContract)
	if err != nil {
		return err
	}
	launchPad, err := recordedAddress(rec, artifacts.LaunchPadContract)
	if err != nil {
		return err
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := s.requireRPC(); err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, err := dialBackend(ctx, s.RPCURL)
	if err != nil {
		return err
	}

	owners, err := contracts.NewInspector(backend, multicall).Owners(ctx, marketplace, launchPad)
	if err != nil {
		return fmt.Errorf("read owners: %w", err)
	}

	expected := common.HexToAddress(rec.Settings.Owner)
	checks := []ownerCheck{
		newOwnerCheck(artifacts.MarketplaceContract, marketplace, owners[marketplace], expected),
		newOwnerCheck(artifacts.LaunchPadContract, launchPad, owners[launchPad], expected),
	}

	mismatch := false
	for _, c := range checks {
		if !c.OK {
			mismatch = true
		}
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, checks); err != nil {
			return err
		}
	} else {
		rows := make([][]string, 0, len(checks))
		for _, c := range checks {
			mark := colorGreen("✓")
			if !c.OK {
				mark = colorRed("✗")
			}
			rows = append(rows, []string{c.Contract, c.Address, c.Owner, mark})
		}
		printTable(out, []string{"Contract", "Address", "Owner", "OK"}, rows)
	}

	if mismatch {
		return fmt.Errorf("%w to %s", ErrOwnerMismatch, expected.Hex())
	}
	return nil
}

func newOwnerCheck(name string, addr, owner, expected common.Address) ownerCheck {
	return ownerCheck{
		Contract: name,
		Address:  addr.Hex(),
		Owner:    owner.Hex(),
		Expected: expected.Hex(),
		OK:       owner == expected,
	}
}

func recordedAddress(rec *record.Record, name string) (common.Address, error) {
	addr, ok := rec.Address(name)
	if !ok || !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("record has no %s deployment", name)
	}
	return common.HexToAddress(addr), nil
}

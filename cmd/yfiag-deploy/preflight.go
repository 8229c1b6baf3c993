package main

import (
	"github.com/spf13/cobra"

	"github.com/yfiag/yfiag-deploy/internal/preflight"
)

func newPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the RPC endpoint, chain ID and deployer balance",
		RunE:  runPreflight,
	}
}

func runPreflight(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := s.requireRPC(); err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, _, signer, err := connect(ctx, s)
	if err != nil {
		return err
	}

	resp, err := preflight.NewChecker().RunChecks(ctx, backend, &preflight.Request{
		ExpectedChainID: s.ChainID,
		Deployer:        signer.Address(),
	})
	if err != nil {
		return err
	}

	if jsonOut {
		if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		printChecks(cmd.OutOrStdout(), resp)
	}

	if !resp.OK {
		return ErrPreflightFailed
	}
	return nil
}

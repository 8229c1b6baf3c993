package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
	"github.com/yfiag/yfiag-deploy/internal/chain"
	"github.com/yfiag/yfiag-deploy/internal/deploy"
	"github.com/yfiag/yfiag-deploy/internal/metrics"
	"github.com/yfiag/yfiag-deploy/internal/preflight"
	"github.com/yfiag/yfiag-deploy/internal/record"
)

var (
	ErrNoArtifactSource = errors.New("artifacts source required. Set --artifacts-dir or --artifacts-url")
	ErrPreflightFailed  = errors.New("pre-flight checks failed")
)

// dialBackend connects to the configured node. Tests replace it with a
// simulated chain.
var dialBackend = func(ctx context.Context, rpcURL string) (chain.Backend, error) {
	return chain.Dial(ctx, rpcURL)
}

var (
	skipPreflight bool
	dryRun        bool
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy and configure the marketplace contracts",
		Long: `Deploy YFIAGNftMarketplace, YFIAGLaunchPad and Multicall, then send the
configuration transactions in order. The run stops at the first failed step;
the record file is written either way and names the failing step.`,
		RunE: runDeploy,
	}

	flags := cmd.Flags()
	flags.String("owner", "", "address that receives ownership of both contracts (default "+deploy.DefaultTargetAddress+")")
	flags.String("admin", "", "address granted the marketplace admin role (default "+deploy.DefaultTargetAddress+")")
	flags.String("platform-fee", defaultPlatformFee, "marketplace platform fee")
	flags.Uint64("gas-price-gwei", 0, "legacy gas price in gwei, 0 for EIP-1559 estimation")
	flags.Uint64("gas-limit", 0, "gas limit per transaction, 0 to estimate")
	flags.StringP("output", "o", defaultOutput, "deployment record file (.json or .yaml)")
	flags.Duration("timeout", 0, "bound on the whole run, 0 for none")
	flags.String("pushgateway-url", "", "Prometheus Pushgateway to report run metrics to")
	flags.BoolVar(&skipPreflight, "skip-preflight", false, "do not run pre-flight checks")
	flags.BoolVar(&dryRun, "dry-run", false, "validate everything and print the plan without sending transactions")

	return cmd
}

func runDeploy(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := s.requireRPC(); err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	set, err := loadArtifacts(ctx, s)
	if err != nil {
		return err
	}
	logger.Info("artifacts loaded", slog.String("source", set.SourceURL))

	backend, chainID, signer, err := connect(ctx, s)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !skipPreflight {
		resp, err := preflight.NewChecker().RunChecks(ctx, backend, &preflight.Request{
			ExpectedChainID: s.ChainID,
			Deployer:        signer.Address(),
		})
		if err != nil {
			return err
		}
		printChecks(out, resp)
		if !resp.OK {
			return ErrPreflightFailed
		}
	}

	var clientOpts []chain.Option
	clientOpts = append(clientOpts, chain.WithLogger(logger))
	if s.GasPrice != nil {
		clientOpts = append(clientOpts, chain.WithGasPrice(s.GasPrice))
	}
	if s.GasLimit > 0 {
		clientOpts = append(clientOpts, chain.WithGasLimit(s.GasLimit))
	}
	client := chain.NewClient(backend, signer, clientOpts...)

	orch, err := deploy.NewOrchestrator(client, set, s.deployConfig(chainID.Uint64()),
		deploy.WithLogger(logger),
		deploy.WithProgress(printProgress(out)),
	)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "%s no transactions sent. Plan:\n", colorYellow("Dry run:"))
		for i, name := range orch.Plan() {
			fmt.Fprintf(out, "  %d. %s\n", i+1, name)
		}
		return nil
	}

	res, runErr := orch.Run(ctx)
	rec := record.FromResult(res)

	if s.Output != "" {
		if err := record.Write(s.Output, rec); err != nil {
			if runErr == nil {
				return err
			}
			logger.Error("failed to write deployment record", slog.String("error", err.Error()))
		} else {
			logger.Info("deployment record written", slog.String("path", s.Output))
		}
	}

	if s.PushgatewayURL != "" {
		run := metrics.NewRun()
		run.Observe(res)
		// a dead gateway must not hide the deployment outcome
		if err := run.Push(context.WithoutCancel(ctx), s.PushgatewayURL, res.ChainID); err != nil {
			logger.Warn("failed to push metrics", slog.String("error", err.Error()))
		}
	}

	if jsonOut {
		if err := printJSON(out, rec); err != nil {
			return err
		}
	} else {
		printDeployments(out, rec)
	}

	if runErr != nil {
		return fmt.Errorf("deployment failed: %w", runErr)
	}
	fmt.Fprintf(out, "%s YFIAG deployment complete\n", colorGreen("✓"))
	return nil
}

// loadArtifacts reads the contract artifacts from a directory or a bundle URL.
func loadArtifacts(ctx context.Context, s *settings) (*artifacts.Set, error) {
	switch {
	case s.ArtifactsDir != "":
		return artifacts.LoadFromDirectory(s.ArtifactsDir)
	case s.ArtifactsURL != "":
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = os.TempDir()
		}
		d := artifacts.NewDownloader(filepath.Join(cacheDir, "yfiag-deploy", "artifacts"))
		return d.Download(ctx, s.ArtifactsURL, s.ArtifactsChecksum)
	default:
		return nil, ErrNoArtifactSource
	}
}

// connect dials the node and builds the deployer signer. The signer is bound
// to the configured chain ID, or to the node's when none is configured.
func connect(ctx context.Context, s *settings) (chain.Backend, *big.Int, *chain.Signer, error) {
	backend, err := dialBackend(ctx, s.RPCURL)
	if err != nil {
		return nil, nil, nil, err
	}

	chainID := new(big.Int).SetUint64(s.ChainID)
	if s.ChainID == 0 {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("get chain ID: %w", err)
		}
	}

	signer, err := newSigner(s, chainID)
	if err != nil {
		return nil, nil, nil, err
	}
	return backend, chainID, signer, nil
}

func newSigner(s *settings, chainID *big.Int) (*chain.Signer, error) {
	if s.PrivateKey != "" {
		return chain.NewSignerFromHex(s.PrivateKey, chainID)
	}
	if s.Keystore != "" {
		f, err := os.Open(s.Keystore)
		if err != nil {
			return nil, fmt.Errorf("open keystore: %w", err)
		}
		defer f.Close()
		return chain.NewSignerFromKeystore(f, s.KeystorePassword, chainID)
	}
	return nil, chain.ErrMissingKey
}

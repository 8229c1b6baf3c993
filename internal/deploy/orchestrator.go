package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/google/uuid"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
	"github.com/yfiag/yfiag-deploy/internal/contracts"
)

// Orchestrator runs the deployment plan against a Chain.
type Orchestrator struct {
	chain      Chain
	artifacts  *artifacts.Set
	config     Config
	logger     *slog.Logger
	onProgress ProgressCallback

	marketplaceABI abi.ABI
	launchPadABI   abi.ABI
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithProgress registers a callback invoked after each confirmed step.
func WithProgress(cb ProgressCallback) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onProgress = cb
	}
}

// NewOrchestrator validates the artifacts against the calls the plan makes,
// so a bad ABI is caught before anything is broadcast.
func NewOrchestrator(c Chain, set *artifacts.Set, cfg Config, opts ...OrchestratorOption) (*Orchestrator, error) {
	if c == nil {
		return nil, ErrNilChain
	}
	if set == nil {
		return nil, ErrNilArtifacts
	}
	for _, name := range artifacts.RequiredContracts {
		if _, ok := set.Get(name); !ok {
			return nil, fmt.Errorf("%w: %s", artifacts.ErrMissingArtifact, name)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	marketplaceABI, err := set.Marketplace.ParsedABI()
	if err != nil {
		return nil, err
	}
	if err := contracts.RequireMethods(marketplaceABI, artifacts.MarketplaceContract, contracts.MarketplaceMethods...); err != nil {
		return nil, err
	}

	launchPadABI, err := set.LaunchPad.ParsedABI()
	if err != nil {
		return nil, err
	}
	if err := contracts.RequireMethods(launchPadABI, artifacts.LaunchPadContract, contracts.LaunchPadMethods...); err != nil {
		return nil, err
	}

	if _, err := contracts.UintArg(marketplaceABI, contracts.MethodSetPlatformFee, 0, cfg.PlatformFee); err != nil {
		return nil, fmt.Errorf("platform fee: %w", err)
	}

	o := &Orchestrator{
		chain:          c,
		artifacts:      set,
		config:         cfg,
		logger:         slog.Default(),
		marketplaceABI: marketplaceABI,
		launchPadABI:   launchPadABI,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Plan returns the step names in execution order.
func (o *Orchestrator) Plan() []string {
	steps := o.steps()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
	}
	return names
}

// Run executes every step in order and stops at the first failure. The
// returned Result is never nil; on failure the error is a *StepError.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.New(),
		ChainID:   o.config.ChainID,
		Deployer:  o.chain.From(),
		Config:    o.config,
		StartedAt: time.Now().UTC(),
	}

	steps := o.steps()
	o.logger.Info("starting YFIAG deployment",
		slog.String("run_id", res.RunID.String()),
		slog.Uint64("chain_id", res.ChainID),
		slog.String("deployer", res.Deployer.Hex()),
		slog.Int("steps", len(steps)),
	)

	for i, s := range steps {
		o.logger.Info("executing step",
			slog.Int("step", i+1),
			slog.String("name", s.name),
		)

		sr, err := s.run(ctx, res)
		sr.Name = s.name
		sr.Kind = s.kind
		if err != nil {
			sr.Status = StatusFailed
			sr.Error = err.Error()
			res.Steps = append(res.Steps, sr)

			stepErr := &StepError{Step: s.name, Index: i, Err: err}
			res.Error = stepErr.Error()
			res.FinishedAt = time.Now().UTC()

			o.logger.Error("deployment stopped",
				slog.String("step", s.name),
				slog.String("error", err.Error()),
			)
			return res, stepErr
		}

		sr.Status = StatusConfirmed
		res.Steps = append(res.Steps, sr)
		if o.onProgress != nil {
			o.onProgress(sr, i, len(steps))
		}
	}

	res.Complete = true
	res.FinishedAt = time.Now().UTC()

	o.logger.Info("YFIAG deployment complete",
		slog.String("marketplace", res.Marketplace.Address.Hex()),
		slog.String("launchpad", res.LaunchPad.Address.Hex()),
		slog.String("multicall", res.Multicall.Address.Hex()),
		slog.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

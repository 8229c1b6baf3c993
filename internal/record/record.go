// Package record persists the outcome of a deployment run.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/yfiag/yfiag-deploy/internal/deploy"
)

// ErrUnknownFormat is returned for record paths with an unsupported extension.
var ErrUnknownFormat = errors.New("record: unsupported file extension")

// Contract is a deployed contract as written to the record.
type Contract struct {
	Name        string `json:"name" yaml:"name"`
	Address     string `json:"address" yaml:"address"`
	TxHash      string `json:"tx_hash" yaml:"tx_hash"`
	BlockNumber uint64 `json:"block_number" yaml:"block_number"`
}

// Step is an executed step as written to the record.
type Step struct {
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Contract    string `json:"contract,omitempty" yaml:"contract,omitempty"`
	Method      string `json:"method,omitempty" yaml:"method,omitempty"`
	Address     string `json:"address,omitempty" yaml:"address,omitempty"`
	TxHash      string `json:"tx_hash,omitempty" yaml:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty" yaml:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty" yaml:"gas_used,omitempty"`
	Status      string `json:"status" yaml:"status"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Settings are the values the configuration calls were sent with.
type Settings struct {
	Owner       string `json:"owner" yaml:"owner"`
	Admin       string `json:"admin" yaml:"admin"`
	PlatformFee string `json:"platform_fee" yaml:"platform_fee"`
}

// Record is the on-disk form of a deploy.Result.
type Record struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	ChainID    uint64    `json:"chain_id" yaml:"chain_id"`
	Deployer   string    `json:"deployer" yaml:"deployer"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Complete   bool      `json:"complete" yaml:"complete"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`

	Settings  Settings   `json:"settings" yaml:"settings"`
	Contracts []Contract `json:"contracts" yaml:"contracts"`
	Steps     []Step     `json:"steps" yaml:"steps"`
}

// FromResult converts a run result into a record.
func FromResult(res *deploy.Result) *Record {
	r := &Record{
		RunID:      res.RunID.String(),
		ChainID:    res.ChainID,
		Deployer:   res.Deployer.Hex(),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Complete:   res.Complete,
		Error:      res.Error,
		Settings: Settings{
			Owner: res.Config.Owner.Hex(),
			Admin: res.Config.Admin.Hex(),
		},
		Contracts: make([]Contract, 0, 3),
		Steps:     make([]Step, 0, len(res.Steps)),
	}
	if res.Config.PlatformFee != nil {
		r.Settings.PlatformFee = res.Config.PlatformFee.String()
	}

	for _, d := range res.Deployments() {
		r.Contracts = append(r.Contracts, Contract{
			Name:        d.Contract,
			Address:     d.Address.Hex(),
			TxHash:      d.TxHash.Hex(),
			BlockNumber: d.BlockNumber,
		})
	}

	for _, s := range res.Steps {
		step := Step{
			Name:        s.Name,
			Kind:        string(s.Kind),
			Contract:    s.Contract,
			Method:      s.Method,
			BlockNumber: s.BlockNumber,
			GasUsed:     s.GasUsed,
			Status:      string(s.Status),
			Error:       s.Error,
		}
		if s.Address != (common.Address{}) {
			step.Address = s.Address.Hex()
		}
		if s.TxHash != (common.Hash{}) {
			step.TxHash = s.TxHash.Hex()
		}
		r.Steps = append(r.Steps, step)
	}

	return r
}

// Address returns the recorded address of the named contract.
func (r *Record) Address(name string) (string, bool) {
	for _, c := range r.Contracts {
		if c.Name == name {
			return c.Address, true
		}
	}
	return "", false
}

// Marshal encodes the record in the format implied by path's extension.
func (r *Record) Marshal(path string) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return json.MarshalIndent(r, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// Write saves the record to path, creating parent directories as needed.
func Write(path string, r *Record) error {
	data, err := r.Marshal(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create record directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Read loads a record written by Write.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	var r Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &r)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse record %s: %w", path, err)
	}
	return &r, nil
}

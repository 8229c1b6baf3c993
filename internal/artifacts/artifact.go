// Package artifacts loads the compiled YFIAG contracts (ABI and creation
// bytecode) that the deployer turns into on-chain instances.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Contract names as emitted by the Solidity compiler.
const (
	MarketplaceContract = "YFIAGNftMarketplace"
	LaunchPadContract   = "YFIAGLaunchPad"
	MulticallContract   = "Multicall"
)

// RequiredContracts lists every contract a deployment needs, in deployment order.
var RequiredContracts = []string{
	MarketplaceContract,
	LaunchPadContract,
	MulticallContract,
}

var (
	ErrMissingArtifact = errors.New("artifacts: missing required contract")
	ErrEmptyBytecode   = errors.New("artifacts: empty bytecode")
	ErrChecksum        = errors.New("artifacts: checksum mismatch")
)

// ContractArtifact represents a compiled Solidity contract with ABI and bytecode.
type ContractArtifact struct {
	ContractName string          `json:"contractName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`
}

// Bytecode is the creation bytecode of a contract. Hardhat stores it as a
// plain hex string, Foundry as {"object": "0x..."}; both are accepted.
type Bytecode struct {
	Object string `json:"object"`
}

func (b *Bytecode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.Object)
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode bytecode: %w", err)
	}
	b.Object = obj.Object
	return nil
}

// BytecodeBytes returns the decoded creation bytecode.
func (a *ContractArtifact) BytecodeBytes() ([]byte, error) {
	code := strings.TrimSpace(a.Bytecode.Object)
	if !strings.HasPrefix(code, "0x") && !strings.HasPrefix(code, "0X") {
		code = "0x" + code
	}
	if len(code) <= 2 {
		return nil, ErrEmptyBytecode
	}
	raw, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return raw, nil
}

// ParsedABI parses the artifact's ABI.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	if len(a.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("artifact %s has no ABI", a.ContractName)
	}
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s ABI: %w", a.ContractName, err)
	}
	return parsed, nil
}

// Set holds the artifacts of one deployment.
type Set struct {
	Marketplace *ContractArtifact
	LaunchPad   *ContractArtifact
	Multicall   *ContractArtifact

	LoadedAt  time.Time
	SourceURL string
}

// Get returns the artifact for the named contract.
func (s *Set) Get(name string) (*ContractArtifact, bool) {
	var a *ContractArtifact
	switch name {
	case MarketplaceContract:
		a = s.Marketplace
	case LaunchPadContract:
		a = s.LaunchPad
	case MulticallContract:
		a = s.Multicall
	}
	return a, a != nil
}

func newSet(loaded map[string]*ContractArtifact, source string) (*Set, error) {
	var missing []string
	for _, name := range RequiredContracts {
		if loaded[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, strings.Join(missing, ", "))
	}

	for name, a := range loaded {
		if a.ContractName == "" {
			a.ContractName = name
		}
	}

	return &Set{
		Marketplace: loaded[MarketplaceContract],
		LaunchPad:   loaded[LaunchPadContract],
		Multicall:   loaded[MulticallContract],
		LoadedAt:    time.Now(),
		SourceURL:   source,
	}, nil
}

// contractNameFromPath maps "artifacts/contracts/X.sol/X.json" to "X".
// Hardhat debug files (X.dbg.json) never match a required name.
func contractNameFromPath(path string) (string, bool) {
	if filepath.Ext(path) != ".json" {
		return "", false
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, ".json")
	for _, required := range RequiredContracts {
		if name == required {
			return name, true
		}
	}
	return "", false
}

func parseArtifact(name string, data []byte) (*ContractArtifact, error) {
	var artifact ContractArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &artifact, nil
}

// LoadFromDirectory loads artifacts from a local directory. Both a Hardhat
// artifacts tree and a flat directory of <Name>.json files work.
func LoadFromDirectory(dir string) (*Set, error) {
	loaded := make(map[string]*ContractArtifact)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// build-info holds full compiler input, never artifacts
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}

		name, ok := contractNameFromPath(path)
		if !ok || loaded[name] != nil {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		artifact, err := parseArtifact(name, data)
		if err != nil {
			return err
		}
		loaded[name] = artifact
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load artifacts from %s: %w", dir, err)
	}

	return newSet(loaded, "file://"+dir)
}

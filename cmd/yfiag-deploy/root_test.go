package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfiag/yfiag-deploy/internal/artifacts"
	"github.com/yfiag/yfiag-deploy/internal/chain"
	"github.com/yfiag/yfiag-deploy/internal/chain/chaintest"
	"github.com/yfiag/yfiag-deploy/internal/deploy"
	"github.com/yfiag/yfiag-deploy/internal/record"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ResetFlags()
	var buf bytes.Buffer
	SetOutput(&buf)
	err := ExecuteWithArgs(args)
	return buf.String(), err
}

// useBackend points every command at backend instead of dialing.
func useBackend(t *testing.T, backend chain.Backend) {
	t.Helper()
	orig := dialBackend
	dialBackend = func(ctx context.Context, rpcURL string) (chain.Backend, error) {
		return backend, nil
	}
	t.Cleanup(func() { dialBackend = orig })
}

func writeArtifacts(t *testing.T, marketplaceBytecode string) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string][2]string{
		artifacts.MarketplaceContract: {chaintest.MarketplaceABI, marketplaceBytecode},
		artifacts.LaunchPadContract:   {chaintest.LaunchPadABI, chaintest.StopBytecode},
		artifacts.MulticallContract:   {chaintest.MulticallABI, chaintest.StopBytecode},
	}
	for name, f := range files {
		data := fmt.Sprintf(`{"contractName":%q,"abi":%s,"bytecode":%q}`, name, f[0], f[1])
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(data), 0o644))
	}
	return dir
}

func envKey(env *chaintest.Env) string {
	return hex.EncodeToString(crypto.FromECDSA(env.Key))
}

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantContain []string
	}{
		{
			name:        "basic version",
			args:        []string{"version"},
			wantContain: []string{"yfiag-deploy dev"},
		},
		{
			name:        "verbose version",
			args:        []string{"--verbose", "version"},
			wantContain: []string{"yfiag-deploy", "commit:", "built:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(t, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, output, want)
			}
		})
	}
}

func TestRootCommand_Help(t *testing.T) {
	output, err := run(t, "--help")
	require.NoError(t, err)

	for _, expected := range []string{
		"YFIAGNftMarketplace",
		"--rpc-url",
		"--private-key",
		"--artifacts-dir",
		"YFIAG_RPC_URL",
		"deploy",
		"preflight",
		"inspect",
	} {
		assert.Contains(t, output, expected)
	}
}

func TestConfigShow(t *testing.T) {
	t.Setenv("YFIAG_RPC_URL", "http://env:8545")
	t.Setenv("YFIAG_PRIVATE_KEY", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")

	output, err := run(t, "config", "show", "--json", "--chain-id", "97")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &got))

	assert.Equal(t, "http://env:8545", got[keyRPCURL])
	assert.Equal(t, "97", got[keyChainID])
	assert.Equal(t, "0x4c08...2318", got[keyPrivateKey])
	assert.Equal(t, common.HexToAddress(deploy.DefaultTargetAddress).Hex(), got[keyOwner])
	assert.Equal(t, got[keyOwner], got[keyAdmin])
	assert.Equal(t, "100", got[keyPlatformFee])
	assert.Equal(t, "auto", got[keyGasPriceGwei])
	assert.Equal(t, defaultOutput, got[keyOutput])
}

func TestConfigShow_FlagBeatsEnv(t *testing.T) {
	t.Setenv("YFIAG_RPC_URL", "http://env:8545")

	output, err := run(t, "config", "show", "--rpc-url", "http://flag:8545")
	require.NoError(t, err)
	assert.Contains(t, output, "http://flag:8545")
	assert.NotContains(t, output, "http://env:8545")
}

func TestConfigShow_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yfiag-deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc_url: http://file:8545\nplatform_fee: 250\n"), 0o600))

	output, err := run(t, "--config", path, "config", "show", "--json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &got))
	assert.Equal(t, "http://file:8545", got[keyRPCURL])
	assert.Equal(t, "250", got[keyPlatformFee])
	assert.Equal(t, path, got["config_file"])
}

func TestDeploy_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing rpc url",
			args:    []string{"deploy"},
			wantErr: "RPC URL required",
		},
		{
			name:    "invalid owner",
			args:    []string{"deploy", "--rpc-url", "http://localhost:8545", "--owner", "0x1234"},
			wantErr: "owner: invalid address",
		},
		{
			name:    "invalid platform fee",
			args:    []string{"deploy", "--rpc-url", "http://localhost:8545", "--platform-fee", "-5"},
			wantErr: "platform_fee must be a non-negative integer",
		},
		{
			name:    "bad checksum",
			args:    []string{"deploy", "--rpc-url", "http://localhost:8545", "--artifacts-checksum", "md5:abc"},
			wantErr: "artifacts_checksum must be sha256:<64 hex chars>",
		},
		{
			name:    "bad log format",
			args:    []string{"deploy", "--rpc-url", "http://localhost:8545", "--log-format", "xml"},
			wantErr: "log_format must be one of: text json",
		},
		{
			name:    "no artifacts",
			args:    []string{"deploy", "--rpc-url", "http://localhost:8545"},
			wantErr: ErrNoArtifactSource.Error(),
		},
		{
			name:    "bad log level",
			args:    []string{"deploy", "--rpc-url", "http://localhost:8545", "--log-level", "loud"},
			wantErr: "log_level must be one of",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDeploy_MissingKey(t *testing.T) {
	env := chaintest.NewEnv(t)
	useBackend(t, env.Backend)

	_, err := run(t, "deploy", "--rpc-url", "sim", "--artifacts-dir", writeArtifacts(t, chaintest.StopBytecode))
	assert.ErrorIs(t, err, chain.ErrMissingKey)
}

func TestDeploy_SimulatedChain(t *testing.T) {
	env := chaintest.NewEnv(t)
	useBackend(t, env.Backend)

	out := filepath.Join(t.TempDir(), "records", "deployment.yaml")
	output, err := run(t, "deploy",
		"--rpc-url", "sim",
		"--private-key", envKey(env),
		"--artifacts-dir", writeArtifacts(t, chaintest.StopBytecode),
		"--output", out,
		"--log-level", "error",
	)
	require.NoError(t, err, output)

	rec, err := record.Read(out)
	require.NoError(t, err)
	assert.True(t, rec.Complete)
	assert.Equal(t, env.ChainID.Uint64(), rec.ChainID)
	assert.Equal(t, env.Signer.Address().Hex(), rec.Deployer)
	require.Len(t, rec.Contracts, 3)
	require.Len(t, rec.Steps, 9)

	for _, c := range rec.Contracts {
		assert.Contains(t, output, c.Address)
	}
	assert.Contains(t, output, "[9/9] marketplace-set-admin")
	assert.Contains(t, output, "YFIAG deployment complete")
}

func TestDeploy_PushesMetrics(t *testing.T) {
	env := chaintest.NewEnv(t)
	useBackend(t, env.Backend)

	pushed := make(chan string, 1)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushed <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	_, err := run(t, "deploy",
		"--rpc-url", "sim",
		"--private-key", envKey(env),
		"--artifacts-dir", writeArtifacts(t, chaintest.StopBytecode),
		"--output", filepath.Join(t.TempDir(), "deployment.json"),
		"--pushgateway-url", gateway.URL,
		"--log-level", "error",
	)
	require.NoError(t, err)
	require.Len(t, pushed, 1)
	assert.Equal(t, fmt.Sprintf("/metrics/job/yfiag_deploy/chain_id/%d", env.ChainID.Uint64()), <-pushed)
}

func TestDeploy_FailedStepWritesRecord(t *testing.T) {
	env := chaintest.NewEnv(t)
	useBackend(t, env.Backend)

	out := filepath.Join(t.TempDir(), "deployment.json")
	output, err := run(t, "deploy",
		"--rpc-url", "sim",
		"--private-key", envKey(env),
		"--artifacts-dir", writeArtifacts(t, chaintest.RevertBytecode),
		"--output", out,
		"--log-level", "error",
	)
	require.Error(t, err)

	var stepErr *deploy.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "marketplace-set-platform-fee", stepErr.Step)

	rec, err := record.Read(out)
	require.NoError(t, err)
	assert.False(t, rec.Complete)
	assert.Contains(t, rec.Error, "marketplace-set-platform-fee")
	assert.Len(t, rec.Contracts, 3)
	require.Len(t, rec.Steps, 6)
	assert.Equal(t, "failed", rec.Steps[5].Status)

	assert.NotContains(t, output, "marketplace-set-launchpad")
	assert.NotContains(t, output, "deployment complete")
}

func TestDeploy_DryRun(t *testing.T) {
	env := chaintest.NewEnv(t)
	useBackend(t, env.Backend)

	out := filepath.Join(t.TempDir(), "deployment.json")
	output, err := run(t, "deploy",
		"--rpc-url", "sim",
		"--private-key", envKey(env),
		"--artifacts-dir", writeArtifacts(t, chaintest.StopBytecode),
		"--output", out,
		"--dry-run",
	)
	require.NoError(t, err)

	assert.Contains(t, output, "Dry run")
	assert.Contains(t, output, "1. deploy-marketplace")
	assert.Contains(t, output, "9. marketplace-set-admin")
	assert.NoFileExists(t, out)
}

func TestDeploy_PreflightBlocksRun(t *testing.T) {
	env := chaintest.NewEnv(t)
	useBackend(t, env.Backend)

	out := filepath.Join(t.TempDir(), "deployment.json")
	_, err := run(t, "deploy",
		"--rpc-url", "sim",
		"--chain-id", "97",
		"--private-key", envKey(env),
		"--artifacts-dir", writeArtifacts(t, chaintest.StopBytecode),
		"--output", out,
	)
	assert.ErrorIs(t, err, ErrPreflightFailed)
	assert.NoFileExists(t, out)
}

func TestPreflightCommand(t *testing.T) {
	env := chaintest.NewEnv(t)
	useBackend(t, env.Backend)

	output, err := run(t, "preflight", "--rpc-url", "sim", "--private-key", envKey(env))
	require.NoError(t, err)
	assert.Contains(t, output, "Local Devnet")
	assert.Contains(t, output, env.Signer.Address().Hex())

	output, err = run(t, "preflight", "--rpc-url", "sim", "--private-key", envKey(env), "--chain-id", "56", "--json")
	assert.ErrorIs(t, err, ErrPreflightFailed)
	assert.Contains(t, output, `"chain_id_match"`)
}

// multicallNode answers Multicall aggregate calls with a fixed owner.
type multicallNode struct {
	chain.Backend
	owner common.Address
}

func (m *multicallNode) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(chaintest.MulticallABI))
	if err != nil {
		return nil, err
	}

	var calls []struct {
		Target   common.Address
		CallData []byte
	}
	method := parsed.Methods["aggregate"]
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	if err := method.Inputs.Copy(&calls, args); err != nil {
		return nil, err
	}

	results := make([][]byte, len(calls))
	for i := range calls {
		results[i] = common.LeftPadBytes(m.owner.Bytes(), 32)
	}
	return method.Outputs.Pack(big.NewInt(1), results)
}

func writeRecord(t *testing.T, owner string, contracts ...string) string {
	t.Helper()
	rec := &record.Record{Settings: record.Settings{Owner: owner}}
	for i, name := range contracts {
		rec.Contracts = append(rec.Contracts, record.Contract{
			Name:    name,
			Address: common.BigToAddress(big.NewInt(int64(i + 1))).Hex(),
		})
	}
	path := filepath.Join(t.TempDir(), "deployment.json")
	require.NoError(t, record.Write(path, rec))
	return path
}

func TestInspectCommand(t *testing.T) {
	owner := common.HexToAddress(deploy.DefaultTargetAddress)
	all := []string{artifacts.MarketplaceContract, artifacts.LaunchPadContract, artifacts.MulticallContract}

	t.Run("ownership transferred", func(t *testing.T) {
		useBackend(t, &multicallNode{owner: owner})

		output, err := run(t, "inspect", writeRecord(t, owner.Hex(), all...), "--rpc-url", "sim")
		require.NoError(t, err)
		assert.Contains(t, output, owner.Hex())
	})

	t.Run("ownership not transferred", func(t *testing.T) {
		useBackend(t, &multicallNode{owner: common.HexToAddress("0xdead")})

		_, err := run(t, "inspect", writeRecord(t, owner.Hex(), all...), "--rpc-url", "sim", "--json")
		assert.ErrorIs(t, err, ErrOwnerMismatch)
	})

	t.Run("record without multicall", func(t *testing.T) {
		_, err := run(t, "inspect", writeRecord(t, owner.Hex(), artifacts.MarketplaceContract), "--rpc-url", "sim")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record has no Multicall deployment")
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := run(t, "inspect")
		assert.Error(t, err)
	})
}

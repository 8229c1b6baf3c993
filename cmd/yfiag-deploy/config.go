package main

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/yfiag/yfiag-deploy/internal/deploy"
)

// Configuration keys
const (
	keyRPCURL            = "rpc_url"
	keyChainID           = "chain_id"
	keyPrivateKey        = "private_key"
	keyKeystore          = "keystore"
	keyKeystorePassword  = "keystore_password"
	keyArtifactsDir      = "artifacts_dir"
	keyArtifactsURL      = "artifacts_url"
	keyArtifactsChecksum = "artifacts_checksum"
	keyOwner             = "owner"
	keyAdmin             = "admin"
	keyPlatformFee       = "platform_fee"
	keyGasPriceGwei      = "gas_price_gwei"
	keyGasLimit          = "gas_limit"
	keyOutput            = "output"
	keyTimeout           = "timeout"
	keyPushgatewayURL    = "pushgateway_url"
	keyLogLevel          = "log_level"
	keyLogFormat         = "log_format"
)

const (
	defaultPlatformFee = "100"
	defaultOutput      = "deployment.json"
)

// settings is the resolved configuration for one command invocation.
type settings struct {
	RPCURL            string
	ChainID           uint64
	PrivateKey        string
	Keystore          string
	KeystorePassword  string
	ArtifactsDir      string
	ArtifactsURL      string
	ArtifactsChecksum string
	Owner             common.Address
	Admin             common.Address
	PlatformFee       *big.Int
	GasPrice          *big.Int
	GasLimit          uint64
	Output            string
	Timeout           time.Duration
	PushgatewayURL    string
	LogLevel          string
	LogFormat         string
}

// rawSettings are the configuration values as read, before conversion.
type rawSettings struct {
	ArtifactsURL      string `validate:"omitempty,url"`
	ArtifactsChecksum string `validate:"omitempty,startswith=sha256:,len=71"`
	Owner             string `validate:"omitempty,eth_addr"`
	Admin             string `validate:"omitempty,eth_addr"`
	PlatformFee       string `validate:"required,numeric"`
	PushgatewayURL    string `validate:"omitempty,url"`
	LogLevel          string `validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat         string `validate:"oneof=text json"`
}

var validate = validator.New()

// keyForField maps rawSettings fields back to the configuration keys.
var keyForField = map[string]string{
	"ArtifactsURL":      keyArtifactsURL,
	"ArtifactsChecksum": keyArtifactsChecksum,
	"Owner":             keyOwner,
	"Admin":             keyAdmin,
	"PlatformFee":       keyPlatformFee,
	"PushgatewayURL":    keyPushgatewayURL,
	"LogLevel":          keyLogLevel,
	"LogFormat":         keyLogFormat,
}

// formatValidationErrors converts validator errors to a readable message.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		key := keyForField[fieldError.Field()]
		switch fieldError.Tag() {
		case "required":
			msgs = append(msgs, key+" is required")
		case "eth_addr":
			msgs = append(msgs, fmt.Sprintf("%s: invalid address %q", key, fieldError.Value()))
		case "numeric":
			msgs = append(msgs, fmt.Sprintf("%s must be a non-negative integer, got %q", key, fieldError.Value()))
		case "url":
			msgs = append(msgs, key+" must be a valid URL")
		case "startswith", "len":
			msgs = append(msgs, key+" must be sha256:<64 hex chars>")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", key, fieldError.Param()))
		default:
			msgs = append(msgs, key+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// loadSettings resolves and validates the configuration.
func loadSettings() (*settings, error) {
	raw := rawSettings{
		ArtifactsURL:      v.GetString(keyArtifactsURL),
		ArtifactsChecksum: v.GetString(keyArtifactsChecksum),
		Owner:             v.GetString(keyOwner),
		Admin:             v.GetString(keyAdmin),
		PlatformFee:       strings.TrimSpace(v.GetString(keyPlatformFee)),
		PushgatewayURL:    v.GetString(keyPushgatewayURL),
		LogLevel:          v.GetString(keyLogLevel),
		LogFormat:         v.GetString(keyLogFormat),
	}
	if err := validate.Struct(raw); err != nil {
		return nil, formatValidationErrors(err)
	}

	s := &settings{
		RPCURL:            v.GetString(keyRPCURL),
		ChainID:           v.GetUint64(keyChainID),
		PrivateKey:        v.GetString(keyPrivateKey),
		Keystore:          v.GetString(keyKeystore),
		KeystorePassword:  v.GetString(keyKeystorePassword),
		ArtifactsDir:      v.GetString(keyArtifactsDir),
		ArtifactsURL:      raw.ArtifactsURL,
		ArtifactsChecksum: raw.ArtifactsChecksum,
		Owner:             targetAddress(raw.Owner),
		Admin:             targetAddress(raw.Admin),
		GasLimit:          v.GetUint64(keyGasLimit),
		Output:            v.GetString(keyOutput),
		Timeout:           v.GetDuration(keyTimeout),
		PushgatewayURL:    raw.PushgatewayURL,
		LogLevel:          raw.LogLevel,
		LogFormat:         raw.LogFormat,
	}

	// numeric admits a sign and a decimal point
	fee, ok := new(big.Int).SetString(raw.PlatformFee, 10)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer, got %q", keyPlatformFee, raw.PlatformFee)
	}
	s.PlatformFee = fee

	if gwei := v.GetUint64(keyGasPriceGwei); gwei > 0 {
		s.GasPrice = new(big.Int).Mul(new(big.Int).SetUint64(gwei), big.NewInt(params.GWei))
	}

	if s.Timeout < 0 {
		return nil, fmt.Errorf("%s must not be negative", keyTimeout)
	}

	return s, nil
}

// targetAddress falls back to the default target for an empty value.
func targetAddress(value string) common.Address {
	if value == "" {
		return common.HexToAddress(deploy.DefaultTargetAddress)
	}
	return common.HexToAddress(value)
}

// deployConfig returns the values the configuration transactions use.
func (s *settings) deployConfig(chainID uint64) deploy.Config {
	return deploy.Config{
		ChainID:     chainID,
		Owner:       s.Owner,
		Admin:       s.Admin,
		PlatformFee: s.PlatformFee,
	}
}

func (s *settings) requireRPC() error {
	if s.RPCURL == "" {
		return fmt.Errorf("RPC URL required. Set via --rpc-url, YFIAG_RPC_URL, or %s.yaml", defaultConfigName)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect CLI configuration",
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE:  runConfigShow,
	}

	configCmd.AddCommand(configShowCmd)
	return configCmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	gasPrice := "auto"
	if s.GasPrice != nil {
		gasPrice = s.GasPrice.String() + " wei"
	}
	gasLimit := "auto"
	if s.GasLimit > 0 {
		gasLimit = fmt.Sprintf("%d", s.GasLimit)
	}
	timeout := "none"
	if s.Timeout > 0 {
		timeout = s.Timeout.String()
	}

	rows := [][]string{
		{keyRPCURL, s.RPCURL},
		{keyChainID, chainIDString(s.ChainID)},
		{keyPrivateKey, maskSecret(s.PrivateKey)},
		{keyKeystore, s.Keystore},
		{keyKeystorePassword, maskSecret(s.KeystorePassword)},
		{keyArtifactsDir, s.ArtifactsDir},
		{keyArtifactsURL, s.ArtifactsURL},
		{keyArtifactsChecksum, s.ArtifactsChecksum},
		{keyOwner, s.Owner.Hex()},
		{keyAdmin, s.Admin.Hex()},
		{keyPlatformFee, s.PlatformFee.String()},
		{keyGasPriceGwei, gasPrice},
		{keyGasLimit, gasLimit},
		{keyOutput, s.Output},
		{keyTimeout, timeout},
		{keyPushgatewayURL, s.PushgatewayURL},
		{keyLogLevel, s.LogLevel},
		{keyLogFormat, s.LogFormat},
		{"config_file", v.ConfigFileUsed()},
	}

	if jsonOut {
		out := make(map[string]string, len(rows))
		for _, row := range rows {
			out[row[0]] = row[1]
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	for i, row := range rows {
		if row[1] == "" {
			rows[i][1] = colorYellow("(not set)")
		}
	}
	printTable(cmd.OutOrStdout(), []string{"Key", "Value"}, rows)
	return nil
}

func chainIDString(id uint64) string {
	if id == 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", id)
}

// maskSecret masks a key or passphrase for display.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return "****"
	}
	return secret[:6] + "..." + secret[len(secret)-4:]
}

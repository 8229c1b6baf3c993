package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const (
	envPrefix         = "YFIAG"
	defaultConfigName = "yfiag-deploy"
)

// Global flags
var (
	cfgFile string
	jsonOut bool
	verbose bool
)

var (
	rootCmd    *cobra.Command
	versionCmd *cobra.Command

	// v holds the merged flag, environment and config file values.
	v *viper.Viper
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "yfiag-deploy",
		Short: "Deploy and configure the YFIAG NFT marketplace contracts",
		Long: `yfiag-deploy deploys YFIAGNftMarketplace, YFIAGLaunchPad and Multicall
to an EVM network, then wires them together:

  LaunchPad.setAddressMarketplace, LaunchPad.transferOwnership,
  Marketplace.setPlatformFee, Marketplace.setLaunchPad,
  Marketplace.transferOwnership, Marketplace.setAdmin

Configuration (in order of priority):
  1. Command-line flags (--rpc-url, --private-key, ...)
  2. Environment variables (YFIAG_RPC_URL, YFIAG_PRIVATE_KEY, ...)
  3. Config file (./yfiag-deploy.yaml or --config)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "yfiag-deploy %s\n", Version)
			if verbose {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
			}
		},
	}

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./yfiag-deploy.yaml)")
	flags.BoolVar(&jsonOut, "json", false, "output in JSON format")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	flags.String("rpc-url", "", "EVM JSON-RPC endpoint (or YFIAG_RPC_URL)")
	flags.Uint64("chain-id", 0, "expected chain ID, 0 to use the node's (or YFIAG_CHAIN_ID)")
	flags.String("private-key", "", "hex deployer private key (or YFIAG_PRIVATE_KEY)")
	flags.String("keystore", "", "path to a Web3 keystore file (or YFIAG_KEYSTORE)")
	flags.String("keystore-password", "", "keystore passphrase (or YFIAG_KEYSTORE_PASSWORD)")
	flags.String("artifacts-dir", "", "directory holding compiled contract JSON (or YFIAG_ARTIFACTS_DIR)")
	flags.String("artifacts-url", "", "URL of a zipped artifact bundle (or YFIAG_ARTIFACTS_URL)")
	flags.String("artifacts-checksum", "", "sha256:<hex> checksum of the bundle (or YFIAG_ARTIFACTS_CHECKSUM)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newPreflightCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newConfigCmd())

	resetViper()
}

// resetViper binds every flag to a fresh viper instance.
func resetViper() {
	v = viper.New()
	v.SetDefault(keyPlatformFee, defaultPlatformFee)
	v.SetDefault(keyOutput, defaultOutput)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bind := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			switch f.Name {
			case "config", "json", "verbose", "help":
				return
			}
			_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
	}
	bind(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		bind(c.Flags())
	}
}

// initConfig reads the config file, if any.
func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(defaultConfigName)
	}

	// Read config file (ignore error if not found)
	_ = v.ReadInConfig()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithArgs runs the root command with the provided arguments (for testing)
func ExecuteWithArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// SetOutput sets the output writer for the root command (for testing)
func SetOutput(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

// ResetFlags resets all flags and configuration to their defaults (for testing)
func ResetFlags() {
	cfgFile = ""
	jsonOut = false
	verbose = false

	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	reset(rootCmd.Flags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
		for _, sub := range c.Commands() {
			reset(sub.Flags())
		}
	}

	resetViper()
}

// newLogger builds the structured logger the deployment reports through.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

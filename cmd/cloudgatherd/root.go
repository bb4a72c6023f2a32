package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/daemoncfg"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagLogLevel   string
	flagHTTPAddr   string
	flagQuiet      bool
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cloudgatherd",
		Short:   "CloudGather file-sync and stub-generator daemon",
		Long:    "CloudGather runs scheduled sync and stub-generation tasks and exposes a control-plane HTTP API.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to the daemon bootstrap TOML config")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&flagHTTPAddr, "http-addr", "", "override the control-plane HTTP bind address")
	cmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress status output on stderr")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCronCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newReloadCmd())

	return cmd
}

// loadConfig loads the bootstrap document at flagConfigPath and applies the
// "CLI wins" --log-level/--http-addr overrides (§0).
func loadConfig() (daemoncfg.Config, error) {
	cfg, err := daemoncfg.Load(flagConfigPath)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}

	return cfg.ApplyOverrides(flagLogLevel, flagHTTPAddr), nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// syncLogger flushes a zap logger's buffered output, swallowing the common
// "sync /dev/stderr: invalid argument" error zap returns on plain terminals.
func syncLogger(logger *zap.SugaredLogger) {
	_ = logger.Sync()
}

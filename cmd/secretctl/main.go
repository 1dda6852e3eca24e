package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/secretclient/cmd/secretctl/commands"
	"github.com/systmms/secretclient/internal/config"
	"github.com/systmms/secretclient/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	memguard.CatchInterrupt()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	memguard.Purge()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	// Global flags
	var (
		configFile  string
		envFile     string
		noColor     bool
		debug       bool
		transport   string
		metricsAddr string
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "secretctl",
		Short: "Read secrets from a Key Vault style secret store",
		Long: `secretctl reads secrets and their versions from a vault, authenticating
through a chain of credential sources (environment token, managed identity,
Azure CLI, Azure Developer CLI).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), debug, noColor)

			// Update config with parsed values
			cfg.Path = configFile
			cfg.EnvFile = envFile
			cfg.Logger = logger
			cfg.Transport = transport
			cfg.MetricsAddr = metricsAddr
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default: .env if present)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "HTTP stack: http or resty")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")

	// Add commands
	rootCmd.AddCommand(
		commands.NewGetCommand(cfg),
		commands.NewListCommand(cfg),
		commands.NewVersionsCommand(cfg),
		commands.NewTokenCommand(cfg),
		commands.NewDoctorCommand(cfg),
	)

	return rootCmd
}

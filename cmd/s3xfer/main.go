package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/s3xfer/cmd/s3xfer/commands"
	"github.com/systmms/s3xfer/internal/config"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "s3xfer",
		Short: "Move objects between S3 buckets with vault-held credentials",
		Long: `s3xfer copies objects between S3-compatible locations. Transfers between
locations on the same endpoint use server-side copy, anything else is
streamed through this process with multipart uploads.

Credentials are looked up in the configured vault by keyName.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			// an absent default file means built-in defaults
			cfg.Optional = !cmd.Flags().Changed("config")
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "s3xfer.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewSanitizeCommand(cfg),
		commands.NewEligibleCommand(cfg),
		commands.NewCredentialsCommand(cfg),
		commands.NewTransferCommand(cfg),
		commands.NewVaultsCommand(cfg),
		commands.NewMetricsCommand(cfg),
	)

	return rootCmd.Execute()
}

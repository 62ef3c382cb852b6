package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/infrastructure/monitoring"
	"github.com/turtacn/dashgate/pkg/logger"
)

// NewRootCmd builds the `dashgate-admin` command tree.
// NewRootCmd 构建 dashgate-admin 命令树。
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dashgate-admin",
		Short: "A CLI tool for administering the dashgate service.",
		Long: `dashgate-admin performs maintenance tasks against the dashgate
database, session signer and rate limit store: integrity checks, OAuth
conflict cleanup, session issuing and bucket resets.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to the config file")

	rootCmd.AddCommand(newDBCmd(), newSessionCmd(), newRateLimitCmd())
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// It parses the command-line arguments and executes the appropriate command.
// If an error occurs, it prints the error and exits.
// Execute 是 CLI 应用程序的主入口点。
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config. Commands log at warn
// level so their own output stays readable.
func loadConfig(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	log, err := monitoring.NewZapLogger(&config.LogConfig{Level: "warn", Format: "console"})
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadConfig(log, config.Options{ConfigFile: path})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

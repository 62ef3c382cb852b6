package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/turtacn/dashgate/internal/domain/repository"
	"github.com/turtacn/dashgate/internal/infrastructure/persistence/database"
)

// newDBCmd groups the database maintenance commands.
// newDBCmd 数据库维护命令组。
func newDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	dbCmd.AddCommand(newDBCheckCmd(), newDBClearOAuthCmd())
	return dbCmd
}

func newDBCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check connectivity and print row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMaintenance(cmd, func(repo repository.MaintenanceRepository) error {
				if err := repo.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("database unreachable: %w", err)
				}
				counts, err := repo.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database connection: ok")
				printCounts(cmd, counts)
				return nil
			})
		},
	}
}

func newDBClearOAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-oauth",
		Short: "Delete all users and their OAuth data to resolve account linking conflicts",
		Long: `clear-oauth deletes every account, integration token, profile and user.
Tasks are kept. Sessions are stateless and expire on their own; users must
sign in again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to delete OAuth data without --yes")
			}
			return withMaintenance(cmd, func(repo repository.MaintenanceRepository) error {
				deleted, err := repo.ClearOAuthData(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OAuth data cleared:")
				printCounts(cmd, deleted)
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "confirm the deletion")
	return cmd
}

func withMaintenance(cmd *cobra.Command, fn func(repository.MaintenanceRepository) error) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	conn, err := database.NewDBConnection(cmd.Context(), &cfg.Database, log)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return fn(database.NewMaintenanceRepository(conn, log))
}

func printCounts(cmd *cobra.Command, counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "- %s: %d\n", name, counts[name])
	}
}

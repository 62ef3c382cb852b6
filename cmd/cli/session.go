package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/dashgate/internal/infrastructure/persistence/database"
	"github.com/turtacn/dashgate/internal/infrastructure/secrets"
	"github.com/turtacn/dashgate/internal/infrastructure/session"
)

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage session credentials",
	}
	sessionCmd.AddCommand(newSessionIssueCmd())
	return sessionCmd
}

// newSessionIssueCmd signs a session for an existing user, for API testing
// with a bearer credential.
func newSessionIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a session credential for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			secret, err := secrets.ResolveSessionSecret(ctx, cfg, log)
			if err != nil {
				return err
			}

			conn, err := database.NewDBConnection(ctx, &cfg.Database, log)
			if err != nil {
				return fmt.Errorf("unable to connect to database: %w", err)
			}
			defer func() { _ = conn.Close() }()

			user, err := database.NewUserRepository(conn.DB(), log).FindByID(ctx, userID)
			if err != nil {
				return err
			}

			manager, err := session.NewJWTManager(secret, ttl, nil, log)
			if err != nil {
				return err
			}
			token, expiresAt, err := manager.Issue(ctx, user)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().Duration("ttl", time.Hour, "session lifetime")
	return cmd
}

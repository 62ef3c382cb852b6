package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/dashgate/internal/domain/service"
	persistredis "github.com/turtacn/dashgate/internal/infrastructure/persistence/redis"
	"github.com/turtacn/dashgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/dashgate/pkg/constants"
)

// newRateLimitCmd inspects and resets buckets in the shared Redis store.
// In-memory buckets live inside the server process and cannot be reached.
func newRateLimitCmd() *cobra.Command {
	rlCmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect and reset rate limit buckets (redis backend only)",
	}
	rlCmd.PersistentFlags().String("pool", string(constants.RateLimitPoolAnonymous), "bucket pool: authenticated, anonymous or handshake")
	rlCmd.PersistentFlags().String("key", "", "bucket key, e.g. user:<id> or ip:<address>")

	rlCmd.AddCommand(
		&cobra.Command{
			Use:   "usage",
			Short: "Print the state of a bucket",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBucket(cmd, func(limiter service.RateLimiter, key string) error {
					usage, err := limiter.Usage(cmd.Context(), key)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d remaining, resets %s\n",
						usage.Key, usage.Remaining, usage.Limit, usage.ResetAt.UTC().Format("15:04:05"))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Discard a bucket so the caller starts with a full quota",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBucket(cmd, func(limiter service.RateLimiter, key string) error {
					if err := limiter.Reset(cmd.Context(), key); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Bucket %s reset\n", key)
					return nil
				})
			},
		},
	)
	return rlCmd
}

func withBucket(cmd *cobra.Command, fn func(service.RateLimiter, string) error) error {
	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		return fmt.Errorf("--key is required")
	}
	pool, _ := cmd.Flags().GetString("pool")

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Gate.Backend != "redis" {
		return fmt.Errorf("gate.backend is %q; only redis buckets can be managed from the CLI", cfg.Gate.Backend)
	}

	conn := persistredis.NewRedisConnection(&cfg.Redis, log)
	if err := conn.Connect(cmd.Context()); err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	pools, err := ratelimit.NewPools(&cfg.Gate, conn.GetClient(), log)
	if err != nil {
		return err
	}
	limiter := pools.For(constants.RateLimitPool(pool))
	if limiter == nil {
		return fmt.Errorf("unknown or disabled pool %q", pool)
	}
	return fn(limiter, key)
}

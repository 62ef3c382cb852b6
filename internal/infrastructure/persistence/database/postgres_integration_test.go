//go:build integration

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/logger"
)

func TestPostgresRepositories(t *testing.T) {
	if os.Getenv("SKIP_DOCKER_TESTS") == "true" {
		t.Skip("Skipping Docker-dependent tests")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dashgate"),
		postgres.WithUsername("dashgate"),
		postgres.WithPassword("dashgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	}()

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := NewDBConnection(ctx, &config.DatabaseConfig{
		Driver:      "postgres",
		DSN:         dsn,
		MaxConns:    4,
		AutoMigrate: true,
	}, logger.NewNoopLogger())
	require.NoError(t, err)
	defer conn.Close()

	users := NewUserRepository(conn.DB(), logger.NewNoopLogger())
	tasks := NewTaskRepository(conn.DB(), logger.NewNoopLogger())
	maint := NewMaintenanceRepository(conn, logger.NewNoopLogger())

	t.Run("should create user and profile on first sign-in", func(t *testing.T) {
		user, created, err := users.UpsertFromProvider(ctx, googleIdentity())
		require.NoError(t, err)
		assert.True(t, created)

		profile, created, err := users.EnsureProfile(ctx, user)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "Ada Lovelace", profile.DisplayName)

		require.NoError(t, users.SaveIntegrationToken(ctx, &models.IntegrationToken{
			UserID: user.ID, Provider: "google", AccessToken: "a", RefreshToken: "r",
		}))
	})

	t.Run("should store tasks with json columns", func(t *testing.T) {
		task := &models.Task{UserID: "u-1", Title: "Ship", Priority: models.TaskPriorityHigh, Status: models.TaskStatusTodo, Subtasks: []string{"x"}}
		require.NoError(t, tasks.Create(ctx, task))

		got, err := tasks.FindByID(ctx, "u-1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, got.Subtasks)
	})

	t.Run("should clear oauth data and keep tasks", func(t *testing.T) {
		deleted, err := maint.ClearOAuthData(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted["users"])

		stats, err := maint.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats["tasks"])
	})

	health, err := conn.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "postgres", health["driver"])
}

package repository

import (
	"context"

	"github.com/turtacn/dashgate/internal/domain/models"
)

// UserRepository defines the interface for users and their linked provider data.
type UserRepository interface {
	// FindByID retrieves a user by id.
	FindByID(ctx context.Context, id string) (*models.User, error)

	// UpsertFromProvider finds or creates the user and account for a provider
	// identity. Accounts are linked by verified email when the provider account
	// is not known yet.
	UpsertFromProvider(ctx context.Context, identity *models.ProviderIdentity) (*models.User, bool, error)

	// EnsureProfile creates the user's profile if it does not exist and returns it.
	EnsureProfile(ctx context.Context, user *models.User) (*models.UserProfile, bool, error)

	// SaveIntegrationToken upserts the provider token keyed by (user, provider).
	SaveIntegrationToken(ctx context.Context, token *models.IntegrationToken) error
}

// MaintenanceRepository exposes administrative operations on the store.
type MaintenanceRepository interface {
	// Stats counts rows per entity.
	Stats(ctx context.Context) (map[string]int64, error)

	// ClearOAuthData deletes accounts, integration tokens, profiles and users.
	ClearOAuthData(ctx context.Context) (map[string]int64, error)

	// Ping checks database connectivity.
	Ping(ctx context.Context) error
}

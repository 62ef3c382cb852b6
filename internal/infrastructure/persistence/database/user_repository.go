package database

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/repository"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// Profile defaults for first sign-in.
const (
	DefaultProfileTimezone = "UTC"
	emptyJSONObject        = "{}"
)

// UserRepositoryImpl implements UserRepository interface using GORM.
type UserRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewUserRepository creates a new GORM user repository.
func NewUserRepository(db *gorm.DB, log logger.Logger) repository.UserRepository {
	return &UserRepositoryImpl{db: db, logger: log}
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrResourceNotFound("user")
		}
		return nil, errors.ErrDatabase.WithError(err)
	}
	return &user, nil
}

// UpsertFromProvider resolves the user for a provider identity in one transaction:
// a known provider account wins; otherwise the account is linked to the user
// with the same email, or a new user is created. The bool reports a new user.
func (r *UserRepositoryImpl) UpsertFromProvider(ctx context.Context, identity *models.ProviderIdentity) (*models.User, bool, error) {
	var user models.User
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		err := tx.Where("provider = ? AND provider_account_id = ?", identity.Provider, identity.ProviderAccountID).
			First(&account).Error
		switch {
		case err == nil:
			if err := tx.Where("id = ?", account.UserID).First(&user).Error; err != nil {
				return err
			}
			return r.refreshUser(tx, &user, identity)
		case !stderrors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		err = tx.Where("email = ?", identity.Email).First(&user).Error
		switch {
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				ID:    uuid.NewString(),
				Email: identity.Email,
				Name:  identity.Name,
				Image: identity.Picture,
			}
			if identity.EmailVerified {
				now := time.Now()
				user.EmailVerified = &now
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		default:
			if err := r.refreshUser(tx, &user, identity); err != nil {
				return err
			}
		}

		return tx.Create(&models.Account{
			ID:                uuid.NewString(),
			UserID:            user.ID,
			Provider:          identity.Provider,
			ProviderAccountID: identity.ProviderAccountID,
			Scope:             identity.Scope,
		}).Error
	})
	if err != nil {
		r.logger.Error(ctx, "Failed to upsert user from provider", err,
			logger.String("provider", identity.Provider),
		)
		return nil, false, errors.ErrDatabase.WithError(err)
	}

	return &user, created, nil
}

// refreshUser copies the provider's current name and picture onto user.
func (r *UserRepositoryImpl) refreshUser(tx *gorm.DB, user *models.User, identity *models.ProviderIdentity) error {
	updates := map[string]interface{}{}
	if identity.Name != "" && identity.Name != user.Name {
		updates["name"] = identity.Name
		user.Name = identity.Name
	}
	if identity.Picture != "" && identity.Picture != user.Image {
		updates["image"] = identity.Picture
		user.Image = identity.Picture
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(user).Updates(updates).Error
}

// EnsureProfile returns the user's profile, creating it on first sign-in.
// Concurrent first sign-ins are resolved by the unique user_id index.
func (r *UserRepositoryImpl) EnsureProfile(ctx context.Context, user *models.User) (*models.UserProfile, bool, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		return &profile, false, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, errors.ErrDatabase.WithError(err)
	}

	profile = models.UserProfile{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		DisplayName: models.DisplayNameFor(user),
		Timezone:    DefaultProfileTimezone,
		WorkHours:   emptyJSONObject,
		Preferences: emptyJSONObject,
	}
	if err := r.db.WithContext(ctx).Create(&profile).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.UserProfile
			if err := r.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&existing).Error; err == nil {
				return &existing, false, nil
			}
		}
		r.logger.Error(ctx, "Failed to create user profile", err, logger.String("user_id", user.ID))
		return nil, false, errors.ErrDatabase.WithError(err)
	}

	r.logger.Info(ctx, "User profile created", logger.String("user_id", user.ID))
	return &profile, true, nil
}

// SaveIntegrationToken upserts on (user_id, provider). An empty refresh token
// keeps the stored one, since providers only return it on first consent.
func (r *UserRepositoryImpl) SaveIntegrationToken(ctx context.Context, token *models.IntegrationToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	updateColumns := []string{"access_token", "expiry", "updated_at"}
	if token.RefreshToken != "" {
		updateColumns = append(updateColumns, "refresh_token")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(token).Error
	if err != nil {
		r.logger.Error(ctx, "Integration token storage failed", err,
			logger.String("user_id", token.UserID),
			logger.String("provider", token.Provider),
		)
		return errors.ErrDatabase.WithError(err)
	}
	return nil
}

package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/repository"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// entity pairs a table label with its model.
type entity struct {
	name  string
	model interface{}
}

// oauthEntities are cleared in dependency order.
var oauthEntities = []entity{
	{"accounts", &models.Account{}},
	{"integration_tokens", &models.IntegrationToken{}},
	{"user_profiles", &models.UserProfile{}},
	{"users", &models.User{}},
}

var countedEntities = append(append([]entity{}, oauthEntities...),
	entity{"tasks", &models.Task{}},
	entity{"security_events", &models.SecurityEvent{}},
)

// MaintenanceRepositoryImpl implements administrative operations.
type MaintenanceRepositoryImpl struct {
	conn   *DBConnection
	logger logger.Logger
}

// NewMaintenanceRepository creates a maintenance repository.
func NewMaintenanceRepository(conn *DBConnection, log logger.Logger) repository.MaintenanceRepository {
	return &MaintenanceRepositoryImpl{conn: conn, logger: log}
}

func (r *MaintenanceRepositoryImpl) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

func (r *MaintenanceRepositoryImpl) Stats(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(countedEntities))
	for _, e := range countedEntities {
		var n int64
		if err := r.conn.DB().WithContext(ctx).Model(e.model).Count(&n).Error; err != nil {
			return nil, errors.ErrDatabase.WithError(err)
		}
		counts[e.name] = n
	}
	return counts, nil
}

// ClearOAuthData deletes every account, integration token, profile and user
// in one transaction and returns the number of deleted rows per table.
func (r *MaintenanceRepositoryImpl) ClearOAuthData(ctx context.Context) (map[string]int64, error) {
	deleted := make(map[string]int64, len(oauthEntities))

	err := r.conn.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range oauthEntities {
			res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(e.model)
			if res.Error != nil {
				return res.Error
			}
			deleted[e.name] = res.RowsAffected
		}
		return nil
	})
	if err != nil {
		r.logger.Error(ctx, "OAuth data cleanup failed", err)
		return nil, errors.ErrDatabase.WithError(err)
	}

	r.logger.Warn(ctx, "OAuth data cleared", logger.Fields{"deleted": deleted})
	return deleted, nil
}

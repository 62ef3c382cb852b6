package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/logger"
)

var _ service.SecurityEventSink = (*GormSink)(nil)

// GormSink stores security events in the security_events table.
type GormSink struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormSink creates and configures a new GormSink.
func NewGormSink(db *gorm.DB, log logger.Logger) *GormSink {
	return &GormSink{db: db, logger: log}
}

func (s *GormSink) Record(ctx context.Context, event models.SecurityEvent) {
	// The row is written even when the request context is already cancelled.
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(&event).Error; err != nil {
		s.logger.Error(ctx, "failed to store security event", err)
	}
}

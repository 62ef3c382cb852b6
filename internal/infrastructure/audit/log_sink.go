// Package audit records security events to logs, Kafka and the database.
package audit

import (
	"context"
	"time"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/internal/infrastructure/monitoring"
	"github.com/turtacn/dashgate/pkg/logger"
)

var (
	_ service.SecurityEventSink = (*LogSink)(nil)
	_ service.SecurityEventSink = MultiSink(nil)
)

// LogSink writes security events as structured log lines and counts them.
// Auth failures and unauthorized access are logged at warn level.
type LogSink struct {
	logger  logger.Logger
	metrics *monitoring.Metrics
}

// NewLogSink creates a LogSink. metrics may be nil.
func NewLogSink(log logger.Logger, metrics *monitoring.Metrics) *LogSink {
	return &LogSink{logger: log, metrics: metrics}
}

func (s *LogSink) Record(ctx context.Context, event models.SecurityEvent) {
	fields := logger.Fields{"security_event": string(event.Type)}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.ClientIP != "" {
		fields["client_ip"] = event.ClientIP
	}
	if event.Path != "" {
		fields["path"] = event.Path
	}
	for k, v := range event.Fields {
		fields[k] = v
	}

	if event.IsWarning() {
		s.logger.Warn(ctx, event.Message, fields)
	} else {
		s.logger.Info(ctx, event.Message, fields)
	}
	s.metrics.RecordSecurityEvent(event.Type)
}

// MultiSink fans an event out to several sinks.
type MultiSink []service.SecurityEventSink

func (m MultiSink) Record(ctx context.Context, event models.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, sink := range m {
		if sink != nil {
			sink.Record(ctx, event)
		}
	}
}

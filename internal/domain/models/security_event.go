package models

import (
	"context"
	"time"

	"github.com/turtacn/dashgate/pkg/constants"
)

// SecurityEvent records an authentication or throttling outcome.
type SecurityEvent struct {
	ID        uint                        `json:"-" gorm:"primaryKey"`
	Type      constants.SecurityEventType `json:"security_event" gorm:"size:32;index"`
	Message   string                      `json:"message"`
	RequestID string                      `json:"request_id,omitempty" gorm:"size:36"`
	UserID    string                      `json:"user_id,omitempty" gorm:"size:36;index"`
	ClientIP  string                      `json:"client_ip,omitempty" gorm:"size:64"`
	Path      string                      `json:"path,omitempty"`
	Fields    map[string]interface{}      `json:"fields,omitempty" gorm:"serializer:json"`
	Timestamp time.Time                   `json:"timestamp" gorm:"index"`
}

// IsWarning reports whether the event is logged at warn level.
func (e SecurityEvent) IsWarning() bool {
	return e.Type == constants.SecurityEventAuthFailure || e.Type == constants.SecurityEventUnauthorizedAccess
}

// NewSecurityEvent creates an event stamped with the request id and caller
// identity stored in ctx, when present.
func NewSecurityEvent(ctx context.Context, eventType constants.SecurityEventType, message string) SecurityEvent {
	event := SecurityEvent{Type: eventType, Message: message, Timestamp: time.Now().UTC()}
	if id, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
		event.RequestID = id
	}
	if identity, ok := ctx.Value(constants.ContextKeyIdentity).(CallerIdentity); ok {
		event.UserID = identity.SubjectID
		event.ClientIP = identity.SourceAddress
	}
	return event
}

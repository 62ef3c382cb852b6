// Package logger provides the structured logging abstraction used across dashgate.
// The concrete implementation lives in internal/infrastructure/monitoring (zap).
package logger

import (
	"context"
	"strings"
	"time"
)

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]interface{}

// Logger defines the interface for structured logging.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields creates a child logger that always carries fields.
	WithFields(fields Fields) Logger

	// ForContext returns the request-scoped logger stored in ctx, or the receiver.
	ForContext(ctx context.Context) Logger
}

// String creates a single-key Fields value.
func String(key, value string) Fields {
	return Fields{key: value}
}

// Int creates a single-key Fields value.
func Int(key string, value int) Fields {
	return Fields{key: value}
}

// Int64 creates a single-key Fields value.
func Int64(key string, value int64) Fields {
	return Fields{key: value}
}

// Bool creates a single-key Fields value.
func Bool(key string, value bool) Fields {
	return Fields{key: value}
}

// Duration creates a single-key Fields value rendered as a string.
func Duration(key string, value time.Duration) Fields {
	return Fields{key: value.String()}
}

// Err creates an error field.
func Err(err error) Fields {
	if err == nil {
		return Fields{"error": nil}
	}
	return Fields{"error": err.Error()}
}

// sensitiveKeys lists substrings of field keys whose values are never logged.
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"key",
	"authorization",
	"cookie",
}

// Redacted is the replacement value for sensitive fields.
const Redacted = "[REDACTED]"

// Sanitize returns a copy of fields with sensitive values redacted.
// Nested maps and slices are walked recursively.
func Sanitize(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = sanitizeValue(k, v)
	}
	return out
}

func sanitizeValue(key string, value interface{}) interface{} {
	if IsSensitiveKey(key) {
		return Redacted
	}
	switch v := value.(type) {
	case Fields:
		return Sanitize(v)
	case map[string]interface{}:
		return map[string]interface{}(Sanitize(Fields(v)))
	case []interface{}:
		res := make([]interface{}, len(v))
		for i, item := range v {
			res[i] = sanitizeValue("", item)
		}
		return res
	default:
		return value
	}
}

// IsSensitiveKey reports whether a field key names a credential.
// Trace identifiers are explicitly allowed.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if lower == "" || lower == "request_id" || lower == "trace_id" || lower == "bucket_key" {
		return false
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

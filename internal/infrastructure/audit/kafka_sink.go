package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/logger"
)

var _ service.SecurityEventSink = (*KafkaSink)(nil)

// SignatureHeader carries the HMAC-SHA256 of the message value.
const SignatureHeader = "x-dashgate-signature"

// messageWriter is the subset of *kafka.Writer used by the sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes security events to a Kafka topic for downstream SIEM
// consumers. Writes are asynchronous; delivery errors are only logged.
type KafkaSink struct {
	writer     messageWriter
	signingKey []byte
	logger     logger.Logger
}

// NewKafkaSink creates a sink writing to cfg.Topic.
func NewKafkaSink(cfg *config.KafkaConfig, log logger.Logger) *KafkaSink {
	log = log.WithFields(logger.Fields{"component": "KafkaSink"})
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error(context.Background(), "failed to deliver security events", err, logger.Int("count", len(messages)))
			}
		},
	}
	return newKafkaSink(writer, cfg.SigningKey, log)
}

func newKafkaSink(w messageWriter, signingKey string, log logger.Logger) *KafkaSink {
	s := &KafkaSink{writer: w, logger: log}
	if signingKey != "" {
		s.signingKey = []byte(signingKey)
	}
	return s
}

// Record publishes the event keyed by user id, or client address for anonymous callers.
func (s *KafkaSink) Record(ctx context.Context, event models.SecurityEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error(ctx, "failed to marshal security event", err)
		return
	}

	key := event.UserID
	if key == "" {
		key = event.ClientIP
	}

	msg := kafka.Message{Key: []byte(key), Value: value, Time: event.Timestamp}
	if s.signingKey != nil {
		msg.Headers = append(msg.Headers, kafka.Header{Key: SignatureHeader, Value: []byte(Sign(value, s.signingKey))})
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Error(ctx, "failed to write message to Kafka", err)
	}
}

// Close flushes pending messages and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Sign returns the base64 HMAC-SHA256 of payload.
func Sign(payload, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(payload)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/config"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

const (
	// AlertRaisedEvent is the event type carried in every alert message
	AlertRaisedEvent   = "fraud.alert.raised"
	alertSchemaVersion = 1
)

var _ fraud.AlertPublisher = (*KafkaAlertPublisher)(nil)

// AlertEnvelope is the JSON payload written to the alert topic
type AlertEnvelope struct {
	EventID    uuid.UUID   `json:"event_id"`
	EventType  string      `json:"event_type"`
	Version    int         `json:"version"`
	OccurredAt time.Time   `json:"occurred_at"`
	Alert      *risk.Alert `json:"alert"`
}

// MessageWriter is the part of kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAlertPublisher publishes fraud alerts keyed by tenant so each
// tenant's alerts stay ordered within a partition.
type KafkaAlertPublisher struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
	now    func() time.Time
}

// NewKafkaAlertPublisher creates a publisher writing to cfg.AlertTopic
func NewKafkaAlertPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaAlertPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.AlertTopic == "" {
		return nil, fmt.Errorf("kafka alert topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AlertTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Lz4,
	}

	logger.Info("kafka alert publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.AlertTopic))

	return NewKafkaAlertPublisherWithWriter(w, cfg.AlertTopic, logger), nil
}

// NewKafkaAlertPublisherWithWriter wraps an existing writer
func NewKafkaAlertPublisherWithWriter(w MessageWriter, topic string, logger *zap.Logger) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{
		writer: w,
		topic:  topic,
		logger: logger,
		now:    time.Now,
	}
}

// PublishAlert writes one alert event. The trace context of ctx travels in
// the message headers.
func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, alert *risk.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}

	ctx, span := telemetry.StartMessagingSpan(ctx, "kafka", p.topic)
	defer span.End()

	envelope := AlertEnvelope{
		EventID:    uuid.New(),
		EventType:  AlertRaisedEvent,
		Version:    alertSchemaVersion,
		OccurredAt: p.now().UTC(),
		Alert:      alert,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	carrier := headerCarrier{
		{Key: "event_type", Value: []byte(AlertRaisedEvent)},
		{Key: "tenant_id", Value: []byte(alert.TenantID.String())},
	}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := kafka.Message{
		Key:     []byte(alert.TenantID.String()),
		Value:   value,
		Headers: carrier,
		Time:    envelope.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		telemetry.WithSpanError(span, err)
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}

	p.logger.Debug("fraud alert published",
		zap.String("alert_id", alert.ID.String()),
		zap.String("event_id", envelope.EventID.String()),
		zap.String("risk_level", string(alert.RiskLevel)))
	return nil
}

// PingBrokers succeeds when any broker accepts a connection
func PingBrokers(ctx context.Context, brokers []string) error {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	if lastErr == nil {
		return fmt.Errorf("no kafka brokers configured")
	}
	return fmt.Errorf("kafka brokers unreachable: %w", lastErr)
}

// Close flushes pending writes
func (p *KafkaAlertPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka headers to the otel TextMapCarrier interface
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// Package events publishes domain events (membership decisions, moderation
// actions, published posts) for downstream consumers. Events are keyed by
// community so a consumer sees each community's events in order.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/community-hub/community-hub/internal/config"
	"github.com/segmentio/kafka-go"
)

// Event types
const (
	ApplicationApproved = "application.approved"
	ApplicationRejected = "application.rejected"
	ApplicationRevoked  = "application.revoked"
	MemberRemoved       = "member.removed"
	MemberLeft          = "member.left"
	MemberRoleChanged   = "member.role_changed"
	OwnershipTransfered = "community.ownership_transferred"
	CommunityCreated    = "community.created"
	ProfileMuted        = "profile.muted"
	ProfileUnmuted      = "profile.unmuted"
	PostPublished       = "post.published"
	ExportCompleted     = "export.completed"
)

// Event is a single domain event
type Event struct {
	Type        string                 `json:"type"`
	CommunityID string                 `json:"community_id"`
	ActorID     string                 `json:"actor_id,omitempty"`
	SubjectID   string                 `json:"subject_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous producer for cfg.Topic
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func encode(e Event) (kafka.Message, error) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.CommunityID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

// Publish writes e and waits for the brokers to acknowledge it
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := encode(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// LogPublisher records events in the application log only
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "domain event",
		"type", e.Type,
		"community_id", e.CommunityID,
		"actor_id", e.ActorID,
		"subject_id", e.SubjectID)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// New returns a Kafka publisher when events are enabled, a log publisher otherwise
func New(cfg config.EventsConfig) Publisher {
	if cfg.Enabled && len(cfg.Brokers) > 0 {
		slog.Info("publishing domain events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
		return NewKafkaPublisher(cfg)
	}
	return NewLogPublisher(nil)
}

package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yes-simulation/accounts/internal/domain"
	pkgkafka "github.com/yes-simulation/accounts/pkg/kafka"
	"github.com/yes-simulation/accounts/pkg/logger"
)

// Kafka topic for account domain events.
const TopicUserRegistered = "accounts.user.registered"

const (
	EventTypeUserRegistered = "user.registered"
	AggregateTypeUser       = "user"
	SourceAccountsService   = "accounts-service"
)

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}

// publisher is the part of *pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes account domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the accounts service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishUserRegistered publishes a user.registered event keyed by username.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{Username: user.Username, RegisteredAt: user.CreatedAt}

	ev, err := pkgkafka.NewEvent(EventTypeUserRegistered, user.Username, AggregateTypeUser, SourceAccountsService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}
	ev.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicUserRegistered, ev); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("username", user.Username),
		slog.String("event_id", ev.EventID),
	)
	return nil
}

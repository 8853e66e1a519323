// Package events provides the infrastructure side of domain event delivery.
package events

import (
	"context"

	"bookkeeper-backend/application/ports"
	domainevents "bookkeeper-backend/domain/events"

	"go.uber.org/zap"
)

// LoggingPublisher writes every domain event to the structured log. It is the
// default subscriber wiring; a message broker can replace it without touching
// the repositories.
type LoggingPublisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*LoggingPublisher)(nil)

// NewLoggingPublisher creates a LoggingPublisher.
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

// Publish implements ports.EventPublisher.
func (p *LoggingPublisher) Publish(ctx context.Context, event domainevents.DomainEvent) error {
	p.logger.Info("domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
	)
	return nil
}

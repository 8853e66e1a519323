package ports

import (
	"context"

	"bookkeeper-backend/domain/events"
)

// EventPublisher receives domain events drained from an entity after its
// write succeeded. Publication is deliberately not atomic with the write: a
// crash in between loses the notification, never the entity. Link-record
// reconciliation tolerates that gap by re-deriving state on the next save.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// NoopEventPublisher discards events. Used where no subscriber is wired.
type NoopEventPublisher struct{}

// Publish implements EventPublisher.
func (NoopEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return nil
}

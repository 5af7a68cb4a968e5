package services

import (
	"context"

	"ledger/internal/amqp"
	applog "ledger/internal/log"
)

// EventPublisher delivers ledger change notifications. A nil publisher
// disables the feed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt *amqp.LedgerEvent) error
}

// publish emits evt and never fails the caller: the write it describes has
// already been committed.
func publish(ctx context.Context, p EventPublisher, evt *amqp.LedgerEvent) {
	logger := applog.FromContext(ctx)
	if p == nil {
		logger.DebugContext(ctx, "AMQP client not available, skipping ledger event", "type", evt.Type)
		return
	}
	if err := p.PublishEvent(ctx, evt); err != nil {
		fields := applog.NewFields().
			WithOperation(applog.OpPublish).
			WithErrorType(applog.ErrorTypeNetwork).
			WithError(err)
		fields["type"] = evt.Type
		fields["entity_id"] = evt.EntityID
		logger.WithComponent(applog.ComponentAMQP).WarnContext(ctx, "Failed to publish ledger event", fields.ToSlice()...)
	}
}

package modules

import (
	"context"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/pkg/logger"
)

// auditStore persists change notifications. Nil with the file directory.
type auditStore interface {
	Append(ctx context.Context, e *domain.DomainEvent) error
}

// registerAuditObservers writes every change notification to the audit log
// stream and, when store is set, to the audit table.
func registerAuditObservers(d *domain.EventDispatcher, store auditStore) {
	audit := logger.Named("audit")
	record := func(ctx context.Context, e *domain.DomainEvent) error {
		audit.Info("Domain event",
			zap.String("event_id", e.EventID),
			zap.String("event_type", string(e.EventType)),
			zap.String("aggregate_type", e.AggregateType),
			zap.String("aggregate_id", e.AggregateID),
			zap.String("actor", e.CreatedBy),
			zap.ByteString("payload", e.Payload),
			zap.Time("created_at", e.CreatedAt),
		)
		if store == nil {
			return nil
		}
		return store.Append(ctx, e)
	}
	d.Register(domain.EventEntitiesSynced, record)
	d.Register(domain.EventClusterTagsChanged, record)
}

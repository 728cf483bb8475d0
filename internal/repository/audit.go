package repository

import (
	"context"
	"fmt"

	"kc-steward.io/steward/internal/domain"
)

// AuditRepository appends change notifications to audit_events.
// Audit rows are compliance records: there is no update or delete.
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append stores one event. Replaying the same event ID is a no-op.
func (r *AuditRepository) Append(ctx context.Context, e *domain.DomainEvent) error {
	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_events (event_id, event_type, aggregate_type, aggregate_id, payload, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, string(e.EventType), e.AggregateType, e.AggregateID, payload, e.CreatedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event %s: %w", e.EventID, err)
	}
	return nil
}

// Recent returns the newest events first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]domain.DomainEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT event_id::text, event_type, aggregate_type, aggregate_id, payload, created_by, created_at
		FROM audit_events
		ORDER BY created_at DESC, event_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []domain.DomainEvent
	for rows.Next() {
		var (
			e         domain.DomainEvent
			eventType string
		)
		if err := rows.Scan(&e.EventID, &eventType, &e.AggregateType, &e.AggregateID, &e.Payload, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.EventType = domain.EventType(eventType)
		out = append(out, e)
	}
	return out, rows.Err()
}

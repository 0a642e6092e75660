package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "govdash/pkg/platform/audit"
	txcontext "govdash/pkg/platform/tx"
)

// Store implements audit.Store and audit.Reader over the audit_events table.
// Appends join the caller's transaction when one is present in the context.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Use(ctx, s.db)
}

// Append inserts an audit event. Duplicate IDs are ignored so redelivered
// events stay idempotent.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := event.ID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, actor_id, actor_role, action,
			entity_type, entity_id, outcome, reason,
			request_id, client_ip, client
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.ActorID,
		event.ActorRole,
		event.Action,
		event.EntityType,
		event.EntityID,
		string(event.Outcome),
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.Client,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail of one entity, oldest first.
func (s *Store) ListByEntity(ctx context.Context, ref audit.EntityRef) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, actor_id, actor_role, action,
			   entity_type, entity_id, outcome, reason,
			   request_id, client_ip, client
		FROM audit_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			outcome  string
		)
		if err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&event.ActorID,
			&event.ActorRole,
			&event.Action,
			&event.EntityType,
			&event.EntityID,
			&outcome,
			&event.Reason,
			&event.RequestID,
			&event.ClientIP,
			&event.Client,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Outcome = audit.Outcome(outcome)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

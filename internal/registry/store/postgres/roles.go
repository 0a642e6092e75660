package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"govdash/pkg/domain"
)

func (s *PostgresStore) RoleOf(ctx context.Context, actorID domain.ActorID) (domain.Role, error) {
	var role string
	err := s.q(ctx).QueryRowContext(ctx, `SELECT role FROM actor_roles WHERE actor_id = $1`, uuid.UUID(actorID)).Scan(&role)
	if err != nil {
		return domain.RoleAnonymous, translate(err, "role of "+actorID.String())
	}
	return domain.Role(role), nil
}

func (s *PostgresStore) SetRole(ctx context.Context, actorID domain.ActorID, role domain.Role, now time.Time) error {
	query := `INSERT INTO actor_roles (actor_id, role, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (actor_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`
	_, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(actorID), string(role), now)
	return translate(err, "set role")
}

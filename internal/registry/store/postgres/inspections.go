package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

// Issues are read back through to_json so scanning does not depend on the
// driver's array representation.
const inspectionColumns = `id, shop_id, inspector_id, type, status, scheduled_at,
	started_at, completed_at, score, to_json(issues), reason, created_at, updated_at`

func scanInspection(row rowScanner) (*models.Inspection, error) {
	var (
		insp                    models.Inspection
		id, shopID, inspectorID uuid.UUID
		inspType, status        string
		startedAt, completedAt  sql.NullTime
		score                   sql.NullInt64
		issues                  []byte
	)
	if err := row.Scan(&id, &shopID, &inspectorID, &inspType, &status, &insp.ScheduledAt,
		&startedAt, &completedAt, &score, &issues, &insp.Reason, &insp.CreatedAt, &insp.UpdatedAt); err != nil {
		return nil, err
	}
	insp.ID = domain.InspectionID(id)
	insp.ShopID = domain.ShopID(shopID)
	insp.InspectorID = domain.ActorID(inspectorID)
	insp.Type = models.InspectionType(inspType)
	insp.Status = models.InspectionStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		insp.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		insp.CompletedAt = &t
	}
	if score.Valid {
		v := int(score.Int64)
		insp.Score = &v
	}
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &insp.Issues); err != nil {
			return nil, fmt.Errorf("decode issues: %w", err)
		}
	}
	return &insp, nil
}

func nullScore(score *int) sql.NullInt64 {
	if score == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*score), Valid: true}
}

func issuesArray(issues []string) any {
	if issues == nil {
		issues = []string{}
	}
	return pq.Array(issues)
}

func (s *PostgresStore) CreateInspection(ctx context.Context, insp *models.Inspection) error {
	query := `INSERT INTO inspections (
			id, shop_id, inspector_id, type, status, scheduled_at,
			started_at, completed_at, score, issues, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(insp.ID), uuid.UUID(insp.ShopID), uuid.UUID(insp.InspectorID),
		string(insp.Type), string(insp.Status), insp.ScheduledAt,
		nullTime(insp.StartedAt), nullTime(insp.CompletedAt), nullScore(insp.Score),
		issuesArray(insp.Issues), insp.Reason, insp.CreatedAt, insp.UpdatedAt,
	)
	return translate(err, "insert inspection")
}

func (s *PostgresStore) FindInspection(ctx context.Context, id domain.InspectionID) (*models.Inspection, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, uuid.UUID(id))
	insp, err := scanInspection(row)
	if err != nil {
		return nil, translate(err, "find inspection "+id.String())
	}
	return insp, nil
}

func (s *PostgresStore) UpdateInspection(ctx context.Context, insp *models.Inspection) error {
	query := `
		UPDATE inspections SET
			status = $2, started_at = $3, completed_at = $4, score = $5,
			issues = $6, reason = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(insp.ID), string(insp.Status), nullTime(insp.StartedAt), nullTime(insp.CompletedAt),
		nullScore(insp.Score), issuesArray(insp.Issues), insp.Reason, insp.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update inspection")
	}
	return expectOneRow(res, "update inspection "+insp.ID.String())
}

func (s *PostgresStore) ListCompletedInspections(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections
		WHERE shop_id = $1 AND status = 'completed' AND score IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT $2`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(shopID), limit)
	if err != nil {
		return nil, translate(err, "list completed inspections")
	}
	defer rows.Close()

	var out []*models.Inspection
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspection: %w", err)
		}
		out = append(out, insp)
	}
	return out, rows.Err()
}

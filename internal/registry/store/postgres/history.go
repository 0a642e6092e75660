package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

// errNoHistory lets LatestHistory reuse translate's not-found mapping.
var errNoHistory = sql.ErrNoRows

func (s *PostgresStore) AppendHistory(ctx context.Context, record *models.HistoryRecord) error {
	query := `INSERT INTO compliance_history
			(shop_id, score, status, documents, inspections, reviews, history, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ShopID), record.Score, string(record.Status),
		record.Factors.Documents, record.Factors.Inspections, record.Factors.Reviews, record.Factors.History,
		record.RecordedAt,
	)
	return translate(err, "append compliance history")
}

func (s *PostgresStore) LatestHistory(ctx context.Context, shopID domain.ShopID) (*models.HistoryRecord, error) {
	records, err := s.ListHistory(ctx, shopID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, translate(errNoHistory, "latest history for shop "+shopID.String())
	}
	return records[0], nil
}

// ListHistory returns up to limit records, newest first. The serial id breaks
// ties between records written within the same timestamp.
func (s *PostgresStore) ListHistory(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.HistoryRecord, error) {
	query := `SELECT shop_id, score, status, documents, inspections, reviews, history, recorded_at
		FROM compliance_history WHERE shop_id = $1
		ORDER BY id DESC
		LIMIT $2`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(shopID), limit)
	if err != nil {
		return nil, translate(err, "list compliance history")
	}
	defer rows.Close()

	var out []*models.HistoryRecord
	for rows.Next() {
		var (
			r      models.HistoryRecord
			shop   uuid.UUID
			status string
		)
		if err := rows.Scan(&shop, &r.Score, &status,
			&r.Factors.Documents, &r.Factors.Inspections, &r.Factors.Reviews, &r.Factors.History,
			&r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan compliance history: %w", err)
		}
		r.ShopID = domain.ShopID(shop)
		r.Status = models.ComplianceStatus(status)
		out = append(out, &r)
	}
	return out, rows.Err()
}

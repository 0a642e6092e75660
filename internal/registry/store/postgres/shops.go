package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
	"govdash/pkg/platform/sentinel"
)

const shopColumns = `id, owner_id, name, slug, address, category, status,
	compliance_score, compliance_status, status_reason, suspended_by,
	suspended_until, suspension_notified, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShop(row rowScanner) (*models.Shop, error) {
	var (
		shop        models.Shop
		id, ownerID uuid.UUID
		suspendedBy uuid.NullUUID
		until       sql.NullTime
		status      string
		compliance  string
	)
	if err := row.Scan(&id, &ownerID, &shop.Name, &shop.Slug, &shop.Address, &shop.Category,
		&status, &shop.ComplianceScore, &compliance, &shop.StatusReason, &suspendedBy,
		&until, &shop.SuspensionNotified, &shop.Version, &shop.CreatedAt, &shop.UpdatedAt); err != nil {
		return nil, err
	}
	shop.ID = domain.ShopID(id)
	shop.OwnerID = domain.ActorID(ownerID)
	shop.Status = models.ShopStatus(status)
	shop.ComplianceStatus = models.ComplianceStatus(compliance)
	if suspendedBy.Valid {
		by := domain.ActorID(suspendedBy.UUID)
		shop.SuspendedBy = &by
	}
	if until.Valid {
		t := until.Time
		shop.SuspendedUntil = &t
	}
	return &shop, nil
}

func nullActor(id *domain.ActorID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*id), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *PostgresStore) CreateShop(ctx context.Context, shop *models.Shop) error {
	query := `INSERT INTO shops (` + shopColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(shop.ID), uuid.UUID(shop.OwnerID), shop.Name, shop.Slug, shop.Address, shop.Category,
		string(shop.Status), shop.ComplianceScore, string(shop.ComplianceStatus), shop.StatusReason,
		nullActor(shop.SuspendedBy), nullTime(shop.SuspendedUntil), shop.SuspensionNotified,
		shop.Version, shop.CreatedAt, shop.UpdatedAt,
	)
	return translate(err, "insert shop")
}

func (s *PostgresStore) FindShop(ctx context.Context, id domain.ShopID) (*models.Shop, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, uuid.UUID(id))
	shop, err := scanShop(row)
	if err != nil {
		return nil, translate(err, "find shop "+id.String())
	}
	return shop, nil
}

func (s *PostgresStore) UpdateShop(ctx context.Context, shop *models.Shop, expectedVersion int64) error {
	query := `
		UPDATE shops SET
			name = $2, address = $3, category = $4, status = $5,
			compliance_score = $6, compliance_status = $7, status_reason = $8,
			suspended_by = $9, suspended_until = $10, suspension_notified = $11,
			version = $12, updated_at = $13
		WHERE id = $1 AND version = $14
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(shop.ID), shop.Name, shop.Address, shop.Category, string(shop.Status),
		shop.ComplianceScore, string(shop.ComplianceStatus), shop.StatusReason,
		nullActor(shop.SuspendedBy), nullTime(shop.SuspendedUntil), shop.SuspensionNotified,
		shop.Version, shop.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return translate(err, "update shop")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	if n == 0 {
		// Distinguish a missing shop from a lost race.
		if _, findErr := s.FindShop(ctx, shop.ID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("update shop %s: %w", shop.ID, sentinel.ErrStaleVersion)
	}
	return nil
}

// DeleteShop relies on ON DELETE CASCADE for dependent rows.
func (s *PostgresStore) DeleteShop(ctx context.Context, id domain.ShopID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM shops WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return translate(err, "delete shop")
	}
	return expectOneRow(res, "delete shop "+id.String())
}

func (s *PostgresStore) ListSuspensionsEnded(ctx context.Context, now time.Time) ([]*models.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops
		WHERE status = 'suspended' AND NOT suspension_notified AND suspended_until < $1
		ORDER BY suspended_until`
	rows, err := s.q(ctx).QueryContext(ctx, query, now)
	if err != nil {
		return nil, translate(err, "list ended suspensions")
	}
	defer rows.Close()

	var out []*models.Shop
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		out = append(out, shop)
	}
	return out, rows.Err()
}

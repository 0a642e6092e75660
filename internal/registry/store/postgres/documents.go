package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

const documentColumns = `id, shop_id, type, status, file_ref, reason, expires_at,
	warning_sent, reviewed_by, created_at, updated_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc        models.Document
		id, shopID uuid.UUID
		docType    string
		status     string
		expiresAt  sql.NullTime
		reviewedBy uuid.NullUUID
	)
	if err := row.Scan(&id, &shopID, &docType, &status, &doc.FileRef, &doc.Reason, &expiresAt,
		&doc.WarningSent, &reviewedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.ID = domain.DocumentID(id)
	doc.ShopID = domain.ShopID(shopID)
	doc.Type = models.DocumentType(docType)
	doc.Status = models.DocumentStatus(status)
	if expiresAt.Valid {
		t := expiresAt.Time
		doc.ExpiresAt = &t
	}
	if reviewedBy.Valid {
		by := domain.ActorID(reviewedBy.UUID)
		doc.ReviewedBy = &by
	}
	return &doc, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(doc.ID), uuid.UUID(doc.ShopID), string(doc.Type), string(doc.Status),
		doc.FileRef, doc.Reason, nullTime(doc.ExpiresAt), doc.WarningSent,
		nullActor(doc.ReviewedBy), doc.CreatedAt, doc.UpdatedAt,
	)
	return translate(err, "insert document")
}

func (s *PostgresStore) FindDocument(ctx context.Context, id domain.DocumentID) (*models.Document, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, uuid.UUID(id))
	doc, err := scanDocument(row)
	if err != nil {
		return nil, translate(err, "find document "+id.String())
	}
	return doc, nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents SET
			status = $2, reason = $3, expires_at = $4, warning_sent = $5,
			reviewed_by = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(doc.ID), string(doc.Status), doc.Reason, nullTime(doc.ExpiresAt),
		doc.WarningSent, nullActor(doc.ReviewedBy), doc.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update document")
	}
	return expectOneRow(res, "update document "+doc.ID.String())
}

func (s *PostgresStore) ListDocumentsByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Document, error) {
	return s.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE shop_id = $1 ORDER BY created_at`,
		uuid.UUID(shopID))
}

func (s *PostgresStore) ListDocumentsExpiringBefore(ctx context.Context, t time.Time) ([]*models.Document, error) {
	return s.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE status IN ('pending', 'approved') AND expires_at < $1
		 ORDER BY expires_at`,
		t)
}

func (s *PostgresStore) listDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list documents")
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

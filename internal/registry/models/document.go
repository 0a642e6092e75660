package models

import (
	"time"

	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

type DocumentType string

const (
	DocumentBusinessLicense       DocumentType = "business_license"
	DocumentTaxClearance          DocumentType = "tax_clearance"
	DocumentHealthCertificate     DocumentType = "health_certificate"
	DocumentFireSafetyCertificate DocumentType = "fire_safety_certificate"
	DocumentZoningPermit          DocumentType = "zoning_permit"
	DocumentIDDocument            DocumentType = "id_document"
	DocumentInsuranceCertificate  DocumentType = "insurance_certificate"
)

var documentTypes = map[DocumentType]struct{}{
	DocumentBusinessLicense:       {},
	DocumentTaxClearance:          {},
	DocumentHealthCertificate:     {},
	DocumentFireSafetyCertificate: {},
	DocumentZoningPermit:          {},
	DocumentIDDocument:            {},
	DocumentInsuranceCertificate:  {},
}

func (t DocumentType) IsValid() bool {
	_, ok := documentTypes[t]
	return ok
}

// ParseDocumentTypes validates a configured list of document types.
func ParseDocumentTypes(raw []string) ([]DocumentType, error) {
	out := make([]DocumentType, 0, len(raw))
	for _, r := range raw {
		t := DocumentType(r)
		if !t.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown document type: "+r)
		}
		out = append(out, t)
	}
	return out, nil
}

type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
	DocumentStatusExpired  DocumentStatus = "expired"
)

// Document is a compliance document uploaded by a shop owner. The file itself
// lives in external object storage; FileRef points at it.
type Document struct {
	ID          domain.DocumentID `json:"id"`
	ShopID      domain.ShopID     `json:"shop_id"`
	Type        DocumentType      `json:"type"`
	Status      DocumentStatus    `json:"status"`
	FileRef     string            `json:"file_ref,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	WarningSent bool              `json:"-"`
	ReviewedBy  *domain.ActorID   `json:"reviewed_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// EffectiveStatus treats a non-rejected document past its expiry as expired,
// whether or not the sweep has persisted that yet.
func (d *Document) EffectiveStatus(now time.Time) DocumentStatus {
	if d.Status != DocumentStatusRejected && d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
		return DocumentStatusExpired
	}
	return d.Status
}

// IsValidAt reports whether the document counts toward compliance at now.
func (d *Document) IsValidAt(now time.Time) bool {
	return d.EffectiveStatus(now) == DocumentStatusApproved
}

func (d *Document) Clone() *Document {
	c := *d
	if d.ExpiresAt != nil {
		v := *d.ExpiresAt
		c.ExpiresAt = &v
	}
	if d.ReviewedBy != nil {
		v := *d.ReviewedBy
		c.ReviewedBy = &v
	}
	return &c
}

func NewDocument(docID domain.DocumentID, shopID domain.ShopID, docType DocumentType, fileRef string, expiresAt *time.Time, now time.Time) (*Document, error) {
	if !docType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown document type")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document expiry must be in the future")
	}
	return &Document{
		ID:        docID,
		ShopID:    shopID,
		Type:      docType,
		Status:    DocumentStatusPending,
		FileRef:   fileRef,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

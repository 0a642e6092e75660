package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

type ShopStatus string

const (
	ShopStatusPending   ShopStatus = "pending"
	ShopStatusApproved  ShopStatus = "approved"
	ShopStatusRejected  ShopStatus = "rejected"
	ShopStatusSuspended ShopStatus = "suspended"
)

type ComplianceStatus string

const (
	ComplianceStatusPending      ComplianceStatus = "pending"
	ComplianceStatusCompliant    ComplianceStatus = "compliant"
	ComplianceStatusWarning      ComplianceStatus = "warning"
	ComplianceStatusNonCompliant ComplianceStatus = "non_compliant"
)

// Shop is the aggregate root of the registry.
//
// Invariants:
//   - ComplianceScore is within [0, 100]
//   - Status changes only through the lifecycle engine
//   - Version increases by one on every committed mutation
type Shop struct {
	ID               domain.ShopID    `json:"id"`
	OwnerID          domain.ActorID   `json:"owner_id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Address          string           `json:"address"`
	Category         string           `json:"category"`
	Status           ShopStatus       `json:"status"`
	ComplianceScore  int              `json:"compliance_score"`
	ComplianceStatus ComplianceStatus `json:"compliance_status"`
	// StatusReason is the reason code of the last rejection or suspension.
	StatusReason string `json:"status_reason,omitempty"`
	// SuspendedBy and SuspendedUntil are set while suspended.
	SuspendedBy        *domain.ActorID `json:"suspended_by,omitempty"`
	SuspendedUntil     *time.Time      `json:"suspended_until,omitempty"`
	SuspensionNotified bool            `json:"-"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (s *Shop) IsApproved() bool {
	return s.Status == ShopStatusApproved
}

// IsPubliclyVisible reports whether anonymous callers may read the shop.
func (s *Shop) IsPubliclyVisible() bool {
	return s.Status == ShopStatusApproved
}

// Touch stamps the mutation time and bumps the version.
func (s *Shop) Touch(now time.Time) {
	s.UpdatedAt = now
	s.Version++
}

// Clone returns a deep copy so stores never share pointers with callers.
func (s *Shop) Clone() *Shop {
	c := *s
	if s.SuspendedBy != nil {
		v := *s.SuspendedBy
		c.SuspendedBy = &v
	}
	if s.SuspendedUntil != nil {
		v := *s.SuspendedUntil
		c.SuspendedUntil = &v
	}
	return &c
}

// NewShop registers a shop in pending state. The slug is derived from the
// name with a short random suffix so similar names stay unique.
func NewShop(shopID domain.ShopID, ownerID domain.ActorID, name, address, category string, now time.Time) (*Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "shop name cannot be empty")
	}
	if len(name) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "shop name must be 200 characters or less")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "shop owner is required")
	}
	return &Shop{
		ID:               shopID,
		OwnerID:          ownerID,
		Name:             name,
		Slug:             slug.Make(name) + "-" + uuid.UUID(shopID).String()[:8],
		Address:          strings.TrimSpace(address),
		Category:         strings.TrimSpace(category),
		Status:           ShopStatusPending,
		ComplianceStatus: ComplianceStatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

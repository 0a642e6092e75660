package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestNewShop(t *testing.T) {
	owner := domain.ActorID(uuid.New())

	t.Run("trims and starts pending", func(t *testing.T) {
		id := domain.NewShopID()
		shop, err := NewShop(id, owner, "  Corner Grocer ", " 1 High St ", "grocery", now)
		require.NoError(t, err)

		assert.Equal(t, "Corner Grocer", shop.Name)
		assert.Equal(t, "1 High St", shop.Address)
		assert.Equal(t, ShopStatusPending, shop.Status)
		assert.Equal(t, ComplianceStatusPending, shop.ComplianceStatus)
		assert.Equal(t, int64(1), shop.Version)
		assert.Equal(t, "corner-grocer-"+uuid.UUID(id).String()[:8], shop.Slug)
		assert.False(t, shop.IsPubliclyVisible())
	})

	tests := []struct {
		name  string
		shop  string
		owner domain.ActorID
	}{
		{name: "blank name", shop: "   ", owner: owner},
		{name: "name too long", shop: strings.Repeat("a", 201), owner: owner},
		{name: "missing owner", shop: "Corner Grocer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShop(domain.NewShopID(), tt.owner, tt.shop, "", "", now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestShop_CloneIsDeep(t *testing.T) {
	until := now.Add(24 * time.Hour)
	by := domain.ActorID(uuid.New())
	shop := &Shop{SuspendedUntil: &until, SuspendedBy: &by}

	c := shop.Clone()
	*c.SuspendedUntil = now
	c.Touch(now)

	assert.Equal(t, until, *shop.SuspendedUntil)
	assert.Equal(t, int64(0), shop.Version)
	assert.Equal(t, int64(1), c.Version)
}

func TestNewDocument(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(90 * 24 * time.Hour)

	_, err := NewDocument(domain.NewDocumentID(), domain.NewShopID(), "passport_photo", "s3://x", nil, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewDocument(domain.NewDocumentID(), domain.NewShopID(), DocumentBusinessLicense, "s3://x", &past, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	doc, err := NewDocument(domain.NewDocumentID(), domain.NewShopID(), DocumentBusinessLicense, "s3://x", &future, now)
	require.NoError(t, err)
	assert.Equal(t, DocumentStatusPending, doc.Status)
}

func TestDocument_EffectiveStatus(t *testing.T) {
	expired := now.Add(-time.Minute)
	valid := now.Add(time.Hour)

	tests := []struct {
		name      string
		status    DocumentStatus
		expiresAt *time.Time
		want      DocumentStatus
	}{
		{name: "approved without expiry", status: DocumentStatusApproved, want: DocumentStatusApproved},
		{name: "approved before expiry", status: DocumentStatusApproved, expiresAt: &valid, want: DocumentStatusApproved},
		{name: "approved past expiry", status: DocumentStatusApproved, expiresAt: &expired, want: DocumentStatusExpired},
		{name: "pending past expiry", status: DocumentStatusPending, expiresAt: &expired, want: DocumentStatusExpired},
		{name: "rejected stays rejected", status: DocumentStatusRejected, expiresAt: &expired, want: DocumentStatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Document{Status: tt.status, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, d.EffectiveStatus(now))
			assert.Equal(t, tt.want == DocumentStatusApproved, d.IsValidAt(now))
		})
	}
}

func TestParseDocumentTypes(t *testing.T) {
	got, err := ParseDocumentTypes([]string{"business_license", "tax_clearance"})
	require.NoError(t, err)
	assert.Equal(t, []DocumentType{DocumentBusinessLicense, DocumentTaxClearance}, got)

	_, err = ParseDocumentTypes([]string{"business_license", "library_card"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNewInspection(t *testing.T) {
	inspector := domain.ActorID(uuid.New())

	_, err := NewInspection(domain.NewInspectionID(), domain.NewShopID(), inspector, "surprise", now, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewInspection(domain.NewInspectionID(), domain.NewShopID(), domain.ActorID(uuid.Nil), InspectionRoutine, now, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewInspection(domain.NewInspectionID(), domain.NewShopID(), inspector, InspectionRoutine, time.Time{}, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	insp, err := NewInspection(domain.NewInspectionID(), domain.NewShopID(), inspector, InspectionFollowUp, now.Add(48*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, InspectionStatusScheduled, insp.Status)
	assert.False(t, insp.IsCompleted())
}

func TestInspection_CloneCopiesIssues(t *testing.T) {
	score := 80
	insp := &Inspection{Score: &score, Issues: []string{"dusty shelves"}}

	c := insp.Clone()
	c.Issues[0] = "clean"
	*c.Score = 10

	assert.Equal(t, "dusty shelves", insp.Issues[0])
	assert.Equal(t, 80, *insp.Score)
}

func TestNewReview(t *testing.T) {
	for _, rating := range []int{0, 6} {
		_, err := NewReview(domain.NewReviewID(), domain.NewShopID(), domain.ActorID(uuid.New()), rating, "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), "rating %d", rating)
	}

	_, err := NewReview(domain.NewReviewID(), domain.NewShopID(), domain.ActorID(uuid.New()), 4, strings.Repeat("x", 2001), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	r, err := NewReview(domain.NewReviewID(), domain.NewShopID(), domain.ActorID(uuid.New()), 5, "  friendly staff ", now)
	require.NoError(t, err)
	assert.Equal(t, "friendly staff", r.Comment)
}

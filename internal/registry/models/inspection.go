package models

import (
	"time"

	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

type InspectionType string

const (
	InspectionRoutine   InspectionType = "routine"
	InspectionComplaint InspectionType = "complaint"
	InspectionFollowUp  InspectionType = "follow_up"
	InspectionRenewal   InspectionType = "renewal"
)

func (t InspectionType) IsValid() bool {
	switch t {
	case InspectionRoutine, InspectionComplaint, InspectionFollowUp, InspectionRenewal:
		return true
	}
	return false
}

type InspectionStatus string

const (
	InspectionStatusScheduled  InspectionStatus = "scheduled"
	InspectionStatusInProgress InspectionStatus = "in_progress"
	InspectionStatusCompleted  InspectionStatus = "completed"
	InspectionStatusCancelled  InspectionStatus = "cancelled"
)

// Inspection is a visit by a government inspector.
//
// Invariants:
//   - Score is set exactly once, on completion, and lies in [0, 100]
//   - InspectorID never changes after scheduling
type Inspection struct {
	ID          domain.InspectionID `json:"id"`
	ShopID      domain.ShopID       `json:"shop_id"`
	InspectorID domain.ActorID      `json:"inspector_id"`
	Type        InspectionType      `json:"type"`
	Status      InspectionStatus    `json:"status"`
	ScheduledAt time.Time           `json:"scheduled_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Score       *int                `json:"score,omitempty"`
	Issues      []string            `json:"issues,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (i *Inspection) IsCompleted() bool {
	return i.Status == InspectionStatusCompleted && i.Score != nil
}

func (i *Inspection) Clone() *Inspection {
	c := *i
	if i.StartedAt != nil {
		v := *i.StartedAt
		c.StartedAt = &v
	}
	if i.CompletedAt != nil {
		v := *i.CompletedAt
		c.CompletedAt = &v
	}
	if i.Score != nil {
		v := *i.Score
		c.Score = &v
	}
	c.Issues = append([]string(nil), i.Issues...)
	return &c
}

func NewInspection(inspectionID domain.InspectionID, shopID domain.ShopID, inspectorID domain.ActorID, inspectionType InspectionType, scheduledAt, now time.Time) (*Inspection, error) {
	if !inspectionType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown inspection type")
	}
	if inspectorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "inspector is required")
	}
	if scheduledAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "scheduled date is required")
	}
	return &Inspection{
		ID:          inspectionID,
		ShopID:      shopID,
		InspectorID: inspectorID,
		Type:        inspectionType,
		Status:      InspectionStatusScheduled,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

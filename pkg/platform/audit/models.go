package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers regulator-facing decisions: approvals,
	// rejections, suspensions, inspection outcomes, document reviews.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denials and abuse signals.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity (reviews, favorites,
	// notifications, recomputes) that can be sampled or kept briefly.
	CategoryOperations EventCategory = "operations"
)

// Outcome is the result of the audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeFailed  Outcome = "failed"
)

// EntityRef points at the entity an action targeted.
type EntityRef struct {
	Type string
	ID   string
}

func (r EntityRef) String() string {
	if r.ID == "" {
		return r.Type
	}
	return r.Type + "/" + r.ID
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         uuid.UUID
	Category   EventCategory
	Timestamp  time.Time
	ActorID    string
	ActorRole  string
	Action     string
	EntityType string
	EntityID   string
	Outcome    Outcome
	// Reason is the matched policy rule on denials, the error code on
	// failures, or a transition reason code on success.
	Reason    string
	RequestID string
	ClientIP  string
	// Client is a compact description of the caller's user agent.
	Client string
}

// Entity returns the reference the event targeted.
func (e Event) Entity() EntityRef {
	return EntityRef{Type: e.EntityType, ID: e.EntityID}
}

type AuditEvent string

const (
	// Shop lifecycle
	EventShopCreated     AuditEvent = "shop.create"
	EventShopApproved    AuditEvent = "shop.approve"
	EventShopRejected    AuditEvent = "shop.reject"
	EventShopSuspended   AuditEvent = "shop.suspend"
	EventShopReinstated  AuditEvent = "shop.reinstate"
	EventShopDeleted     AuditEvent = "shop.delete"
	EventShopRead        AuditEvent = "shop.read"
	EventWarningIssued   AuditEvent = "warning.issue"
	EventShopScoreUpdate AuditEvent = "compliance.recompute"
	EventSuspensionEnded AuditEvent = "shop.suspension_ended"

	// Documents
	EventDocumentCreated  AuditEvent = "document.create"
	EventDocumentApproved AuditEvent = "document.approve"
	EventDocumentRejected AuditEvent = "document.reject"
	EventDocumentExpired  AuditEvent = "document.expire"
	EventDocumentWarned   AuditEvent = "document.warn_expiring"

	// Inspections
	EventInspectionScheduled AuditEvent = "inspection.schedule"
	EventInspectionStarted   AuditEvent = "inspection.start"
	EventInspectionCompleted AuditEvent = "inspection.complete"
	EventInspectionCancelled AuditEvent = "inspection.cancel"

	// Customer activity
	EventReviewCreated   AuditEvent = "review.create"
	EventFavoriteCreated AuditEvent = "favorite.create"

	// Notifications
	EventNotificationSent AuditEvent = "notification.send"

	// Abuse signals
	EventRateLimitExceeded AuditEvent = "rate_limit.exceeded"

	// System administration
	EventRoleSet      AuditEvent = "system.role.set"
	EventSweepRun     AuditEvent = "system.sweep"
	EventSystemNotice AuditEvent = "system.notify"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventShopApproved:        CategoryCompliance,
	EventShopRejected:        CategoryCompliance,
	EventShopSuspended:       CategoryCompliance,
	EventShopReinstated:      CategoryCompliance,
	EventShopDeleted:         CategoryCompliance,
	EventWarningIssued:       CategoryCompliance,
	EventDocumentApproved:    CategoryCompliance,
	EventDocumentRejected:    CategoryCompliance,
	EventDocumentExpired:     CategoryCompliance,
	EventInspectionScheduled: CategoryCompliance,
	EventInspectionCompleted: CategoryCompliance,
	EventInspectionCancelled: CategoryCompliance,
	EventShopScoreUpdate:     CategoryCompliance,
	EventSuspensionEnded:     CategoryCompliance,
	EventDocumentWarned:      CategoryCompliance,

	EventRateLimitExceeded: CategorySecurity,
	EventRoleSet:           CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// CategoryFor derives the category of a recorded event. Denials are always
// security-relevant regardless of the action attempted.
func CategoryFor(action string, outcome Outcome) EventCategory {
	if outcome == OutcomeDenied {
		return CategorySecurity
	}
	return AuditEvent(action).Category()
}

// Store persists audit events. Implementations are append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists the audit trail of a single entity, oldest first.
type Reader interface {
	ListByEntity(ctx context.Context, ref EntityRef) ([]Event, error)
}

// Package domain holds identifier and role primitives shared across modules.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects passing
// a ShopID where a DocumentID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "govdash/pkg/domain-errors"
)

type (
	ActorID        uuid.UUID
	ShopID         uuid.UUID
	DocumentID     uuid.UUID
	InspectionID   uuid.UUID
	ReviewID       uuid.UUID
	FavoriteID     uuid.UUID
	NotificationID uuid.UUID
)

func (id ActorID) String() string        { return uuid.UUID(id).String() }
func (id ShopID) String() string         { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id InspectionID) String() string   { return uuid.UUID(id).String() }
func (id ReviewID) String() string       { return uuid.UUID(id).String() }
func (id FavoriteID) String() string     { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id ActorID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ShopID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id InspectionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReviewID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id FavoriteID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ActorID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ShopID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id InspectionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ReviewID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id FavoriteID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ActorID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ShopID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *InspectionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReviewID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *FavoriteID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *NotificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func NewShopID() ShopID                 { return ShopID(uuid.New()) }
func NewDocumentID() DocumentID         { return DocumentID(uuid.New()) }
func NewInspectionID() InspectionID     { return InspectionID(uuid.New()) }
func NewReviewID() ReviewID             { return ReviewID(uuid.New()) }
func NewFavoriteID() FavoriteID         { return FavoriteID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

// parseUUID enforces that IDs crossing a trust boundary are valid, non-nil UUIDs.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return parsed, nil
}

func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	return ActorID(u), err
}

func ParseShopID(s string) (ShopID, error) {
	u, err := parseUUID(s, "shop id")
	return ShopID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

func ParseInspectionID(s string) (InspectionID, error) {
	u, err := parseUUID(s, "inspection id")
	return InspectionID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification id")
	return NotificationID(u), err
}

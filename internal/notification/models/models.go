package models

import (
	"slices"
	"strings"
	"time"

	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelInApp:
		return true
	}
	return false
}

// ParseChannels validates and de-duplicates a channel list, keeping order.
func ParseChannels(raw []string) ([]Channel, error) {
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one channel is required")
	}
	out := make([]Channel, 0, len(raw))
	for _, r := range raw {
		c := Channel(strings.TrimSpace(r))
		if !c.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown channel: "+r)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

type Type string

const (
	TypeShopApproved        Type = "shop_approved"
	TypeShopRejected        Type = "shop_rejected"
	TypeShopSuspended       Type = "shop_suspended"
	TypeShopReinstated      Type = "shop_reinstated"
	TypeDocumentApproved    Type = "document_approved"
	TypeDocumentRejected    Type = "document_rejected"
	TypeDocumentExpiring    Type = "document_expiring"
	TypeDocumentExpired     Type = "document_expired"
	TypeInspectionScheduled Type = "inspection_scheduled"
	TypeInspectionCompleted Type = "inspection_completed"
	TypeInspectionCancelled Type = "inspection_cancelled"
	TypeComplianceAlert     Type = "compliance_alert"
	TypeWarningIssued       Type = "warning_issued"
	TypeSuspensionEnded     Type = "suspension_ended"
	TypeReviewReceived      Type = "review_received"
	TypeSystem              Type = "system"
)

func (t Type) IsValid() bool {
	_, ok := templates[t]
	return ok
}

// Notification is one message to one recipient over one or more channels.
type Notification struct {
	ID          domain.NotificationID `json:"id"`
	RecipientID domain.ActorID        `json:"recipient_id"`
	Type        Type                  `json:"type"`
	Title       string                `json:"title"`
	Message     string                `json:"message"`
	ShopID      *domain.ShopID        `json:"shop_id,omitempty"`
	Channels    []Channel             `json:"channels"`
	CreatedAt   time.Time             `json:"created_at"`
}

const (
	maxTitleLength   = 200
	maxMessageLength = 4000
)

func NewNotification(id domain.NotificationID, recipient domain.ActorID, typ Type, title, message string, shopID *domain.ShopID, channels []Channel, now time.Time) (*Notification, error) {
	if recipient.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	if !typ.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown notification type: "+string(typ))
	}
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || len(title) > maxTitleLength {
		return nil, dErrors.New(dErrors.CodeValidation, "title must be 1-200 characters")
	}
	if message == "" || len(message) > maxMessageLength {
		return nil, dErrors.New(dErrors.CodeValidation, "message must be 1-4000 characters")
	}
	if len(channels) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one channel is required")
	}
	return &Notification{
		ID:          id,
		RecipientID: recipient,
		Type:        typ,
		Title:       title,
		Message:     message,
		ShopID:      shopID,
		Channels:    channels,
		CreatedAt:   now,
	}, nil
}

type DeliveryStatus string

const (
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliveryInFlight DeliveryStatus = "in_flight"
)

// Log is the delivery record of one (notification, channel) pair.
type Log struct {
	NotificationID domain.NotificationID `json:"notification_id"`
	Channel        Channel               `json:"channel"`
	Status         DeliveryStatus        `json:"status"`
	Attempts       int                   `json:"attempts"`
	LastError      string                `json:"last_error,omitempty"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// ChannelResult is the per-channel outcome reported to callers.
type ChannelResult struct {
	Sent bool `json:"sent"`
	// Skipped marks a channel already delivered by an earlier dispatch, or
	// one another dispatch is delivering right now (Sent is false then).
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

type DispatchResult struct {
	NotificationID domain.NotificationID     `json:"notification_id"`
	Channels       map[Channel]ChannelResult `json:"channel_results"`
}

// Success reports whether every requested channel is delivered.
func (r DispatchResult) Success() bool {
	for _, c := range r.Channels {
		if !c.Sent {
			return false
		}
	}
	return len(r.Channels) > 0
}

package models

import (
	"slices"
	"strings"
	"time"

	"govdash/pkg/domain"
)

// Template is the public title/message pattern of a notification type.
// Placeholders use {name} syntax.
type Template struct {
	Type     Type      `json:"type"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Channels []Channel `json:"channels"`
}

var (
	inAppEmail    = []Channel{ChannelInApp, ChannelEmail}
	inAppEmailSMS = []Channel{ChannelInApp, ChannelEmail, ChannelSMS}
)

var templates = map[Type]Template{
	TypeShopApproved:        {Title: "Shop approved", Message: "{shop} has been approved and is now listed in the registry.", Channels: inAppEmail},
	TypeShopRejected:        {Title: "Shop registration rejected", Message: "{shop} was rejected: {reason}.", Channels: inAppEmail},
	TypeShopSuspended:       {Title: "Shop suspended", Message: "{shop} is suspended until {until}: {reason}.", Channels: inAppEmailSMS},
	TypeShopReinstated:      {Title: "Shop reinstated", Message: "{shop} has been reinstated.", Channels: inAppEmail},
	TypeDocumentApproved:    {Title: "Document approved", Message: "Your {document} for {shop} was approved.", Channels: []Channel{ChannelInApp}},
	TypeDocumentRejected:    {Title: "Document rejected", Message: "Your {document} for {shop} was rejected: {reason}.", Channels: inAppEmail},
	TypeDocumentExpiring:    {Title: "Document expiring soon", Message: "Your {document} for {shop} expires on {until}.", Channels: inAppEmail},
	TypeDocumentExpired:     {Title: "Document expired", Message: "Your {document} for {shop} has expired.", Channels: inAppEmail},
	TypeInspectionScheduled: {Title: "Inspection scheduled", Message: "A {inspection} inspection of {shop} is scheduled for {until}.", Channels: inAppEmail},
	TypeInspectionCompleted: {Title: "Inspection completed", Message: "The inspection of {shop} finished with score {score}.", Channels: inAppEmail},
	TypeInspectionCancelled: {Title: "Inspection cancelled", Message: "The inspection of {shop} was cancelled: {reason}.", Channels: []Channel{ChannelInApp}},
	TypeComplianceAlert:     {Title: "Compliance alert", Message: "{shop} compliance is now {status} (score {score}).", Channels: inAppEmailSMS},
	TypeWarningIssued:       {Title: "Official warning", Message: "{shop} received a warning: {reason}.", Channels: inAppEmailSMS},
	TypeSuspensionEnded:     {Title: "Suspension period ended", Message: "The suspension of {shop} ended; review it for reinstatement.", Channels: inAppEmail},
	TypeReviewReceived:      {Title: "New review", Message: "{shop} received a {score}-star review.", Channels: []Channel{ChannelInApp}},
	TypeSystem:              {Title: "Notice", Message: "{message}", Channels: []Channel{ChannelInApp}},
}

// Templates returns every template, sorted by type.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for t, tpl := range templates {
		tpl.Type = t
		out = append(out, tpl)
	}
	slices.SortFunc(out, func(a, b Template) int { return strings.Compare(string(a.Type), string(b.Type)) })
	return out
}

// TemplateFor returns the template of a type.
func TemplateFor(t Type) (Template, bool) {
	tpl, ok := templates[t]
	tpl.Type = t
	return tpl, ok
}

// Render builds a notification from the type's template. Unknown
// placeholders are left as written.
func Render(id domain.NotificationID, recipient domain.ActorID, t Type, shopID *domain.ShopID, vars map[string]string, now time.Time) (*Notification, error) {
	tpl, _ := TemplateFor(t)
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return NewNotification(id, recipient, t, r.Replace(tpl.Title), r.Replace(tpl.Message), shopID, slices.Clone(tpl.Channels), now)
}

package models

import (
	"time"

	"govdash/pkg/domain"
)

// Action is a user-initiated write subject to a per-actor budget.
type Action string

const (
	ActionReviewCreate   Action = "review.create"
	ActionShopCreate     Action = "shop.create"
	ActionFavoriteCreate Action = "favorite.create"
	ActionDocumentCreate Action = "document.create"
)

// Limit is the budget of one action within a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Key scopes a bucket to one actor and action.
func Key(action Action, actorID domain.ActorID) string {
	return "rl:" + string(action) + ":" + actorID.String()
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is set only when not allowed.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

package models

import (
	"strings"
	"time"

	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

const (
	MinRating        = 1
	MaxRating        = 5
	maxCommentLength = 2000
)

// Review is a customer's rating of a shop. One review per (author, shop).
type Review struct {
	ID        domain.ReviewID `json:"id"`
	ShopID    domain.ShopID   `json:"shop_id"`
	AuthorID  domain.ActorID  `json:"author_id"`
	Rating    int             `json:"rating"`
	Comment   string          `json:"comment,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewReview(reviewID domain.ReviewID, shopID domain.ShopID, authorID domain.ActorID, rating int, comment string, now time.Time) (*Review, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "comment must be 2000 characters or less")
	}
	return &Review{
		ID:        reviewID,
		ShopID:    shopID,
		AuthorID:  authorID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
	}, nil
}

// Favorite marks a shop as followed by an actor. One per (actor, shop).
type Favorite struct {
	ID        domain.FavoriteID `json:"id"`
	ShopID    domain.ShopID     `json:"shop_id"`
	ActorID   domain.ActorID    `json:"actor_id"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewFavorite(favoriteID domain.FavoriteID, shopID domain.ShopID, actorID domain.ActorID, now time.Time) *Favorite {
	return &Favorite{
		ID:        favoriteID,
		ShopID:    shopID,
		ActorID:   actorID,
		CreatedAt: now,
	}
}

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

// CreateReview relies on the (author_id, shop_id) unique constraint so that
// concurrent duplicate submissions resolve to exactly one row.
func (s *PostgresStore) CreateReview(ctx context.Context, review *models.Review) error {
	query := `INSERT INTO reviews (id, shop_id, author_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(review.ID), uuid.UUID(review.ShopID), uuid.UUID(review.AuthorID),
		review.Rating, review.Comment, review.CreatedAt,
	)
	return translate(err, "insert review")
}

func (s *PostgresStore) ListReviewsByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Review, error) {
	query := `SELECT id, shop_id, author_id, rating, comment, created_at
		FROM reviews WHERE shop_id = $1 ORDER BY created_at`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(shopID))
	if err != nil {
		return nil, translate(err, "list reviews")
	}
	defer rows.Close()

	var out []*models.Review
	for rows.Next() {
		var (
			r                    models.Review
			id, shop, authorUUID uuid.UUID
		)
		if err := rows.Scan(&id, &shop, &authorUUID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.ID = domain.ReviewID(id)
		r.ShopID = domain.ShopID(shop)
		r.AuthorID = domain.ActorID(authorUUID)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateFavorite(ctx context.Context, favorite *models.Favorite) error {
	query := `INSERT INTO favorites (id, shop_id, actor_id, created_at) VALUES ($1, $2, $3, $4)`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(favorite.ID), uuid.UUID(favorite.ShopID), uuid.UUID(favorite.ActorID), favorite.CreatedAt,
	)
	return translate(err, "insert favorite")
}

func (s *PostgresStore) ListFavoritesByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Favorite, error) {
	query := `SELECT id, shop_id, actor_id, created_at FROM favorites WHERE shop_id = $1 ORDER BY created_at`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(shopID))
	if err != nil {
		return nil, translate(err, "list favorites")
	}
	defer rows.Close()

	var out []*models.Favorite
	for rows.Next() {
		var (
			f                   models.Favorite
			id, shop, actorUUID uuid.UUID
		)
		if err := rows.Scan(&id, &shop, &actorUUID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		f.ID = domain.FavoriteID(id)
		f.ShopID = domain.ShopID(shop)
		f.ActorID = domain.ActorID(actorUUID)
		out = append(out, &f)
	}
	return out, rows.Err()
}

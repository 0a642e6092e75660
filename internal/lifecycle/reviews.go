package lifecycle

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"govdash/internal/events"
	notifmodels "govdash/internal/notification/models"
	"govdash/internal/policy"
	ratemodels "govdash/internal/ratelimit/models"
	registry "govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/requestcontext"
)

type CreateReviewCommand struct {
	Rating  int
	Comment string
}

// CreateReview records the caller's single review of an approved shop.
func (s *Service) CreateReview(ctx context.Context, shopID domain.ShopID, cmd CreateReviewCommand) (*registry.Review, error) {
	actor, now := actorAndNow(ctx)
	reviewID := domain.NewReviewID()
	ref := audit.EntityRef{Type: "review", ID: reviewID.String()}
	var (
		shop   *registry.Shop
		review *registry.Review
	)

	err := s.run(ctx, "review.create", []attribute.KeyValue{attribute.String("shop.id", shopID.String())}, func(ctx context.Context) error {
		return s.tx.RunInShop(ctx, shopID, func(ctx context.Context) error {
			var err error
			if shop, err = s.loadShop(ctx, actor, shopID); err != nil {
				return err
			}
			if err := s.require(ctx, actor, policy.ActionReviewCreate, policy.ReviewResource(shop), ref); err != nil {
				return err
			}
			if err := s.checkRate(ctx, actor, ratemodels.ActionReviewCreate); err != nil {
				return err
			}
			if !shop.IsApproved() {
				return dErrors.New(dErrors.CodeConflict, "only approved shops accept reviews")
			}
			if review, err = registry.NewReview(reviewID, shopID, actor.ID, cmd.Rating, cmd.Comment, now); err != nil {
				return translate(err, "review")
			}
			if err := s.store.CreateReview(ctx, review); err != nil {
				err = translate(err, "review")
				if dErrors.HasCode(err, dErrors.CodeConflict) {
					return dErrors.New(dErrors.CodeConflict, "you have already reviewed this shop")
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, Change{
		Kind:       events.KindReviewCreated,
		Shop:       shop,
		EntityType: "review",
		EntityID:   reviewID.String(),
		Actor:      actor,
		Audit:      audit.EventReviewCreated,
		At:         now,
		Notify: []*notifmodels.Notification{s.render(ctx, shop.OwnerID, notifmodels.TypeReviewReceived, shop,
			map[string]string{"score": strconv.Itoa(review.Rating)}, now)},
		Recompute: true,
	})
	return review, nil
}

// ListReviews returns the reviews of a shop. Reviews are public.
func (s *Service) ListReviews(ctx context.Context, shopID domain.ShopID) ([]*registry.Review, error) {
	actor := requestcontext.Actor(ctx)
	shop, err := s.loadShop(ctx, actor, shopID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actor, policy.ActionReviewRead, policy.ReviewResource(shop), shopRef(shopID)); err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviewsByShop(ctx, shopID)
	if err != nil {
		return nil, translate(err, "reviews")
	}
	return reviews, nil
}

// AddFavorite follows an approved shop for the caller.
func (s *Service) AddFavorite(ctx context.Context, shopID domain.ShopID) (*registry.Favorite, error) {
	actor, now := actorAndNow(ctx)
	favoriteID := domain.NewFavoriteID()
	ref := audit.EntityRef{Type: "favorite", ID: favoriteID.String()}
	var (
		shop     *registry.Shop
		favorite *registry.Favorite
	)

	err := s.run(ctx, "favorite.create", []attribute.KeyValue{attribute.String("shop.id", shopID.String())}, func(ctx context.Context) error {
		var err error
		if shop, err = s.loadShop(ctx, actor, shopID); err != nil {
			return err
		}
		if err := s.require(ctx, actor, policy.ActionFavoriteCreate, policy.FavoriteResource(shop, actor.ID), ref); err != nil {
			return err
		}
		if err := s.checkRate(ctx, actor, ratemodels.ActionFavoriteCreate); err != nil {
			return err
		}
		if !shop.IsApproved() {
			return dErrors.New(dErrors.CodeConflict, "only approved shops can be followed")
		}
		favorite = registry.NewFavorite(favoriteID, shopID, actor.ID, now)
		if err := s.store.CreateFavorite(ctx, favorite); err != nil {
			err = translate(err, "favorite")
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				return dErrors.New(dErrors.CodeConflict, "shop is already a favorite")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, Change{
		Kind:       events.KindFavoriteCreated,
		Shop:       shop,
		EntityType: "favorite",
		EntityID:   favoriteID.String(),
		Actor:      actor,
		Audit:      audit.EventFavoriteCreated,
		At:         now,
	})
	return favorite, nil
}

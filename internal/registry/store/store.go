// Package store defines the persistence ports of the shop registry. Stores
// return pkg/platform/sentinel errors; services translate them.
package store

import (
	"context"
	"time"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

type ShopStore interface {
	CreateShop(ctx context.Context, shop *models.Shop) error
	FindShop(ctx context.Context, id domain.ShopID) (*models.Shop, error)
	// UpdateShop persists shop when the stored version equals expectedVersion,
	// otherwise it returns sentinel.ErrStaleVersion.
	UpdateShop(ctx context.Context, shop *models.Shop, expectedVersion int64) error
	// DeleteShop removes the shop with its documents, inspections, reviews and favorites.
	DeleteShop(ctx context.Context, id domain.ShopID) error
	// ListSuspensionsEnded returns suspended shops whose suspension elapsed
	// before now and whose official has not been reminded yet.
	ListSuspensionsEnded(ctx context.Context, now time.Time) ([]*models.Shop, error)
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	FindDocument(ctx context.Context, id domain.DocumentID) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	ListDocumentsByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Document, error)
	// ListDocumentsExpiringBefore returns pending or approved documents with an
	// expiry earlier than t, oldest expiry first.
	ListDocumentsExpiringBefore(ctx context.Context, t time.Time) ([]*models.Document, error)
}

type InspectionStore interface {
	CreateInspection(ctx context.Context, inspection *models.Inspection) error
	FindInspection(ctx context.Context, id domain.InspectionID) (*models.Inspection, error)
	UpdateInspection(ctx context.Context, inspection *models.Inspection) error
	// ListCompletedInspections returns up to limit completed inspections,
	// most recently completed first.
	ListCompletedInspections(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.Inspection, error)
}

type ReviewStore interface {
	// CreateReview returns sentinel.ErrConflict when the author already reviewed the shop.
	CreateReview(ctx context.Context, review *models.Review) error
	ListReviewsByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Review, error)
	// CreateFavorite returns sentinel.ErrConflict when the pair already exists.
	CreateFavorite(ctx context.Context, favorite *models.Favorite) error
	ListFavoritesByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Favorite, error)
}

type HistoryStore interface {
	AppendHistory(ctx context.Context, record *models.HistoryRecord) error
	// LatestHistory returns sentinel.ErrNotFound when the shop has no record.
	LatestHistory(ctx context.Context, shopID domain.ShopID) (*models.HistoryRecord, error)
	ListHistory(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.HistoryRecord, error)
}

type RoleStore interface {
	// RoleOf returns the provisioned role of an actor, or sentinel.ErrNotFound.
	RoleOf(ctx context.Context, actorID domain.ActorID) (domain.Role, error)
	SetRole(ctx context.Context, actorID domain.ActorID, role domain.Role, now time.Time) error
}

// Store is the full registry persistence surface.
type Store interface {
	ShopStore
	DocumentStore
	InspectionStore
	ReviewStore
	HistoryStore
	RoleStore
}

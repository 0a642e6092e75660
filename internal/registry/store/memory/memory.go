package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"govdash/internal/registry/models"
	"govdash/internal/registry/store"
	"govdash/pkg/domain"
	"govdash/pkg/platform/sentinel"
)

type reviewKey struct {
	author domain.ActorID
	shop   domain.ShopID
}

// InMemory is a process-local registry store. All methods copy values in and
// out so callers never alias stored entities.
type InMemory struct {
	mu          sync.RWMutex
	shops       map[domain.ShopID]*models.Shop
	documents   map[domain.DocumentID]*models.Document
	inspections map[domain.InspectionID]*models.Inspection
	reviews     map[reviewKey]*models.Review
	favorites   map[reviewKey]*models.Favorite
	history     map[domain.ShopID][]*models.HistoryRecord
	roles       map[domain.ActorID]domain.Role
}

var _ store.Store = (*InMemory)(nil)

func New() *InMemory {
	return &InMemory{
		shops:       make(map[domain.ShopID]*models.Shop),
		documents:   make(map[domain.DocumentID]*models.Document),
		inspections: make(map[domain.InspectionID]*models.Inspection),
		reviews:     make(map[reviewKey]*models.Review),
		favorites:   make(map[reviewKey]*models.Favorite),
		history:     make(map[domain.ShopID][]*models.HistoryRecord),
		roles:       make(map[domain.ActorID]domain.Role),
	}
}

// -----------------------------------------------------------------------------
// Shops
// -----------------------------------------------------------------------------

func (s *InMemory) CreateShop(_ context.Context, shop *models.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[shop.ID]; ok {
		return fmt.Errorf("shop %s: %w", shop.ID, sentinel.ErrConflict)
	}
	for _, existing := range s.shops {
		if existing.Slug == shop.Slug {
			return fmt.Errorf("shop slug %s: %w", shop.Slug, sentinel.ErrConflict)
		}
	}
	s.shops[shop.ID] = shop.Clone()
	return nil
}

func (s *InMemory) FindShop(_ context.Context, id domain.ShopID) (*models.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shop, ok := s.shops[id]
	if !ok {
		return nil, fmt.Errorf("shop %s: %w", id, sentinel.ErrNotFound)
	}
	return shop.Clone(), nil
}

func (s *InMemory) UpdateShop(_ context.Context, shop *models.Shop, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.shops[shop.ID]
	if !ok {
		return fmt.Errorf("shop %s: %w", shop.ID, sentinel.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("shop %s at version %d: %w", shop.ID, current.Version, sentinel.ErrStaleVersion)
	}
	s.shops[shop.ID] = shop.Clone()
	return nil
}

func (s *InMemory) DeleteShop(_ context.Context, id domain.ShopID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[id]; !ok {
		return fmt.Errorf("shop %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.shops, id)
	for docID, doc := range s.documents {
		if doc.ShopID == id {
			delete(s.documents, docID)
		}
	}
	for inspID, insp := range s.inspections {
		if insp.ShopID == id {
			delete(s.inspections, inspID)
		}
	}
	for key := range s.reviews {
		if key.shop == id {
			delete(s.reviews, key)
		}
	}
	for key := range s.favorites {
		if key.shop == id {
			delete(s.favorites, key)
		}
	}
	return nil
}

func (s *InMemory) ListSuspensionsEnded(_ context.Context, now time.Time) ([]*models.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Shop
	for _, shop := range s.shops {
		if shop.Status == models.ShopStatusSuspended && !shop.SuspensionNotified &&
			shop.SuspendedUntil != nil && shop.SuspendedUntil.Before(now) {
			out = append(out, shop.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SuspendedUntil.Before(*out[j].SuspendedUntil) })
	return out, nil
}

// -----------------------------------------------------------------------------
// Documents
// -----------------------------------------------------------------------------

func (s *InMemory) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[doc.ShopID]; !ok {
		return fmt.Errorf("shop %s: %w", doc.ShopID, sentinel.ErrNotFound)
	}
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrConflict)
	}
	s.documents[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemory) FindDocument(_ context.Context, id domain.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, sentinel.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (s *InMemory) UpdateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrNotFound)
	}
	s.documents[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemory) ListDocumentsByShop(_ context.Context, shopID domain.ShopID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, doc := range s.documents {
		if doc.ShopID == shopID {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) ListDocumentsExpiringBefore(_ context.Context, t time.Time) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, doc := range s.documents {
		if doc.ExpiresAt == nil || !doc.ExpiresAt.Before(t) {
			continue
		}
		if doc.Status == models.DocumentStatusPending || doc.Status == models.DocumentStatusApproved {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, nil
}

// -----------------------------------------------------------------------------
// Inspections
// -----------------------------------------------------------------------------

func (s *InMemory) CreateInspection(_ context.Context, inspection *models.Inspection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[inspection.ShopID]; !ok {
		return fmt.Errorf("shop %s: %w", inspection.ShopID, sentinel.ErrNotFound)
	}
	if _, ok := s.inspections[inspection.ID]; ok {
		return fmt.Errorf("inspection %s: %w", inspection.ID, sentinel.ErrConflict)
	}
	s.inspections[inspection.ID] = inspection.Clone()
	return nil
}

func (s *InMemory) FindInspection(_ context.Context, id domain.InspectionID) (*models.Inspection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	insp, ok := s.inspections[id]
	if !ok {
		return nil, fmt.Errorf("inspection %s: %w", id, sentinel.ErrNotFound)
	}
	return insp.Clone(), nil
}

func (s *InMemory) UpdateInspection(_ context.Context, inspection *models.Inspection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inspections[inspection.ID]; !ok {
		return fmt.Errorf("inspection %s: %w", inspection.ID, sentinel.ErrNotFound)
	}
	s.inspections[inspection.ID] = inspection.Clone()
	return nil
}

func (s *InMemory) ListCompletedInspections(_ context.Context, shopID domain.ShopID, limit int) ([]*models.Inspection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Inspection
	for _, insp := range s.inspections {
		if insp.ShopID == shopID && insp.IsCompleted() && insp.CompletedAt != nil {
			out = append(out, insp.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Reviews and favorites
// -----------------------------------------------------------------------------

func (s *InMemory) CreateReview(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[review.ShopID]; !ok {
		return fmt.Errorf("shop %s: %w", review.ShopID, sentinel.ErrNotFound)
	}
	key := reviewKey{author: review.AuthorID, shop: review.ShopID}
	if _, ok := s.reviews[key]; ok {
		return fmt.Errorf("review by %s for shop %s: %w", review.AuthorID, review.ShopID, sentinel.ErrConflict)
	}
	r := *review
	s.reviews[key] = &r
	return nil
}

func (s *InMemory) ListReviewsByShop(_ context.Context, shopID domain.ShopID) ([]*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Review
	for key, review := range s.reviews {
		if key.shop == shopID {
			r := *review
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CreateFavorite(_ context.Context, favorite *models.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[favorite.ShopID]; !ok {
		return fmt.Errorf("shop %s: %w", favorite.ShopID, sentinel.ErrNotFound)
	}
	key := reviewKey{author: favorite.ActorID, shop: favorite.ShopID}
	if _, ok := s.favorites[key]; ok {
		return fmt.Errorf("favorite by %s for shop %s: %w", favorite.ActorID, favorite.ShopID, sentinel.ErrConflict)
	}
	f := *favorite
	s.favorites[key] = &f
	return nil
}

func (s *InMemory) ListFavoritesByShop(_ context.Context, shopID domain.ShopID) ([]*models.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Favorite
	for key, fav := range s.favorites {
		if key.shop == shopID {
			f := *fav
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// -----------------------------------------------------------------------------
// Compliance history
// -----------------------------------------------------------------------------

func (s *InMemory) AppendHistory(_ context.Context, record *models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *record
	s.history[record.ShopID] = append(s.history[record.ShopID], &r)
	return nil
}

func (s *InMemory) LatestHistory(_ context.Context, shopID domain.ShopID) (*models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.history[shopID]
	if len(records) == 0 {
		return nil, fmt.Errorf("history for shop %s: %w", shopID, sentinel.ErrNotFound)
	}
	r := *records[len(records)-1]
	return &r, nil
}

// ListHistory returns up to limit records, newest first.
func (s *InMemory) ListHistory(_ context.Context, shopID domain.ShopID, limit int) ([]*models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.history[shopID]
	out := make([]*models.HistoryRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := *records[i]
		out = append(out, &r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Roles
// -----------------------------------------------------------------------------

func (s *InMemory) RoleOf(_ context.Context, actorID domain.ActorID) (domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[actorID]
	if !ok {
		return domain.RoleAnonymous, fmt.Errorf("role of %s: %w", actorID, sentinel.ErrNotFound)
	}
	return role, nil
}

func (s *InMemory) SetRole(_ context.Context, actorID domain.ActorID, role domain.Role, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[actorID] = role
	return nil
}

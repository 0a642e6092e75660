package lifecycle

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"govdash/internal/events"
	lmodels "govdash/internal/lifecycle/models"
	notifmodels "govdash/internal/notification/models"
	"govdash/internal/policy"
	ratemodels "govdash/internal/ratelimit/models"
	registry "govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/requestcontext"
)

type CreateDocumentCommand struct {
	Type      registry.DocumentType
	FileRef   string
	ExpiresAt *time.Time
}

type DocumentTransitionCommand struct {
	Transition lmodels.DocumentTransition
	Reason     string
}

const maxFileRefLength = 1024

func documentRef(id domain.DocumentID) audit.EntityRef {
	return audit.EntityRef{Type: "document", ID: id.String()}
}

func documentLabel(t registry.DocumentType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// CreateDocument attaches a pending document to one of the caller's shops.
func (s *Service) CreateDocument(ctx context.Context, shopID domain.ShopID, cmd CreateDocumentCommand) (*registry.Document, error) {
	actor, now := actorAndNow(ctx)
	docID := domain.NewDocumentID()
	var (
		shop *registry.Shop
		doc  *registry.Document
	)

	err := s.run(ctx, "document.create", []attribute.KeyValue{attribute.String("shop.id", shopID.String())}, func(ctx context.Context) error {
		if len(cmd.FileRef) > maxFileRefLength {
			return dErrors.New(dErrors.CodeValidation, "file reference is too long")
		}
		return s.tx.RunInShop(ctx, shopID, func(ctx context.Context) error {
			var err error
			if shop, err = s.loadShop(ctx, actor, shopID); err != nil {
				return err
			}
			if err := s.require(ctx, actor, policy.ActionDocumentCreate, policy.DocumentResource(shop), documentRef(docID)); err != nil {
				return err
			}
			if err := s.checkRate(ctx, actor, ratemodels.ActionDocumentCreate); err != nil {
				return err
			}
			if shop.Status == registry.ShopStatusRejected {
				return dErrors.New(dErrors.CodeConflict, "rejected shops cannot receive documents")
			}
			if doc, err = registry.NewDocument(docID, shopID, cmd.Type, strings.TrimSpace(cmd.FileRef), cmd.ExpiresAt, now); err != nil {
				return translate(err, "document")
			}
			if err := s.store.CreateDocument(ctx, doc); err != nil {
				return translate(err, "document")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, Change{
		Kind:       events.KindDocumentCreated,
		Shop:       shop,
		EntityType: "document",
		EntityID:   docID.String(),
		Actor:      actor,
		To:         string(doc.Status),
		Audit:      audit.EventDocumentCreated,
		At:         now,
	})
	return doc.Clone(), nil
}

// ListDocuments returns the shop's documents to its owner and to officials.
func (s *Service) ListDocuments(ctx context.Context, shopID domain.ShopID) ([]*registry.Document, error) {
	actor := requestcontext.Actor(ctx)
	shop, err := s.loadShop(ctx, actor, shopID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actor, policy.ActionDocumentRead, policy.DocumentResource(shop), shopRef(shopID)); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocumentsByShop(ctx, shopID)
	if err != nil {
		return nil, translate(err, "documents")
	}
	return docs, nil
}

// TransitionDocument approves or rejects a pending document. Expiry is
// driven by the sweep through ExpireDocument.
func (s *Service) TransitionDocument(ctx context.Context, id domain.DocumentID, cmd DocumentTransitionCommand) (*registry.Document, error) {
	var action policy.Action
	switch cmd.Transition {
	case lmodels.DocumentApprove:
		action = policy.ActionDocumentApprove
	case lmodels.DocumentReject:
		action = policy.ActionDocumentReject
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown document transition: "+string(cmd.Transition))
	}
	reason := ""
	if cmd.Transition == lmodels.DocumentReject {
		var err error
		if reason, err = validReason(cmd.Reason); err != nil {
			return nil, err
		}
	}
	return s.transitionDocument(ctx, id, cmd.Transition, action, reason)
}

// ExpireDocument moves a document past its expiry to expired. It is run by
// the sweep under the service identity.
func (s *Service) ExpireDocument(ctx context.Context, id domain.DocumentID) (*registry.Document, error) {
	return s.transitionDocument(ctx, id, lmodels.DocumentExpire, policy.ActionSystemSweep, "")
}

func (s *Service) transitionDocument(ctx context.Context, id domain.DocumentID, transition lmodels.DocumentTransition, action policy.Action, reason string) (*registry.Document, error) {
	actor, now := actorAndNow(ctx)
	var (
		shop *registry.Shop
		doc  *registry.Document
		from registry.DocumentStatus
	)

	err := s.run(ctx, "document."+string(transition), []attribute.KeyValue{attribute.String("document.id", id.String())}, func(ctx context.Context) error {
		// The document names its shop; the lock is then taken and the document re-read under it.
		found, err := s.store.FindDocument(ctx, id)
		if err != nil {
			return s.hideMissing(actor, translate(err, "document"))
		}
		return s.tx.RunInShop(ctx, found.ShopID, func(ctx context.Context) error {
			if doc, err = s.store.FindDocument(ctx, id); err != nil {
				return translate(err, "document")
			}
			if shop, err = s.loadShop(ctx, actor, doc.ShopID); err != nil {
				return err
			}
			resource := policy.DocumentResource(shop)
			if action == policy.ActionSystemSweep {
				resource = policy.SystemResource()
			}
			if err := s.require(ctx, actor, action, resource, documentRef(id)); err != nil {
				return err
			}
			if transition == lmodels.DocumentExpire && !isPast(doc.ExpiresAt, now) {
				return dErrors.New(dErrors.CodeInvalidTransition, "document has not expired yet")
			}
			to, err := lmodels.NextDocumentStatus(doc.Status, transition)
			if err != nil {
				return err
			}

			from = doc.Status
			doc.Status = to
			doc.Reason = reason
			doc.UpdatedAt = now
			if transition != lmodels.DocumentExpire {
				by := actor.ID
				doc.ReviewedBy = &by
			}
			if err := s.store.UpdateDocument(ctx, doc); err != nil {
				return translate(err, "document")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	kind, event, notify := events.KindDocumentApproved, audit.EventDocumentApproved, notifmodels.TypeDocumentApproved
	switch transition {
	case lmodels.DocumentReject:
		kind, event, notify = events.KindDocumentRejected, audit.EventDocumentRejected, notifmodels.TypeDocumentRejected
	case lmodels.DocumentExpire:
		kind, event, notify = events.KindDocumentExpired, audit.EventDocumentExpired, notifmodels.TypeDocumentExpired
	}
	vars := map[string]string{"document": documentLabel(doc.Type), "reason": reason}
	s.afterCommit(ctx, Change{
		Kind:       kind,
		Shop:       shop,
		EntityType: "document",
		EntityID:   id.String(),
		Actor:      actor,
		From:       string(from),
		To:         string(doc.Status),
		Reason:     reason,
		Audit:      event,
		At:         now,
		Notify:     []*notifmodels.Notification{s.render(ctx, shop.OwnerID, notify, shop, vars, now)},
		Recompute:  true,
	})
	return doc.Clone(), nil
}

// WarnExpiringDocument sends the document_expiring notice once per
// document. It reports whether a notice was sent.
func (s *Service) WarnExpiringDocument(ctx context.Context, id domain.DocumentID) (bool, error) {
	actor, now := actorAndNow(ctx)
	var (
		shop *registry.Shop
		doc  *registry.Document
	)

	err := s.run(ctx, "document.warn_expiring", []attribute.KeyValue{attribute.String("document.id", id.String())}, func(ctx context.Context) error {
		if err := s.require(ctx, actor, policy.ActionSystemSweep, policy.SystemResource(), documentRef(id)); err != nil {
			return err
		}
		found, err := s.store.FindDocument(ctx, id)
		if err != nil {
			return translate(err, "document")
		}
		return s.tx.RunInShop(ctx, found.ShopID, func(ctx context.Context) error {
			current, err := s.store.FindDocument(ctx, id)
			if err != nil {
				return translate(err, "document")
			}
			if current.WarningSent || current.ExpiresAt == nil || isPast(current.ExpiresAt, now) ||
				current.EffectiveStatus(now) == registry.DocumentStatusRejected {
				return nil
			}
			if shop, err = s.loadShop(ctx, actor, current.ShopID); err != nil {
				return err
			}
			current.WarningSent = true
			current.UpdatedAt = now
			if err := s.store.UpdateDocument(ctx, current); err != nil {
				return translate(err, "document")
			}
			doc = current
			return nil
		})
	})
	if err != nil || doc == nil {
		return false, err
	}

	s.auditor.Record(ctx, actor, audit.EventDocumentWarned, documentRef(id), audit.OutcomeSuccess)
	if s.notifier != nil {
		vars := map[string]string{"document": documentLabel(doc.Type), "until": doc.ExpiresAt.Format(time.DateOnly)}
		if n := s.render(ctx, shop.OwnerID, notifmodels.TypeDocumentExpiring, shop, vars, now); n != nil {
			s.notifier.Notify(ctx, n)
		}
	}
	return true, nil
}

// hideMissing reports a missing entity to anonymous callers as unauthorized.
func (s *Service) hideMissing(actor domain.Actor, err error) error {
	if actor.IsAnonymous() && dErrors.HasCode(err, dErrors.CodeNotFound) {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return err
}

func isPast(t *time.Time, now time.Time) bool {
	return t != nil && t.Before(now)
}

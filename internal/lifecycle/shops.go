package lifecycle

import (
	"context"
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

type CreateShopCommand struct {
	Name     string
	Address  string
	Category string
}

// ShopTransitionCommand moves a shop through its state table. Reject and
// suspend need a reason code; suspend also needs a duration.
type ShopTransitionCommand struct {
	Transition lmodels.ShopTransition
	Reason     string
	Duration   time.Duration
}

var shopTransitionActions = map[lmodels.ShopTransition]policy.Action{
	lmodels.ShopApprove:   policy.ActionShopApprove,
	lmodels.ShopReject:    policy.ActionShopReject,
	lmodels.ShopSuspend:   policy.ActionShopSuspend,
	lmodels.ShopReinstate: policy.ActionShopReinstate,
}

var shopTransitionEffects = map[lmodels.ShopTransition]struct {
	kind   events.Kind
	audit  audit.AuditEvent
	notify notifmodels.Type
}{
	lmodels.ShopApprove:   {events.KindShopApproved, audit.EventShopApproved, notifmodels.TypeShopApproved},
	lmodels.ShopReject:    {events.KindShopRejected, audit.EventShopRejected, notifmodels.TypeShopRejected},
	lmodels.ShopSuspend:   {events.KindShopSuspended, audit.EventShopSuspended, notifmodels.TypeShopSuspended},
	lmodels.ShopReinstate: {events.KindShopReinstated, audit.EventShopReinstated, notifmodels.TypeShopReinstated},
}

// CreateShop registers a pending shop owned by the caller.
func (s *Service) CreateShop(ctx context.Context, cmd CreateShopCommand) (*registry.Shop, error) {
	actor, now := actorAndNow(ctx)
	shopID := domain.NewShopID()
	var created *registry.Shop

	err := s.run(ctx, "shop.create", nil, func(ctx context.Context) error {
		if err := s.require(ctx, actor, policy.ActionShopCreate, policy.NewShopResource(), shopRef(shopID)); err != nil {
			return err
		}
		if err := s.checkRate(ctx, actor, ratemodels.ActionShopCreate); err != nil {
			return err
		}
		shop, err := registry.NewShop(shopID, actor.ID, cmd.Name, cmd.Address, cmd.Category, now)
		if err != nil {
			return translate(err, "shop")
		}
		err = s.tx.RunInShop(ctx, shopID, func(ctx context.Context) error {
			return s.store.CreateShop(ctx, shop)
		})
		if err != nil {
			return translate(err, "shop")
		}
		created = shop
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, Change{
		Kind:       events.KindShopCreated,
		Shop:       created,
		EntityType: "shop",
		EntityID:   created.ID.String(),
		Actor:      actor,
		To:         string(created.Status),
		Audit:      audit.EventShopCreated,
		At:         now,
	})
	return created.Clone(), nil
}

// GetShop returns a shop the caller may read.
func (s *Service) GetShop(ctx context.Context, id domain.ShopID) (*registry.Shop, error) {
	actor := requestcontext.Actor(ctx)
	shop, err := s.loadShop(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actor, policy.ActionShopRead, policy.ShopResource(shop), shopRef(id)); err != nil {
		return nil, err
	}
	return shop, nil
}

// TransitionShop applies an official's decision to a shop.
func (s *Service) TransitionShop(ctx context.Context, id domain.ShopID, cmd ShopTransitionCommand) (*registry.Shop, error) {
	action, ok := shopTransitionActions[cmd.Transition]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown shop transition: "+string(cmd.Transition))
	}
	actor, now := actorAndNow(ctx)
	effect := shopTransitionEffects[cmd.Transition]
	var (
		updated *registry.Shop
		from    registry.ShopStatus
		reason  string
	)

	err := s.run(ctx, "shop."+string(cmd.Transition), []attribute.KeyValue{attribute.String("shop.id", id.String())},
		func(ctx context.Context) error {
			return s.tx.RunInShop(ctx, id, func(ctx context.Context) error {
				shop, err := s.loadShop(ctx, actor, id)
				if err != nil {
					return err
				}
				if err := s.require(ctx, actor, action, policy.ShopResource(shop), shopRef(id)); err != nil {
					return err
				}
				to, err := lmodels.NextShopStatus(shop.Status, cmd.Transition)
				if err != nil {
					return err
				}
				if reason, err = shopReason(cmd); err != nil {
					return err
				}

				from = shop.Status
				shop.Status = to
				applyShopTransition(shop, cmd, actor, reason, now)
				if err := s.saveShop(ctx, shop, now); err != nil {
					return err
				}
				updated = shop
				return nil
			})
		})
	if err != nil {
		return nil, err
	}

	vars := map[string]string{"reason": reason}
	if updated.SuspendedUntil != nil {
		vars["until"] = updated.SuspendedUntil.Format(time.DateOnly)
	}
	s.afterCommit(ctx, Change{
		Kind:       effect.kind,
		Shop:       updated,
		EntityType: "shop",
		EntityID:   id.String(),
		Actor:      actor,
		From:       string(from),
		To:         string(updated.Status),
		Reason:     reason,
		Audit:      effect.audit,
		At:         now,
		Notify:     []*notifmodels.Notification{s.render(ctx, updated.OwnerID, effect.notify, updated, vars, now)},
		Recompute:  cmd.Transition == lmodels.ShopApprove || cmd.Transition == lmodels.ShopReinstate,
	})
	return updated.Clone(), nil
}

func shopReason(cmd ShopTransitionCommand) (string, error) {
	switch cmd.Transition {
	case lmodels.ShopReject:
		return validReason(cmd.Reason)
	case lmodels.ShopSuspend:
		reason, err := validReason(cmd.Reason)
		if err != nil {
			return "", err
		}
		if cmd.Duration < minSuspension || cmd.Duration > maxSuspension {
			return "", dErrors.New(dErrors.CodeValidation, "suspension duration must be between 1 day and 365 days")
		}
		return reason, nil
	}
	return "", nil
}

func applyShopTransition(shop *registry.Shop, cmd ShopTransitionCommand, actor domain.Actor, reason string, now time.Time) {
	switch cmd.Transition {
	case lmodels.ShopApprove:
		shop.ComplianceStatus = registry.ComplianceStatusPending
		shop.StatusReason = ""
	case lmodels.ShopReject:
		shop.StatusReason = reason
	case lmodels.ShopSuspend:
		until := now.Add(cmd.Duration)
		by := actor.ID
		shop.StatusReason = reason
		shop.SuspendedBy = &by
		shop.SuspendedUntil = &until
		shop.SuspensionNotified = false
	case lmodels.ShopReinstate:
		shop.StatusReason = ""
		shop.SuspendedBy = nil
		shop.SuspendedUntil = nil
		shop.SuspensionNotified = false
	}
}

// IssueWarning records an official warning against an approved or suspended
// shop and notifies its owner. The shop state is unchanged.
func (s *Service) IssueWarning(ctx context.Context, id domain.ShopID, reason string) error {
	actor, now := actorAndNow(ctx)
	var shop *registry.Shop

	err := s.run(ctx, "warning.issue", []attribute.KeyValue{attribute.String("shop.id", id.String())}, func(ctx context.Context) error {
		var err error
		if reason, err = validReason(reason); err != nil {
			return err
		}
		if shop, err = s.loadShop(ctx, actor, id); err != nil {
			return err
		}
		if err := s.require(ctx, actor, policy.ActionWarningIssue, policy.ShopResource(shop), shopRef(id)); err != nil {
			return err
		}
		if shop.Status != registry.ShopStatusApproved && shop.Status != registry.ShopStatusSuspended {
			return dErrors.New(dErrors.CodeConflict, "warnings apply only to approved or suspended shops")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, Change{
		Kind:       events.KindShopWarned,
		Shop:       shop,
		EntityType: "shop",
		EntityID:   id.String(),
		Actor:      actor,
		Reason:     reason,
		Audit:      audit.EventWarningIssued,
		At:         now,
		Notify: []*notifmodels.Notification{
			s.render(ctx, shop.OwnerID, notifmodels.TypeWarningIssued, shop, map[string]string{"reason": reason}, now),
		},
	})
	return nil
}

// DeleteShop removes a shop with its documents, inspections, reviews and
// favorites. Compliance history and notifications are kept.
func (s *Service) DeleteShop(ctx context.Context, id domain.ShopID) error {
	actor, now := actorAndNow(ctx)
	var deleted *registry.Shop

	err := s.run(ctx, "shop.delete", []attribute.KeyValue{attribute.String("shop.id", id.String())}, func(ctx context.Context) error {
		return s.tx.RunInShop(ctx, id, func(ctx context.Context) error {
			shop, err := s.loadShop(ctx, actor, id)
			if err != nil {
				return err
			}
			if err := s.require(ctx, actor, policy.ActionShopDelete, policy.ShopResource(shop), shopRef(id)); err != nil {
				return err
			}
			if err := s.store.DeleteShop(ctx, id); err != nil {
				return translate(err, "shop")
			}
			deleted = shop
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, Change{
		Kind:       events.KindShopDeleted,
		Shop:       deleted,
		EntityType: "shop",
		EntityID:   id.String(),
		Actor:      actor,
		From:       string(deleted.Status),
		Audit:      audit.EventShopDeleted,
		At:         now,
	})
	return nil
}

// NotifySuspensionEnded reminds the suspending official once the suspension
// elapsed. Reinstatement stays a manual decision. It reports whether a
// reminder was sent.
func (s *Service) NotifySuspensionEnded(ctx context.Context, id domain.ShopID) (bool, error) {
	actor, now := actorAndNow(ctx)
	var shop *registry.Shop

	err := s.run(ctx, "suspension.ended", []attribute.KeyValue{attribute.String("shop.id", id.String())}, func(ctx context.Context) error {
		if err := s.require(ctx, actor, policy.ActionSystemSweep, policy.SystemResource(), shopRef(id)); err != nil {
			return err
		}
		return s.tx.RunInShop(ctx, id, func(ctx context.Context) error {
			current, err := s.loadShop(ctx, actor, id)
			if err != nil {
				return err
			}
			if current.Status != registry.ShopStatusSuspended || current.SuspensionNotified ||
				current.SuspendedUntil == nil || current.SuspendedUntil.After(now) {
				return nil
			}
			current.SuspensionNotified = true
			if err := s.saveShop(ctx, current, now); err != nil {
				return err
			}
			shop = current
			return nil
		})
	})
	if err != nil || shop == nil {
		return false, err
	}

	s.auditor.Record(ctx, actor, audit.EventSuspensionEnded, shopRef(id), audit.OutcomeSuccess)
	if s.notifier != nil && shop.SuspendedBy != nil {
		if n := s.render(ctx, *shop.SuspendedBy, notifmodels.TypeSuspensionEnded, shop, nil, now); n != nil {
			s.notifier.Notify(ctx, n)
		}
	}
	return true, nil
}

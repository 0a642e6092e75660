package lifecycle

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"govdash/internal/events"
	lmodels "govdash/internal/lifecycle/models"
	notifmodels "govdash/internal/notification/models"
	"govdash/internal/policy"
	registry "govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/platform/sentinel"
)

// ScheduleInspectionCommand assigns an inspection. A zero InspectorID
// assigns the calling official.
type ScheduleInspectionCommand struct {
	InspectorID domain.ActorID
	Type        registry.InspectionType
	ScheduledAt time.Time
}

// InspectionTransitionCommand carries the score and issues of a completion
// and the reason of a cancellation.
type InspectionTransitionCommand struct {
	Transition lmodels.InspectionTransition
	Score      *int
	Issues     []string
	Reason     string
}

const (
	maxIssues      = 50
	maxIssueLength = 500
)

func inspectionRef(id domain.InspectionID) audit.EntityRef {
	return audit.EntityRef{Type: "inspection", ID: id.String()}
}

// ScheduleInspection books an inspection of a shop by a government inspector.
func (s *Service) ScheduleInspection(ctx context.Context, shopID domain.ShopID, cmd ScheduleInspectionCommand) (*registry.Inspection, error) {
	actor, now := actorAndNow(ctx)
	inspectionID := domain.NewInspectionID()
	inspectorID := cmd.InspectorID
	if inspectorID.IsNil() {
		inspectorID = actor.ID
	}
	var (
		shop       *registry.Shop
		inspection *registry.Inspection
	)

	err := s.run(ctx, "inspection.schedule", []attribute.KeyValue{attribute.String("shop.id", shopID.String())}, func(ctx context.Context) error {
		if !cmd.ScheduledAt.IsZero() && cmd.ScheduledAt.After(now.Add(maxScheduleHorizon)) {
			return dErrors.New(dErrors.CodeValidation, "inspections can be scheduled at most two years ahead")
		}
		return s.tx.RunInShop(ctx, shopID, func(ctx context.Context) error {
			var err error
			if shop, err = s.loadShop(ctx, actor, shopID); err != nil {
				return err
			}
			if err := s.require(ctx, actor, policy.ActionInspectionSchedule, policy.InspectionResource(shop, nil), inspectionRef(inspectionID)); err != nil {
				return err
			}
			if shop.Status == registry.ShopStatusRejected {
				return dErrors.New(dErrors.CodeConflict, "rejected shops cannot be inspected")
			}
			if err := s.requireInspector(ctx, actor, inspectorID); err != nil {
				return err
			}
			if inspection, err = registry.NewInspection(inspectionID, shopID, inspectorID, cmd.Type, cmd.ScheduledAt, now); err != nil {
				return translate(err, "inspection")
			}
			if err := s.store.CreateInspection(ctx, inspection); err != nil {
				return translate(err, "inspection")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"inspection": strings.ReplaceAll(string(inspection.Type), "_", " "),
		"until":      inspection.ScheduledAt.Format(time.DateOnly),
	}
	s.afterCommit(ctx, Change{
		Kind:       events.KindInspectionScheduled,
		Shop:       shop,
		EntityType: "inspection",
		EntityID:   inspectionID.String(),
		Actor:      actor,
		To:         string(inspection.Status),
		Audit:      audit.EventInspectionScheduled,
		At:         now,
		Notify:     []*notifmodels.Notification{s.render(ctx, shop.OwnerID, notifmodels.TypeInspectionScheduled, shop, vars, now)},
	})
	return inspection.Clone(), nil
}

// requireInspector checks that the assigned inspector is a government official.
func (s *Service) requireInspector(ctx context.Context, actor domain.Actor, inspectorID domain.ActorID) error {
	if inspectorID == actor.ID {
		return nil
	}
	role, err := s.store.RoleOf(ctx, inspectorID)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && role != domain.RoleGovernment) {
		return dErrors.New(dErrors.CodeValidation, "inspector must be a government official")
	}
	if err != nil {
		return translate(err, "inspector role")
	}
	return nil
}

// TransitionInspection starts, completes or cancels an inspection.
func (s *Service) TransitionInspection(ctx context.Context, id domain.InspectionID, cmd InspectionTransitionCommand) (*registry.Inspection, error) {
	var action policy.Action
	switch cmd.Transition {
	case lmodels.InspectionStart:
		action = policy.ActionInspectionStart
	case lmodels.InspectionComplete:
		action = policy.ActionInspectionComplete
	case lmodels.InspectionCancel:
		action = policy.ActionInspectionCancel
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown inspection transition: "+string(cmd.Transition))
	}
	issues, reason, err := inspectionInput(cmd)
	if err != nil {
		return nil, err
	}

	actor, now := actorAndNow(ctx)
	var (
		shop       *registry.Shop
		inspection *registry.Inspection
		from       registry.InspectionStatus
	)
	err = s.run(ctx, "inspection."+string(cmd.Transition), []attribute.KeyValue{attribute.String("inspection.id", id.String())}, func(ctx context.Context) error {
		found, err := s.store.FindInspection(ctx, id)
		if err != nil {
			return s.hideMissing(actor, translate(err, "inspection"))
		}
		return s.tx.RunInShop(ctx, found.ShopID, func(ctx context.Context) error {
			if inspection, err = s.store.FindInspection(ctx, id); err != nil {
				return translate(err, "inspection")
			}
			if shop, err = s.loadShop(ctx, actor, inspection.ShopID); err != nil {
				return err
			}
			if err := s.require(ctx, actor, action, policy.InspectionResource(shop, inspection), inspectionRef(id)); err != nil {
				return err
			}
			to, err := lmodels.NextInspectionStatus(inspection.Status, cmd.Transition)
			if err != nil {
				return err
			}
			if cmd.Transition == lmodels.InspectionStart && now.Before(inspection.ScheduledAt) {
				return dErrors.New(dErrors.CodeInvalidTransition, "inspection cannot start before its scheduled date")
			}

			from = inspection.Status
			inspection.Status = to
			inspection.UpdatedAt = now
			switch cmd.Transition {
			case lmodels.InspectionStart:
				started := now
				inspection.StartedAt = &started
			case lmodels.InspectionComplete:
				score := *cmd.Score
				inspection.Score = &score
				inspection.Issues = issues
				completed := now
				inspection.CompletedAt = &completed
			case lmodels.InspectionCancel:
				inspection.Reason = reason
			}
			if err := s.store.UpdateInspection(ctx, inspection); err != nil {
				return translate(err, "inspection")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	ch := Change{
		Shop:       shop,
		EntityType: "inspection",
		EntityID:   id.String(),
		Actor:      actor,
		From:       string(from),
		To:         string(inspection.Status),
		Reason:     reason,
		At:         now,
	}
	switch cmd.Transition {
	case lmodels.InspectionStart:
		ch.Kind, ch.Audit = events.KindInspectionStarted, audit.EventInspectionStarted
	case lmodels.InspectionComplete:
		ch.Kind, ch.Audit = events.KindInspectionCompleted, audit.EventInspectionCompleted
		ch.Recompute = true
		ch.Notify = []*notifmodels.Notification{s.render(ctx, shop.OwnerID, notifmodels.TypeInspectionCompleted, shop,
			map[string]string{"score": strconv.Itoa(*inspection.Score)}, now)}
	case lmodels.InspectionCancel:
		ch.Kind, ch.Audit = events.KindInspectionCancelled, audit.EventInspectionCancelled
		// The party that did not cancel is told.
		recipient := shop.OwnerID
		if actor.ID == shop.OwnerID {
			recipient = inspection.InspectorID
		}
		ch.Notify = []*notifmodels.Notification{s.render(ctx, recipient, notifmodels.TypeInspectionCancelled, shop,
			map[string]string{"reason": reason}, now)}
	}
	s.afterCommit(ctx, ch)
	return inspection.Clone(), nil
}

func inspectionInput(cmd InspectionTransitionCommand) ([]string, string, error) {
	switch cmd.Transition {
	case lmodels.InspectionComplete:
		if cmd.Score == nil || *cmd.Score < 0 || *cmd.Score > 100 {
			return nil, "", dErrors.New(dErrors.CodeValidation, "score between 0 and 100 is required")
		}
		if len(cmd.Issues) > maxIssues {
			return nil, "", dErrors.New(dErrors.CodeValidation, "at most 50 issues may be recorded")
		}
		issues := make([]string, 0, len(cmd.Issues))
		for _, issue := range cmd.Issues {
			issue = strings.TrimSpace(issue)
			if issue == "" {
				continue
			}
			if len(issue) > maxIssueLength {
				return nil, "", dErrors.New(dErrors.CodeValidation, "issue must be 500 characters or less")
			}
			issues = append(issues, issue)
		}
		return issues, "", nil
	case lmodels.InspectionCancel:
		reason, err := validReason(cmd.Reason)
		return nil, reason, err
	}
	return nil, "", nil
}

// Package admin holds the operations reserved for the service identity and
// officials: role provisioning, forced recomputes, on-demand sweeps, system
// notices and audit trail reads.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"govdash/internal/compliance"
	notifmodels "govdash/internal/notification/models"
	"govdash/internal/policy"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	strutil "govdash/pkg/platform/strings"
	"govdash/pkg/requestcontext"
)

const (
	maxRecipients   = 1000
	maxNoticeLength = 1000
	maxAuditEvents  = 500
)

type Authorizer interface {
	Require(ctx context.Context, actor domain.Actor, action policy.Action, resource policy.Resource) (policy.Decision, error)
}

type RoleStore interface {
	SetRole(ctx context.Context, actorID domain.ActorID, role domain.Role, now time.Time) error
}

type Recomputer interface {
	Recompute(ctx context.Context, shopID domain.ShopID) (*compliance.Outcome, error)
}

type Sweeper interface {
	RunAll(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, n *notifmodels.Notification)
}

type AuditReader interface {
	List(ctx context.Context, ref audit.EntityRef) ([]audit.Event, error)
}

type Service struct {
	roles      RoleStore
	authorizer Authorizer
	recomputer Recomputer
	sweeper    Sweeper
	notifier   Notifier
	trail      AuditReader
	auditor    *audit.Recorder
	logger     *slog.Logger
}

type Option func(*Service)

func WithRecomputer(r Recomputer) Option {
	return func(s *Service) {
		s.recomputer = r
	}
}

func WithSweeper(sw Sweeper) Option {
	return func(s *Service) {
		s.sweeper = sw
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAuditReader(r AuditReader) Option {
	return func(s *Service) {
		s.trail = r
	}
}

func WithAuditor(r *audit.Recorder) Option {
	return func(s *Service) {
		s.auditor = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(roles RoleStore, authorizer Authorizer, opts ...Option) (*Service, error) {
	if roles == nil {
		return nil, errors.New("admin role store is required")
	}
	if authorizer == nil {
		return nil, errors.New("admin authorizer is required")
	}
	s := &Service{roles: roles, authorizer: authorizer, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) require(ctx context.Context, action policy.Action, ref audit.EntityRef) (domain.Actor, error) {
	actor := requestcontext.Actor(ctx)
	decision, err := s.authorizer.Require(ctx, actor, action, policy.SystemResource())
	if err != nil {
		s.auditor.RecordReason(ctx, actor, audit.AuditEvent(action), ref, audit.OutcomeDenied, decision.Rule)
		return actor, err
	}
	return actor, nil
}

// SetRole provisions the role the policy evaluator trusts over token claims.
func (s *Service) SetRole(ctx context.Context, actorID domain.ActorID, role domain.Role) error {
	ref := audit.EntityRef{Type: "actor", ID: actorID.String()}
	actor, err := s.require(ctx, policy.ActionSystemRoleSet, ref)
	if err != nil {
		return err
	}
	if actorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "actor id is required")
	}
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be one of customer, shop_owner, government")
	}
	if err := s.roles.SetRole(ctx, actorID, role, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store role")
	}
	s.auditor.RecordReason(ctx, actor, audit.EventRoleSet, ref, audit.OutcomeSuccess, string(role))
	s.logger.InfoContext(ctx, "actor role provisioned",
		"actor_id", actorID.String(),
		"role", string(role),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Recompute scores a shop immediately, queued behind pending recomputes.
func (s *Service) Recompute(ctx context.Context, shopID domain.ShopID) (*compliance.Outcome, error) {
	if _, err := s.require(ctx, policy.ActionSystemRecompute, audit.EntityRef{Type: "shop", ID: shopID.String()}); err != nil {
		return nil, err
	}
	if s.recomputer == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "compliance scoring is not configured")
	}
	return s.recomputer.Recompute(ctx, shopID)
}

// RunSweep runs every sweep job once outside the schedule.
func (s *Service) RunSweep(ctx context.Context) error {
	ref := audit.EntityRef{Type: "sweep"}
	actor, err := s.require(ctx, policy.ActionSystemSweep, ref)
	if err != nil {
		return err
	}
	if s.sweeper == nil {
		return dErrors.New(dErrors.CodeUnavailable, "sweep is disabled")
	}
	if err := s.sweeper.RunAll(ctx); err != nil {
		s.auditor.RecordReason(ctx, actor, audit.EventSweepRun, ref, audit.OutcomeFailed, string(dErrors.CodeInternal))
		return dErrors.Wrap(err, dErrors.CodeInternal, "sweep failed")
	}
	s.auditor.Record(ctx, actor, audit.EventSweepRun, ref, audit.OutcomeSuccess)
	return nil
}

// Broadcast queues a system notice to each distinct recipient and returns
// how many were queued.
func (s *Service) Broadcast(ctx context.Context, recipients []domain.ActorID, message string) (int, error) {
	ref := audit.EntityRef{Type: "notification"}
	actor, err := s.require(ctx, policy.ActionSystemNotify, ref)
	if err != nil {
		return 0, err
	}
	message = strings.TrimSpace(message)
	switch {
	case message == "":
		return 0, dErrors.New(dErrors.CodeValidation, "message is required")
	case len(message) > maxNoticeLength:
		return 0, dErrors.New(dErrors.CodeValidation, "message must be 1000 characters or less")
	case len(recipients) == 0:
		return 0, dErrors.New(dErrors.CodeValidation, "at least one recipient is required")
	case len(recipients) > maxRecipients:
		return 0, dErrors.New(dErrors.CodeValidation, "at most 1000 recipients per notice")
	}
	if s.notifier == nil {
		return 0, dErrors.New(dErrors.CodeUnavailable, "notifications are not configured")
	}

	now := requestcontext.Now(ctx)
	queued := 0
	for _, recipient := range strutil.Dedupe(recipients) {
		if recipient.IsNil() {
			continue
		}
		n, err := notifmodels.Render(domain.NewNotificationID(), recipient, notifmodels.TypeSystem, nil,
			map[string]string{"message": message}, now)
		if err != nil {
			return queued, dErrors.Wrap(err, dErrors.CodeValidation, "invalid notice")
		}
		s.notifier.Notify(ctx, n)
		queued++
	}
	s.auditor.RecordReason(ctx, actor, audit.EventSystemNotice, ref, audit.OutcomeSuccess, strconv.Itoa(queued))
	return queued, nil
}

// AuditTrail returns the recorded actions on one entity, oldest first.
func (s *Service) AuditTrail(ctx context.Context, ref audit.EntityRef) ([]audit.Event, error) {
	if _, err := s.require(ctx, policy.ActionAuditRead, ref); err != nil {
		return nil, err
	}
	if s.trail == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "audit trail is not readable")
	}
	events, err := s.trail.List(ctx, ref)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read audit trail")
	}
	if len(events) > maxAuditEvents {
		events = events[len(events)-maxAuditEvents:]
	}
	return events, nil
}

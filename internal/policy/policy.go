// Package policy decides whether an actor may perform an action on a
// resource. Rules are an ordered table; the first rule that allows wins and
// anything unmatched is denied.
package policy

//go:generate mockgen -source=policy.go -destination=mocks/mocks.go -package=mocks RoleLookup

import (
	"context"
	"log/slog"

	"govdash/internal/policy/metrics"
	"govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

// RoleLookup resolves the authoritative role of an actor. Role-restricted
// rules consult it instead of reading role data off the protected resource.
type RoleLookup interface {
	RoleOf(ctx context.Context, actor domain.Actor) (domain.Role, error)
}

type ResourceKind string

const (
	KindShop         ResourceKind = "shop"
	KindDocument     ResourceKind = "document"
	KindInspection   ResourceKind = "inspection"
	KindReview       ResourceKind = "review"
	KindFavorite     ResourceKind = "favorite"
	KindTemplate     ResourceKind = "notification_template"
	KindNotification ResourceKind = "notification"
	KindCompliance   ResourceKind = "compliance"
	KindSystem       ResourceKind = "system"
)

// Resource carries the ownership fields rules predicate on. Zero IDs mean the
// field does not apply to the resource.
type Resource struct {
	Kind        ResourceKind
	ShopStatus  models.ShopStatus
	OwnerID     domain.ActorID
	InspectorID domain.ActorID
	AuthorID    domain.ActorID
}

func ShopResource(shop *models.Shop) Resource {
	return Resource{Kind: KindShop, ShopStatus: shop.Status, OwnerID: shop.OwnerID}
}

// DocumentResource is owned through its parent shop.
func DocumentResource(shop *models.Shop) Resource {
	return Resource{Kind: KindDocument, ShopStatus: shop.Status, OwnerID: shop.OwnerID}
}

func InspectionResource(shop *models.Shop, inspection *models.Inspection) Resource {
	r := Resource{Kind: KindInspection, ShopStatus: shop.Status, OwnerID: shop.OwnerID}
	if inspection != nil {
		r.InspectorID = inspection.InspectorID
	}
	return r
}

func ReviewResource(shop *models.Shop) Resource {
	return Resource{Kind: KindReview, ShopStatus: shop.Status}
}

func FavoriteResource(shop *models.Shop, actorID domain.ActorID) Resource {
	return Resource{Kind: KindFavorite, ShopStatus: shop.Status, AuthorID: actorID}
}

func ComplianceResource(shop *models.Shop) Resource {
	return Resource{Kind: KindCompliance, ShopStatus: shop.Status, OwnerID: shop.OwnerID}
}

func NotificationResource(recipient domain.ActorID) Resource {
	return Resource{Kind: KindNotification, OwnerID: recipient}
}

func TemplateResource() Resource { return Resource{Kind: KindTemplate} }

func SystemResource() Resource { return Resource{Kind: KindSystem} }

// NewShopResource is the target of shop.create, before the shop exists.
func NewShopResource() Resource { return Resource{Kind: KindShop} }

// Decision is the outcome of Authorize. Rule names the matching rule, or
// RuleDefaultDeny.
type Decision struct {
	Allowed bool
	Rule    string
}

// Request bundles one authorization question.
type Request struct {
	Actor    domain.Actor
	Action   Action
	Resource Resource
}

// Evaluator runs the rule table.
type Evaluator struct {
	rules   []Rule
	roles   RoleLookup
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Evaluator)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

func New(roles RoleLookup, opts ...Option) (*Evaluator, error) {
	if roles == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "role lookup is required")
	}
	e := &Evaluator{
		rules: DefaultRules(),
		roles: roles,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Authorize evaluates the rule table in order. A rule that fails to evaluate
// (for example a role lookup error) counts as no match, so errors deny.
func (e *Evaluator) Authorize(ctx context.Context, actor domain.Actor, action Action, resource Resource) Decision {
	spec, known := actionSpecs[action]
	decision := Decision{Rule: RuleDefaultDeny}
	if known {
		in := &input{
			ctx:     ctx,
			request: Request{Actor: actor, Action: action, Resource: resource},
			spec:    spec,
			roles:   e.roles,
		}
		for _, rule := range e.rules {
			ok, err := rule.Match(in)
			if err != nil {
				if e.logger != nil {
					e.logger.WarnContext(ctx, "policy rule evaluation failed",
						"rule", rule.Name,
						"action", string(action),
						"error", err,
					)
				}
				continue
			}
			if ok {
				decision = Decision{Allowed: true, Rule: rule.Name}
				break
			}
		}
	}
	e.metrics.IncDecision(string(action), decision.Rule, decision.Allowed)
	return decision
}

// Require converts a denial into a coded error: unauthorized for anonymous
// callers, forbidden otherwise.
func (e *Evaluator) Require(ctx context.Context, actor domain.Actor, action Action, resource Resource) (Decision, error) {
	decision := e.Authorize(ctx, actor, action, resource)
	if decision.Allowed {
		return decision, nil
	}
	if actor.IsAnonymous() {
		return decision, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return decision, dErrors.New(dErrors.CodeForbidden, "not permitted to "+string(action))
}

package policy

import (
	"context"
	"slices"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

type Action string

const (
	ActionShopCreate    Action = "shop.create"
	ActionShopRead      Action = "shop.read"
	ActionShopDelete    Action = "shop.delete"
	ActionShopApprove   Action = "shop.approve"
	ActionShopReject    Action = "shop.reject"
	ActionShopSuspend   Action = "shop.suspend"
	ActionShopReinstate Action = "shop.reinstate"
	ActionWarningIssue  Action = "warning.issue"

	ActionDocumentCreate  Action = "document.create"
	ActionDocumentRead    Action = "document.read"
	ActionDocumentApprove Action = "document.approve"
	ActionDocumentReject  Action = "document.reject"

	ActionInspectionSchedule Action = "inspection.schedule"
	ActionInspectionRead     Action = "inspection.read"
	ActionInspectionStart    Action = "inspection.start"
	ActionInspectionComplete Action = "inspection.complete"
	ActionInspectionCancel   Action = "inspection.cancel"

	ActionReviewCreate   Action = "review.create"
	ActionReviewRead     Action = "review.read"
	ActionFavoriteCreate Action = "favorite.create"
	ActionFavoriteRead   Action = "favorite.read"

	ActionTemplateRead     Action = "notification_template.read"
	ActionNotificationRead Action = "notification.read"
	ActionNotificationSend Action = "notification.send"
	ActionComplianceRead   Action = "compliance.read"
	ActionComplianceRun    Action = "compliance.compute"

	ActionSystemRecompute Action = "system.recompute"
	ActionSystemNotify    Action = "system.notify"
	ActionSystemSweep     Action = "system.sweep"
	ActionSystemRoleSet   Action = "system.role.set"
	ActionAuditRead       Action = "audit.read"
)

const (
	RuleService          = "service"
	RulePublicRead       = "public_read"
	RuleGovernmentRole   = "government_role"
	RuleSelfOwnership    = "self_ownership"
	RuleRoleScopedCreate = "role_scoped_create"
	RuleDefaultDeny      = "default_deny"
)

// actionSpec is the data each rule predicates on.
type actionSpec struct {
	// service actions may be performed by the internal service identity.
	service bool
	// public actions are readable by anyone; publicShop additionally requires
	// the shop to be approved.
	public     bool
	publicShop bool
	// government actions are allowed to actors whose looked-up role is government.
	government bool
	// assignedInspector narrows the government rule to the inspection's inspector.
	assignedInspector bool
	// owner actions are allowed when the actor matches an ownership field.
	owner bool
	// createRoles may perform the action regardless of ownership.
	createRoles []domain.Role
}

var actionSpecs = map[Action]actionSpec{
	ActionShopCreate:    {createRoles: []domain.Role{domain.RoleShopOwner}},
	ActionShopRead:      {publicShop: true, government: true, owner: true},
	ActionShopDelete:    {owner: true},
	ActionShopApprove:   {government: true},
	ActionShopReject:    {government: true},
	ActionShopSuspend:   {government: true},
	ActionShopReinstate: {government: true},
	ActionWarningIssue:  {government: true},

	ActionDocumentCreate:  {owner: true},
	ActionDocumentRead:    {government: true, owner: true},
	ActionDocumentApprove: {government: true},
	ActionDocumentReject:  {government: true},

	ActionInspectionSchedule: {government: true},
	ActionInspectionRead:     {government: true, owner: true},
	ActionInspectionStart:    {government: true, assignedInspector: true},
	ActionInspectionComplete: {government: true, assignedInspector: true},
	ActionInspectionCancel:   {owner: true},

	ActionReviewCreate:   {createRoles: []domain.Role{domain.RoleCustomer}},
	ActionReviewRead:     {public: true},
	ActionFavoriteCreate: {createRoles: []domain.Role{domain.RoleCustomer}},
	ActionFavoriteRead:   {owner: true},

	ActionTemplateRead:     {public: true},
	ActionNotificationRead: {owner: true},
	ActionNotificationSend: {service: true, government: true},
	ActionComplianceRead:   {publicShop: true, government: true, owner: true},
	ActionComplianceRun:    {service: true, government: true, owner: true},

	ActionSystemRecompute: {service: true},
	ActionSystemNotify:    {service: true},
	ActionSystemSweep:     {service: true},
	ActionSystemRoleSet:   {service: true},
	ActionAuditRead:       {service: true, government: true},
}

// Actions lists every action the table knows about.
func Actions() []Action {
	out := make([]Action, 0, len(actionSpecs))
	for a := range actionSpecs {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// input is what a rule sees. The looked-up role is resolved at most once per
// evaluation.
type input struct {
	ctx     context.Context
	request Request
	spec    actionSpec
	roles   RoleLookup

	roleResolved bool
	role         domain.Role
	roleErr      error
}

func (in *input) resolvedRole() (domain.Role, error) {
	if !in.roleResolved {
		in.role, in.roleErr = in.roles.RoleOf(in.ctx, in.request.Actor)
		in.roleResolved = true
	}
	return in.role, in.roleErr
}

// Rule is one named predicate of the table.
type Rule struct {
	Name  string
	Match func(in *input) (bool, error)
}

// DefaultRules returns the rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleService, Match: matchService},
		{Name: RulePublicRead, Match: matchPublicRead},
		{Name: RuleGovernmentRole, Match: matchGovernmentRole},
		{Name: RuleSelfOwnership, Match: matchSelfOwnership},
		{Name: RuleRoleScopedCreate, Match: matchRoleScopedCreate},
	}
}

func matchService(in *input) (bool, error) {
	return in.spec.service && in.request.Actor.IsService() && !in.request.Actor.IsAnonymous(), nil
}

func matchPublicRead(in *input) (bool, error) {
	if in.spec.public {
		return true, nil
	}
	return in.spec.publicShop && in.request.Resource.ShopStatus == models.ShopStatusApproved, nil
}

func matchGovernmentRole(in *input) (bool, error) {
	actor := in.request.Actor
	if !in.spec.government || actor.IsAnonymous() || actor.IsService() {
		return false, nil
	}
	role, err := in.resolvedRole()
	if err != nil {
		return false, err
	}
	if role != domain.RoleGovernment {
		return false, nil
	}
	if in.spec.assignedInspector {
		return actor.ID == in.request.Resource.InspectorID, nil
	}
	return true, nil
}

func matchSelfOwnership(in *input) (bool, error) {
	actor := in.request.Actor
	if !in.spec.owner || actor.IsAnonymous() {
		return false, nil
	}
	res := in.request.Resource
	for _, owner := range []domain.ActorID{res.OwnerID, res.InspectorID, res.AuthorID} {
		if !owner.IsNil() && owner == actor.ID {
			return true, nil
		}
	}
	return false, nil
}

func matchRoleScopedCreate(in *input) (bool, error) {
	if len(in.spec.createRoles) == 0 || in.request.Actor.IsAnonymous() {
		return false, nil
	}
	role, err := in.resolvedRole()
	if err != nil {
		return false, err
	}
	return slices.Contains(in.spec.createRoles, role), nil
}

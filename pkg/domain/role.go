package domain

import dErrors "govdash/pkg/domain-errors"

// Role is the actor class asserted by the identity provider.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleShopOwner  Role = "shop_owner"
	RoleGovernment Role = "government"
	// RoleService marks the internal service identity. It is never issued to
	// end users; only the service-key middleware can place it in a context.
	RoleService Role = "service"
	// RoleAnonymous is the zero role of an unauthenticated caller.
	RoleAnonymous Role = ""
)

// IsValid reports whether r is a role an end user may hold.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleShopOwner, RoleGovernment:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole validates a role claim from the identity provider.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+s)
	}
	return r, nil
}

// Actor is the resolved (identity, role) pair every command carries.
type Actor struct {
	ID   ActorID
	Role Role
}

// Anonymous is the actor of an unauthenticated request.
var Anonymous = Actor{}

// IsAnonymous reports whether the actor carries no identity.
func (a Actor) IsAnonymous() bool {
	return a.ID.IsNil()
}

// IsService reports whether the actor is the internal service identity.
func (a Actor) IsService() bool {
	return a.Role == RoleService
}

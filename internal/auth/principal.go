// README: Authenticated principal claims carried by every request and connection.
package auth

import "github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRider      Role = "rider"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Principal is the claim bundle resolved from a credential. It is never
// persisted as a domain entity.
type Principal struct {
	ID           types.ID
	Role         Role
	TenantID     types.ID
	SessionEpoch int64
}

// SingleSession reports whether this role is subject to single-active-session
// enforcement (epoch comparison on every gated call).
func (r Role) SingleSession() bool {
	return r == RoleStaff || r == RoleAdmin
}

// PlatformWide reports whether the role is scoped to the whole platform
// rather than one tenant.
func (r Role) PlatformWide() bool {
	return r == RoleSuperAdmin
}

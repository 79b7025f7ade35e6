// Package routing maps the session state to the screen the user lands on.
package routing

import (
	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// Route is a navigation target understood by the host navigation stack.
type Route string

const (
	// RouteLogin is the sign-in screen.
	RouteLogin Route = "/auth/login"
	// RouteAdminDashboard is the admin section entry.
	RouteAdminDashboard Route = "/admin/admin-dashboard"
	// RouteShopDashboard is the shop owner section entry.
	RouteShopDashboard Route = "/shop/shop-dashboard"
	// RouteCustomerDashboard is the customer section entry.
	RouteCustomerDashboard Route = "/customer/customer-dashboard"
	// RouteError is the static recoverable error screen.
	RouteError Route = "/error"
)

// Resolve returns the landing route for an authentication state and role.
// Signed-out users and users with an unknown role go to the login screen.
func Resolve(isAuthenticated bool, role auth.Role) Route {
	if !isAuthenticated {
		return RouteLogin
	}
	switch role {
	case auth.RoleAdmin:
		return RouteAdminDashboard
	case auth.RoleShopOwner:
		return RouteShopDashboard
	case auth.RoleCustomer:
		return RouteCustomerDashboard
	default:
		return RouteLogin
	}
}

// Section is the resolved state of the gate.
type Section int

const (
	SectionUnresolved Section = iota
	SectionLoggedOut
	SectionAdmin
	SectionShopOwner
	SectionCustomer
	SectionFailed
)

func (s Section) String() string {
	switch s {
	case SectionLoggedOut:
		return "logged_out"
	case SectionAdmin:
		return "admin"
	case SectionShopOwner:
		return "shop_owner"
	case SectionCustomer:
		return "customer"
	case SectionFailed:
		return "failed"
	default:
		return "unresolved"
	}
}

func sectionOf(r Route) Section {
	switch r {
	case RouteAdminDashboard:
		return SectionAdmin
	case RouteShopDashboard:
		return SectionShopOwner
	case RouteCustomerDashboard:
		return SectionCustomer
	case RouteLogin:
		return SectionLoggedOut
	default:
		return SectionFailed
	}
}

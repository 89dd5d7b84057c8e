package rbac

import (
	"context"

	"github.com/sevensea/warehouse/internal/shared"
)

// Role groups the permissions granted to one user role.
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Roles returns the fixed role matrix.
func Roles() []Role {
	names := []string{shared.RoleAdmin, shared.RoleStaff, shared.RoleVendor}
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, Role{Name: name, Permissions: shared.RoleScopes(name)})
	}
	return roles
}

// Account is the subset of a user needed for authorization.
type Account struct {
	ID           string
	Email        string
	Role         string
	VendorNumber string
	Active       bool
	Suspended    bool
}

// AccountSource looks up accounts by id.
type AccountSource interface {
	AccountByID(ctx context.Context, id string) (Account, error)
}

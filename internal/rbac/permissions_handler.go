package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/shared"
)

// PermissionsHandler exposes the caller's permissions and the role matrix.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny())
		r.Get("/", h.mine)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView))
		r.Get("/roles", h.roles)
	})
}

func (h *PermissionsHandler) mine(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":          principal.Role,
		"permissions":   shared.RoleScopes(principal.Role),
		"vendorNumbers": shared.ScopeFor(principal.Role, principal.VendorNumber),
	})
}

func (h *PermissionsHandler) roles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": Roles()})
}

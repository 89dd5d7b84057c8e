package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sevensea/warehouse/internal/auth"
	"github.com/sevensea/warehouse/internal/billing"
	"github.com/sevensea/warehouse/internal/inventory"
	"github.com/sevensea/warehouse/internal/observability"
	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
	"github.com/sevensea/warehouse/internal/users"
	"github.com/sevensea/warehouse/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	InventoryHandler   *inventory.Handler
	BillingHandler     *billing.Handler
	UsersHandler       *users.Handler
	JobHandler         *jobs.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with warehouse defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.RBACMiddleware.Authenticate)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "No route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.InventoryHandler != nil {
		r.Route("/products", params.InventoryHandler.MountProducts)
		r.Route("/transactions", params.InventoryHandler.MountTransactions)
		r.Route("/orders", params.InventoryHandler.MountOrders)
		r.Route("/reports", params.InventoryHandler.MountReports)
		r.Route("/dashboard", params.InventoryHandler.MountDashboard)
	}
	if params.BillingHandler != nil {
		r.Route("/billings", params.BillingHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sevensea/warehouse/internal/auth"
	"github.com/sevensea/warehouse/internal/billing"
	"github.com/sevensea/warehouse/internal/inventory"
	"github.com/sevensea/warehouse/internal/observability"
	"github.com/sevensea/warehouse/internal/platform/docstore"
	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
	"github.com/sevensea/warehouse/internal/users"
	"github.com/sevensea/warehouse/jobs"
)

// Dependencies are the infrastructure handles shared by every service.
type Dependencies struct {
	Config  *Config
	Logger  *slog.Logger
	Store   docstore.Store
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	// HashCost overrides the bcrypt cost; zero keeps the default.
	HashCost int
}

// Services holds the domain services built over one document store.
type Services struct {
	Inventory *inventory.Service
	Billing   *billing.Service
	Users     *users.Service
	Auth      *auth.Service
	RBAC      *rbac.Service
}

// NewServices wires the domain services. Audit entries go to PostgreSQL when
// a pool is available and to the logger otherwise.
func NewServices(deps Dependencies) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var audit inventory.AuditPort
	if deps.Pool != nil {
		audit = shared.NewAuditLogger(deps.Pool)
	} else {
		audit = shared.NewLogAuditor(logger)
	}

	var (
		locker        *shared.Locker
		billingLocker *shared.Locker
		idem          *shared.IdempotencyStore
	)
	if deps.Redis != nil {
		idem = shared.NewIdempotencyStore(deps.Redis, deps.Config.IdempotencyTTL)
		// The worker's overdue sweep writes billings too.
		billingLocker = shared.NewLocker(deps.Redis, deps.Config.LockTTL)
		if deps.Config.LockEnabled {
			locker = shared.NewLocker(deps.Redis, deps.Config.LockTTL)
		}
	}
	invCfg := inventory.ServiceConfig{Locker: locker, Logger: logger}
	if deps.Metrics != nil {
		invCfg.Metrics = deps.Metrics
	}
	inventoryService := inventory.NewService(inventory.NewRepository(deps.Store), audit, idem, invCfg)
	billingService := billing.NewService(billing.NewRepository(deps.Store), audit, logger, nil).WithLocker(billingLocker)
	usersService := users.NewService(users.NewRepository(deps.Store), audit, users.ServiceConfig{Logger: logger, HashCost: deps.HashCost})

	var sessions auth.Repository
	if deps.Redis != nil {
		sessions = auth.NewRepository(deps.Redis)
	}
	return &Services{
		Inventory: inventoryService,
		Billing:   billingService,
		Users:     usersService,
		Auth:      auth.NewService(usersService, sessions),
		RBAC:      rbac.NewService(usersService),
	}
}

// SeedAccounts creates the default accounts when SEED_ACCOUNTS is set and the
// user store is empty.
func (s *Services) SeedAccounts(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if !cfg.SeedAccounts {
		return nil
	}
	created, err := s.Users.SeedDefaultAccounts(ctx, cfg.SeedPassword, cfg.SeedEmailDomain)
	if err != nil {
		return err
	}
	if created > 0 {
		logger.Info("seeded default accounts", slog.Int("count", created), slog.String("domain", cfg.SeedEmailDomain))
	}
	return nil
}

// NewAPI builds every HTTP handler over services and returns the router.
// inspector may be nil when no queue is reachable.
func NewAPI(deps Dependencies, services *Services, inspector *asynq.Inspector) http.Handler {
	cfg := deps.Config
	logger := deps.Logger
	sessions := shared.NewSessionManager(deps.Redis, "warehouse_session", cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	guard := rbac.Middleware{Service: services.RBAC, Logger: logger}

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		RBACMiddleware: guard,
		AuthHandler:    auth.NewHandler(logger, services.Auth, sessions, csrf),
		InventoryHandler: inventory.NewHandler(logger, services.Inventory, guard, inventory.HandlerConfig{
			TrendLookback: cfg.TrendLookback,
			TrendWindow:   cfg.TrendWindow,
		}),
		BillingHandler:     billing.NewHandler(logger, services.Billing, guard),
		UsersHandler:       users.NewHandler(logger, services.Users, guard),
		JobHandler:         jobs.NewHandler(inspector, logger),
		PermissionsHandler: rbac.NewPermissionsHandler(guard),
		Metrics:            deps.Metrics,
	})
}

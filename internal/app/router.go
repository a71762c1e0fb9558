package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/masig/pricebook/internal/activity"
	"github.com/masig/pricebook/internal/auth"
	"github.com/masig/pricebook/internal/observability"
	"github.com/masig/pricebook/internal/platform/httpx"
	"github.com/masig/pricebook/internal/products"
	"github.com/masig/pricebook/internal/rbac"
	"github.com/masig/pricebook/internal/shared"
	"github.com/masig/pricebook/internal/stats"
	"github.com/masig/pricebook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	RBACMiddleware  rbac.Middleware
	AuthHandler     *auth.Handler
	ProductsHandler *products.Handler
	StatsHandler    *stats.Handler
	ActivityHandler *activity.Handler
	AdminHandler    *rbac.AdminHandler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

type pageRoute struct {
	path string
	perm string
	role rbac.Role
}

var pageRoutes = []pageRoute{
	{path: "/dashboard"},
	{path: "/settings"},
	{path: "/products", perm: shared.PermProductsView},
	{path: "/reports", perm: shared.PermReportsView},
	{path: "/admin/users", role: rbac.RoleAdmin},
}

// NewRouter constructs the chi.Router with pricebook defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		RBAC:           params.RBACMiddleware,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		r.Route("/products", func(r chi.Router) {
			if params.StatsHandler != nil {
				params.StatsHandler.MountRoutes(r)
			}
			if params.ProductsHandler != nil {
				params.ProductsHandler.MountRoutes(r)
			}
		})
		if params.ActivityHandler != nil {
			r.Route("/activity", params.ActivityHandler.MountRoutes)
		}
		if params.AdminHandler != nil {
			r.Route("/admin", params.AdminHandler.MountRoutes)
		}
	})

	for _, page := range pageRoutes {
		guard := params.RBACMiddleware.Page(page.perm)
		if page.role != "" {
			guard = params.RBACMiddleware.PageRole(page.role)
		}
		r.With(guard).Get(page.path, admittedPage(page.path))
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		target := params.RBACMiddleware.Paths.Landing
		if target == "" {
			target = rbac.DefaultPaths.Landing
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// admittedPage answers an admitted page request. Rendering belongs to the
// client application.
func admittedPage(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"page": path})
	}
}

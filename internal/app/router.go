package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/auth"
	"github.com/storecraft/backoffice/internal/guard"
	"github.com/storecraft/backoffice/internal/observability"
	"github.com/storecraft/backoffice/internal/roles"
	"github.com/storecraft/backoffice/internal/sections"
	"github.com/storecraft/backoffice/internal/shared"
	"github.com/storecraft/backoffice/internal/users"
	"github.com/storecraft/backoffice/jobs"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	Registry        *access.Registry
	Guard           *guard.Guard
	AuthHandler     *auth.Handler
	AccessHandler   *guard.Handler
	RolesHandler    *roles.Handler
	UsersHandler    *users.Handler
	SectionsHandler *sections.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
	Health          map[string]HealthChecker
}

// NewRouter constructs the chi.Router with back-office defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Registry:       params.Registry,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.Health, logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/api", func(r chi.Router) {
		if params.AccessHandler != nil {
			r.Route("/access", params.AccessHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.SectionsHandler != nil {
			r.Route("/sites/{siteID}/sections", params.SectionsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.Guard.RequireAny(shared.PermSettingsGeneral))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	dir := ""
	if params.Config != nil {
		dir = params.Config.DashboardDir
	}
	if dir != "" {
		r.Handle("/assets/*", staticCacheHandler(http.FileServer(http.Dir(dir))))
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})
	r.With(params.Guard.Middleware).Get("/*", dashboardHandler(dir))

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

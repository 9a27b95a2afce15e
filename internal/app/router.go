package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/minerva-sms/minerva/internal/auth"
	"github.com/minerva-sms/minerva/internal/observability"
	"github.com/minerva-sms/minerva/internal/permissions"
	"github.com/minerva-sms/minerva/internal/rbac"
	"github.com/minerva-sms/minerva/internal/roles"
	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *permissions.Handler
	RBACHandler        *rbac.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Minerva defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r)
			params.RBACHandler.MountRoleRoutes(r)
		})
		r.Route("/permissions", func(r chi.Router) {
			params.PermissionsHandler.MountRoutes(r)
			params.RBACHandler.MountPermissionRoutes(r)
		})
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
			params.RBACHandler.MountUserRoutes(r)
		})
	})

	return r
}

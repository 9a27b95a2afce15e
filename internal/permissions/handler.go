package permissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minerva-sms/minerva/internal/platform/httpx"
	"github.com/minerva-sms/minerva/internal/rbac"
	"github.com/minerva-sms/minerva/internal/shared"
)

// Handler manages permission catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	GroupName   string `json:"group_name"`
	Description string `json:"description"`
}

type groupResponse struct {
	Name        string               `json:"name"`
	Permissions []permissionResponse `json:"permissions"`
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermPermissionsView))
		r.Get("/", h.listPermissions)
		r.Get("/grouped", h.listGrouped)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		resp = append(resp, toPermissionResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": resp})
}

func (h *Handler) listGrouped(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGrouped(r.Context())
	if err != nil {
		h.logger.Error("list grouped permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		gr := groupResponse{Name: g.Name, Permissions: make([]permissionResponse, 0, len(g.Permissions))}
		for _, p := range g.Permissions {
			gr.Permissions = append(gr.Permissions, toPermissionResponse(p))
		}
		resp = append(resp, gr)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": resp})
}

func toPermissionResponse(p rbac.Permission) permissionResponse {
	return permissionResponse{
		ID:          p.ID,
		Key:         p.Key,
		DisplayName: p.DisplayName,
		GroupName:   p.GroupName,
		Description: p.Description,
	}
}

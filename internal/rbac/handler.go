package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/minerva-sms/minerva/internal/platform/httpx"
	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

// Handler exposes the assignment and impact operations over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resolver *Resolver
	analyzer *Analyzer
	mw       Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, analyzer *Analyzer, mw Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		resolver: resolver,
		analyzer: analyzer,
		mw:       mw,
		validate: validator.New(),
	}
}

type replacePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required,dive,gt=0"`
}

type assignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required,min=1,dive,gt=0"`
}

type clonePermissionsRequest struct {
	SourceRoleID int64 `json:"source_role_id" validate:"required,gt=0"`
}

type assignRoleRequest struct {
	RoleID   int64 `json:"role_id" validate:"required,gt=0"`
	TenantID int64 `json:"tenant_id" validate:"gte=0"`
}

type replaceRolesRequest struct {
	RoleIDs  []int64 `json:"role_ids" validate:"required,dive,gt=0"`
	TenantID int64   `json:"tenant_id" validate:"gte=0"`
}

type syncResultResponse struct {
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
}

// MountRoleRoutes registers the role-permission assignment routes,
// relative to the roles subtree. Mutations share a modest rate limit.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermRolesEdit))
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Put("/{roleID}/permissions", h.replaceRolePermissions)
		r.Post("/{roleID}/permissions", h.assignPermissionsToRole)
		r.Post("/{roleID}/permissions/clone", h.cloneRolePermissions)
		r.Delete("/{roleID}/permissions", h.removeAllPermissionsFromRole)
		r.Delete("/{roleID}/permissions/{permissionID}", h.removePermissionFromRole)
	})
}

// MountUserRoutes registers the user-role assignment routes, relative to
// the users subtree.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermUsersEdit))
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Put("/{userID}/roles", h.replaceAllRoles)
		r.Post("/{userID}/roles", h.assignRole)
		r.Delete("/{userID}/roles", h.removeAllRoles)
		r.Delete("/{userID}/roles/{roleID}", h.removeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermUsersView))
		r.Get("/{userID}/roles/{roleID}", h.userHasRole)
		r.Get("/{userID}/permissions", h.effectivePermissions)
	})
}

// MountPermissionRoutes registers the impact routes, relative to the
// permissions subtree.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermPermissionsView))
		r.Get("/{permissionID}/impact", h.permissionImpact)
		r.Get("/{permissionID}/impact/count", h.permissionImpactCount)
	})
}

func (h *Handler) replaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	p, roleID, ok := h.principalAndID(w, r, "roleID")
	if !ok {
		return
	}
	var req replacePermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.ReplaceRolePermissions(r.Context(), p, roleID, req.PermissionIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSyncResponse(result))
}

func (h *Handler) assignPermissionsToRole(w http.ResponseWriter, r *http.Request) {
	p, roleID, ok := h.principalAndID(w, r, "roleID")
	if !ok {
		return
	}
	var req assignPermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.AssignPermissionsToRole(r.Context(), p, roleID, req.PermissionIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSyncResponse(result))
}

func (h *Handler) cloneRolePermissions(w http.ResponseWriter, r *http.Request) {
	p, targetID, ok := h.principalAndID(w, r, "roleID")
	if !ok {
		return
	}
	var req clonePermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.CloneRolePermissions(r.Context(), p, req.SourceRoleID, targetID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSyncResponse(result))
}

func (h *Handler) removeAllPermissionsFromRole(w http.ResponseWriter, r *http.Request) {
	p, roleID, ok := h.principalAndID(w, r, "roleID")
	if !ok {
		return
	}
	if _, err := h.service.RemoveAllPermissionsFromRole(r.Context(), p, roleID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removePermissionFromRole(w http.ResponseWriter, r *http.Request) {
	p, roleID, ok := h.principalAndID(w, r, "roleID")
	if !ok {
		return
	}
	permissionID, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if _, err := h.service.RemovePermissionFromRole(r.Context(), p, roleID, permissionID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) replaceAllRoles(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.principalAndID(w, r, "userID")
	if !ok {
		return
	}
	var req replaceRolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.ReplaceAllRoles(r.Context(), p, userID, req.RoleIDs, tenancy.ID(req.TenantID))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSyncResponse(result))
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.principalAndID(w, r, "userID")
	if !ok {
		return
	}
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AssignRole(r.Context(), p, userID, req.RoleID, tenancy.ID(req.TenantID)); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeAllRoles(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.principalAndID(w, r, "userID")
	if !ok {
		return
	}
	tenant, ok := h.requestedTenant(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveAllRoles(r.Context(), p, userID, tenant); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.principalAndID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	tenant, ok := h.requestedTenant(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), p, userID, roleID, tenant); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) userHasRole(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.principalAndID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	tenant, ok := h.requestedTenant(w, r)
	if !ok {
		return
	}
	held, err := h.service.UserHasRole(r.Context(), p, userID, roleID, tenant)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"has_role": held})
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.principalAndID(w, r, "userID")
	if !ok {
		return
	}
	tenant, ok := h.requestedTenant(w, r)
	if !ok {
		return
	}
	if err := h.service.AuthorizeUserRead(r.Context(), p, userID, tenant); err != nil {
		h.respondError(w, r, err)
		return
	}
	set, err := h.resolver.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": set.Keys()})
}

func (h *Handler) permissionImpact(w http.ResponseWriter, r *http.Request) {
	_, permissionID, ok := h.principalAndID(w, r, "permissionID")
	if !ok {
		return
	}
	impacts, err := h.analyzer.UsersWithPermission(r.Context(), permissionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": impacts, "count": len(impacts)})
}

func (h *Handler) permissionImpactCount(w http.ResponseWriter, r *http.Request) {
	_, permissionID, ok := h.principalAndID(w, r, "permissionID")
	if !ok {
		return
	}
	count, err := h.analyzer.CountUsersWithPermission(r.Context(), permissionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) principalAndID(w http.ResponseWriter, r *http.Request, param string) (tenancy.Principal, int64, bool) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return tenancy.Principal{}, 0, false
	}
	id, ok := h.pathID(w, r, param)
	if !ok {
		return tenancy.Principal{}, 0, false
	}
	return p, id, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("rbac request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func (h *Handler) requestedTenant(w http.ResponseWriter, r *http.Request) (tenancy.ID, bool) {
	raw := r.URL.Query().Get("tenant_id")
	if raw == "" {
		return tenancy.Nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant_id")
		return tenancy.Nil, false
	}
	return tenancy.ID(id), true
}

func toSyncResponse(result SyncResult) syncResultResponse {
	resp := syncResultResponse{Added: result.Added, Removed: result.Removed}
	if resp.Added == nil {
		resp.Added = []int64{}
	}
	if resp.Removed == nil {
		resp.Removed = []int64{}
	}
	return resp
}

package roles

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/guard"
	"github.com/storecraft/backoffice/internal/platform/httpx"
	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *rbac.Service
	guard    *guard.Guard
	sessions SessionRefresher
	warmups  WarmupEnqueuer
}

// NewHandler builds Handler instance. sessions and warmups may be nil.
func NewHandler(logger *slog.Logger, service *rbac.Service, g *guard.Guard, sessions SessionRefresher, warmups WarmupEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: g, sessions: sessions, warmups: warmups}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermRolesManage))
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/permissions", h.listPermissions)
		r.Get("/{roleID}", h.getRole)
		r.Put("/{roleID}", h.updateRole)
		r.Delete("/{roleID}", h.deleteRole)
		r.Post("/{roleID}/permissions/{permissionID}", h.togglePermission)
	})
}

func actor(r *http.Request) rbac.Actor {
	sess := access.SessionFromContext(r.Context())
	if sess == nil {
		return rbac.Actor{}
	}
	return rbac.Actor{UID: sess.Identity().UID, TenantID: sess.BusinessID()}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("roles request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context(), actor(r).TenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.PermissionGroups(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	roleID := chi.URLParam(r, "roleID")
	role, err := h.service.GetRole(r.Context(), a.TenantID, roleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ids, err := h.service.RolePermissionIDs(r.Context(), a.TenantID, roleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httpx.JSON(w, http.StatusOK, RoleDetail{Role: role, PermissionIDs: ids})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in rbac.RoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", rbac.ErrValidation, err))
		return
	}
	role, err := h.service.CreateRole(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var in rbac.RoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", rbac.ErrValidation, err))
		return
	}
	role, err := h.service.UpdateRole(r.Context(), actor(r), chi.URLParam(r, "roleID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), actor(r), chi.URLParam(r, "roleID")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.refreshSession(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) togglePermission(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Enabled == nil {
		h.fail(w, r, fmt.Errorf("%w: enabled is required", rbac.ErrValidation))
		return
	}
	roleID := chi.URLParam(r, "roleID")
	ids, err := h.service.TogglePermission(r.Context(), actor(r), roleID, chi.URLParam(r, "permissionID"), *req.Enabled)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.refreshSession(r)
	if h.warmups != nil {
		if err := h.warmups.EnqueueRoleWarmup(r.Context(), roleID); err != nil {
			h.logger.Warn("enqueue role warmup", slog.String("role_id", roleID), slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_id": roleID, "permission_ids": ids})
}

// refreshSession reloads the editor's own session so its checks see the new role state.
func (h *Handler) refreshSession(r *http.Request) {
	sess := access.SessionFromContext(r.Context())
	if h.sessions == nil || sess == nil {
		return
	}
	if _, err := h.sessions.Refresh(r.Context(), sess.ID()); err != nil {
		h.logger.Warn("refresh session after role edit", slog.String("session_id", sess.ID()), slog.Any("error", err))
	}
}

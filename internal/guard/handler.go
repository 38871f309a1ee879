package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/platform/httpx"
	"github.com/storecraft/backoffice/internal/shared"
)

// Handler serves the access API used by the dashboard shell.
type Handler struct {
	logger   *slog.Logger
	guard    *Guard
	registry *access.Registry
	nav      []NavItem
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, guard *Guard, registry *access.Registry, nav []NavItem) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if nav == nil {
		nav = DefaultNavigation()
	}
	return &Handler{logger: logger, guard: guard, registry: registry, nav: nav}
}

// MountRoutes registers access routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/route", h.route)
	r.Post("/check", h.check)
	r.Get("/nav", h.navigation)
	r.Post("/refresh", h.refresh)
	r.Get("/me", h.me)
}

type checkRequest struct {
	Kind perm.Kind `json:"kind"`
	Keys []string  `json:"keys"`
}

type meResponse struct {
	UID              string   `json:"uid"`
	Email            string   `json:"email"`
	BusinessID       string   `json:"business_id,omitempty"`
	BusinessName     string   `json:"business_name,omitempty"`
	Role             string   `json:"role,omitempty"`
	Plan             string   `json:"plan,omitempty"`
	Owner            bool     `json:"owner"`
	StaffPermissions []string `json:"staff_permissions"`
	RBACRoleID       string   `json:"rbac_role_id,omitempty"`
	Effective        []string `json:"effective"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*access.Session, bool) {
	sess := access.SessionFromContext(r.Context())
	if sess.Disposed() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	return sess, true
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	p := strings.TrimSpace(r.URL.Query().Get("path"))
	if p == "" {
		httpx.RespondError(w, fmt.Errorf("%w: path is required", httpx.ErrValidation))
		return
	}
	httpx.JSON(w, http.StatusOK, h.guard.CheckNavigation(r.Context(), sess, p))
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	keys := perm.Normalize(req.Keys)
	if req.Kind == perm.One && len(keys) != 1 {
		httpx.RespondError(w, fmt.Errorf("%w: kind one takes exactly one key", httpx.ErrValidation))
		return
	}
	d := h.guard.Aggregator().Decide(r.Context(), sess, perm.Query{Kind: req.Kind, Keys: keys})
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) navigation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": h.guard.Navigation(r.Context(), sess, h.nav)})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	refreshed, err := h.registry.Refresh(r.Context(), sess.ID())
	if err != nil {
		if errors.Is(err, access.ErrNoSession) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if errors.Is(err, business.ErrNoMembership) || errors.Is(err, business.ErrBusinessNotFound) {
			h.registry.Dispose(sess.ID())
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "membership no longer active")
			return
		}
		h.logger.Error("access refresh", slog.String("session_id", sess.ID()), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Refresh Failed", shared.UserSafeMessage(err))
		return
	}
	h.writeMe(w, r, refreshed)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeMe(w, r, sess)
}

func (h *Handler) writeMe(w http.ResponseWriter, r *http.Request, sess *access.Session) {
	id := sess.Identity()
	resp := meResponse{UID: id.UID, Email: id.Email, StaffPermissions: []string{}, Effective: []string{}}
	if bc := sess.Business(); bc != nil {
		resp.BusinessID = bc.BusinessID
		resp.BusinessName = bc.BusinessName
		resp.Role = bc.Role
		resp.Plan = bc.Plan.Type
		resp.Owner = bc.IsOwner()
		resp.StaffPermissions = bc.StaffPermissions.Keys()
	}
	if u, err := sess.RBACUser(r.Context()); err != nil {
		h.logger.Warn("access me rbac lookup", slog.String("session_id", sess.ID()), slog.Any("error", err))
	} else if u != nil {
		resp.RBACRoleID = u.RoleID
	}
	agg := h.guard.Aggregator()
	for _, key := range shared.AllScopes() {
		if agg.HasPermission(r.Context(), sess, key) {
			resp.Effective = append(resp.Effective, key)
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

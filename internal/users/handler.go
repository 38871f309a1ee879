package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/guard"
	"github.com/storecraft/backoffice/internal/platform/httpx"
	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/shared"
)

// Handler manages RBAC user endpoints.
type Handler struct {
	logger  *slog.Logger
	service *rbac.Service
	guard   *guard.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *rbac.Service, g *guard.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: g}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermUsersManage))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Patch("/{userID}", h.updateUser)
	})
}

type listResponse struct {
	Users      []rbac.User       `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func actor(r *http.Request) rbac.Actor {
	sess := access.SessionFromContext(r.Context())
	if sess == nil {
		return rbac.Actor{}
	}
	return rbac.Actor{UID: sess.Identity().UID, TenantID: sess.BusinessID()}
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("users request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, page, err := h.service.ListUsers(r.Context(), actor(r).TenantID, queryInt(r, "page"), queryInt(r, "per_page"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []rbac.User{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Users: list, Pagination: page})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in rbac.UserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", rbac.ErrValidation, err))
		return
	}
	u, err := h.service.CreateUser(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var in rbac.UserUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", rbac.ErrValidation, err))
		return
	}
	u, err := h.service.UpdateUser(r.Context(), actor(r), chi.URLParam(r, "userID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

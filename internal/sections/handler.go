package sections

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/guard"
	"github.com/storecraft/backoffice/internal/platform/httpx"
	"github.com/storecraft/backoffice/internal/shared"
)

// Handler serves the section editor API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *guard.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, g *guard.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: g}
}

// MountRoutes registers section routes under /api/sites/{siteID}/sections.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermSiteBuilder))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{sectionID}", h.get)
		r.Patch("/{sectionID}", h.patch)
		r.Delete("/{sectionID}", h.delete)
	})
}

func businessID(r *http.Request) string {
	return access.SessionFromContext(r.Context()).BusinessID()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !isClientError(err) {
		h.logger.Error("sections request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	return httpx.StatusFor(err) < http.StatusInternalServerError
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context(), businessID(r), chi.URLParam(r, "siteID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sections": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Get(r.Context(), businessID(r), chi.URLParam(r, "siteID"), chi.URLParam(r, "sectionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}
	out, err := h.service.Create(r.Context(), businessID(r), chi.URLParam(r, "siteID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	var in PatchInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}
	out, err := h.service.Patch(r.Context(), businessID(r), chi.URLParam(r, "siteID"), chi.URLParam(r, "sectionID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), businessID(r), chi.URLParam(r, "siteID"), chi.URLParam(r, "sectionID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

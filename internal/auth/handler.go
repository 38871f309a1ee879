package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/platform/httpx"
	"github.com/storecraft/backoffice/internal/shared"
)

// SessionOpener opens and disposes access sessions.
type SessionOpener interface {
	Open(ctx context.Context, id string, identity shared.Identity, businessID string) (*access.Session, error)
	Dispose(id string)
}

// BusinessLister lists the businesses an identity may switch to.
type BusinessLister interface {
	ListForIdentity(ctx context.Context, identity shared.Identity) ([]business.Summary, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	verifier       *Verifier
	registry       SessionOpener
	businesses     BusinessLister
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, verifier *Verifier, registry SessionOpener, businesses BusinessLister, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		verifier:       verifier,
		registry:       registry,
		businesses:     businesses,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrf)
	r.Post("/session", h.signIn)
	r.Post("/logout", h.signOut)
	r.Post("/business", h.switchBusiness)
	r.Get("/businesses", h.listBusinesses)
}

type signInRequest struct {
	IDToken    string `json:"id_token" validate:"required"`
	BusinessID string `json:"business_id" validate:"omitempty,max=64"`
}

type switchRequest struct {
	BusinessID string `json:"business_id" validate:"required,max=64"`
}

type sessionResponse struct {
	UID        string `json:"uid"`
	Email      string `json:"email"`
	BusinessID string `json:"business_id,omitempty"`
	Owner      bool   `json:"owner"`
	CSRFToken  string `json:"csrf_token"`
}

func (h *Handler) csrf(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during sign-in")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}
	var req signInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	identity, err := h.verifier.Verify(req.IDToken)
	if err != nil {
		h.logger.Info("sign-in rejected", slog.String("reason", err.Error()))
		httpx.RespondError(w, fmt.Errorf("%w: identity token rejected", httpx.ErrUnauthorized))
		return
	}
	accessSess, err := h.registry.Open(r.Context(), sess.ID, identity, req.BusinessID)
	if err != nil {
		h.openFailed(w, identity, req.BusinessID, err)
		return
	}
	sess.SignIn(identity, req.BusinessID)
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("signed in", slog.String("uid", identity.UID), slog.String("business_id", req.BusinessID))
	httpx.JSON(w, http.StatusOK, sessionResponse{
		UID:        identity.UID,
		Email:      identity.Email,
		BusinessID: accessSess.BusinessID(),
		Owner:      accessSess.IsOwner(),
		CSRFToken:  token,
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.registry.Dispose(sess.ID)
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) switchBusiness(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.SignedIn() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req switchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	identity := sess.Identity()
	accessSess, err := h.registry.Open(r.Context(), sess.ID, identity, req.BusinessID)
	if err != nil {
		h.openFailed(w, identity, req.BusinessID, err)
		return
	}
	sess.SetBusiness(req.BusinessID)
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		UID:        identity.UID,
		Email:      identity.Email,
		BusinessID: accessSess.BusinessID(),
		Owner:      accessSess.IsOwner(),
		CSRFToken:  token,
	})
}

func (h *Handler) listBusinesses(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.SignedIn() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.businesses.ListForIdentity(r.Context(), sess.Identity())
	if err != nil {
		h.logger.Error("list businesses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []business.Summary{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"businesses": items})
}

func (h *Handler) openFailed(w http.ResponseWriter, identity shared.Identity, businessID string, err error) {
	switch {
	case errors.Is(err, business.ErrNoMembership):
		httpx.RespondError(w, fmt.Errorf("%w: not a member of this business", httpx.ErrForbidden))
	case errors.Is(err, business.ErrBusinessNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: business %s", httpx.ErrNotFound, businessID))
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.RespondError(w, httpx.ErrUnauthorized)
	default:
		h.logger.Error("open access session",
			slog.String("uid", identity.UID),
			slog.String("business_id", businessID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

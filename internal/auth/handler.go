package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/shared"
	"github.com/sevensea/warehouse/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrfToken)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/activate", h.handleActivate)
	r.Get("/me", h.me)
	r.Get("/sessions", h.sessions)
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("auth: session missing"))
		return
	}
	var form loginRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		var verrs shared.ValidationErrors
		verrs.Add("", "request body is not valid JSON")
		httpx.RespondError(w, verrs.Err())
		return
	}
	if err := shared.ValidateStruct(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrAccountSuspended):
			httpx.Problem(w, http.StatusForbidden, "Account suspended", "Account suspended. Please contact administrator.")
		case errors.Is(err, shared.ErrInvalidCredentials):
			httpx.Problem(w, http.StatusUnauthorized, "Invalid credentials", "Invalid email or password")
		default:
			h.logger.Error("authenticate", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	// A fresh id and CSRF token on every login.
	h.sessionManager.Regenerate(sess)
	sess.SetUser(user.ID)
	h.csrfManager.Rotate(sess)
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	h.logger.InfoContext(r.Context(), "user signed in", slog.String("user", user.ID), slog.String("role", user.Role))
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user.Profile(), "csrfToken": token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var form activationRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		var verrs shared.ValidationErrors
		verrs.Add("", "request body is not valid JSON")
		httpx.RespondError(w, verrs.Err())
		return
	}
	if err := shared.ValidateStruct(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.ActivateInvitation(r.Context(), form.Token, form.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrValidation) {
			h.logger.Error("activate invitation", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user.Profile())
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Please sign in")
		return
	}
	user, err := h.service.CurrentUser(r.Context(), principal.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":          user.Profile(),
		"permissions":   shared.RoleScopes(user.Role),
		"vendorNumbers": users.AllowedVendorNumbers(&user),
	})
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Please sign in")
		return
	}
	records, err := h.service.Sessions(r.Context(), principal.UserID)
	if err != nil {
		h.logger.Error("list sessions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	current := ""
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		current = sess.ID
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sessions": records, "current": current})
}

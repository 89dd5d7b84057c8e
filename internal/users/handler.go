package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sevensea/warehouse/internal/platform/export"
	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/export", h.exportUsers)
		r.Get("/email-available", h.emailAvailable)
		r.Get("/{id}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUsersEdit))
		r.Post("/", h.createUser)
		r.Put("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
		r.Post("/{id}/suspend", h.suspendUser)
		r.Post("/{id}/activate", h.activateUser)
		r.Post("/{id}/password", h.resetPassword)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrConflict) {
		h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func badBody() error {
	var verrs shared.ValidationErrors
	verrs.Add("", "request body is not valid JSON")
	return verrs.Err()
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, "list users failed", err)
		return
	}
	q := r.URL.Query()
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		profiles = append(profiles, u.Profile())
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	items, meta := shared.Paginate(profiles, page, perPage)
	httpx.JSON(w, http.StatusOK, map[string]any{"users": items, "pagination": meta})
}

func (h *Handler) exportUsers(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		var verrs shared.ValidationErrors
		verrs.Add("format", "must be csv or xlsx")
		httpx.RespondError(w, verrs.Err())
		return
	}
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, "export users", err)
		return
	}
	body, err := export.Render(ExportTable(users), format)
	if err != nil {
		h.fail(w, r, "render users export", err)
		return
	}
	httpx.Attachment(w, format.ContentType(), "users-"+h.service.now().Format("2006-01-02")+"."+string(format), body)
}

func (h *Handler) emailAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unique, err := h.service.IsEmailUnique(r.Context(), q.Get("email"), q.Get("excludeId"))
	if err != nil {
		h.fail(w, r, "check email", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"available": unique})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u.Profile())
}

// createUser returns the invitation token once so the admin can share it.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, badBody())
		return
	}
	u, err := h.service.AddUser(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": u.Profile(), "invitationToken": u.InvitationToken})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, badBody())
		return
	}
	u, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u.Profile())
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) suspendUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.SuspendUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "suspend user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u.Profile())
}

func (h *Handler) activateUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.ActivateUserAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "activate user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u.Profile())
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, badBody())
		return
	}
	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "id"), body.Password); err != nil {
		h.fail(w, r, "reset password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

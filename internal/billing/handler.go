package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
)

// Handler manages billing endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: shared.NewValidator(), rbac: rbac}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	// View routes
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermBillingsView))
		r.Get("/", h.list)
		r.Get("/aging", h.aging)
		r.Get("/{id}", h.get)
	})

	// Mutation routes
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermBillingsEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/pay", h.markPaid)
	})
}

func scopeOf(r *http.Request) shared.VendorScope {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return shared.VendorScope{}
	}
	return shared.ScopeFor(p.Role, p.VendorNumber)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrConflict) {
		h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) decode(r *http.Request) (Input, error) {
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		var verrs shared.ValidationErrors
		verrs.Add("", "request body is not valid JSON")
		return Input{}, verrs.Err()
	}
	return input, shared.ValidateStruct(h.validator, input)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	billings, err := h.service.List(r.Context(), Filter{
		Status: Status(strings.ToLower(q.Get("status"))),
		Search: q.Get("search"),
		Scope:  scopeOf(r),
	})
	if err != nil {
		h.fail(w, r, "list billings", err)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	items, meta := shared.Paginate(billings, page, perPage)
	httpx.JSON(w, http.StatusOK, map[string]any{"billings": items, "pagination": meta})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), scopeOf(r))
	if err != nil {
		h.fail(w, r, "get billing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("asOf"))
	if err != nil {
		var verrs shared.ValidationErrors
		verrs.Add("asOf", "must be a date formatted YYYY-MM-DD")
		httpx.RespondError(w, verrs.Err())
		return
	}
	bucket, err := h.service.Aging(r.Context(), asOf, scopeOf(r))
	if err != nil {
		h.fail(w, r, "billing aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"aging": bucket, "total": bucket.Total()})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	input, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create billing", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	input, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, "update billing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete billing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "mark billing paid", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
)

const maxUploadBytes = 10 << 20

// HandlerConfig carries dashboard windows.
type HandlerConfig struct {
	TrendLookback time.Duration
	TrendWindow   time.Duration
}

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	cfg       HandlerConfig
	dashboard singleflight.Group
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, cfg HandlerConfig) *Handler {
	if cfg.TrendLookback <= 0 {
		cfg.TrendLookback = 30 * 24 * time.Hour
	}
	if cfg.TrendWindow <= 0 || cfg.TrendWindow > cfg.TrendLookback {
		cfg.TrendWindow = cfg.TrendLookback / 2
	}
	return &Handler{logger: logger, service: service, rbac: rbac, cfg: cfg}
}

// MountProducts registers catalog routes.
func (h *Handler) MountProducts(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermProductsView))
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermProductsEdit))
		r.Post("/", h.createProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
}

// MountTransactions registers staff workflow routes.
func (h *Handler) MountTransactions(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermTransactionsView))
		r.Get("/", h.listTransactions)
		r.Get("/next-number", h.nextNumber)
		r.Get("/{id}", h.getTransaction)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermTransactionsEdit))
		r.Post("/", h.createTransaction)
		r.Post("/import", h.importTransactions)
		r.Put("/{id}", h.editTransaction)
		r.Post("/{id}/complete", h.completeTransaction)
		r.Post("/{id}/cancel", h.cancelTransaction)
	})
}

// MountOrders registers vendor order request routes.
func (h *Handler) MountOrders(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermOrdersCreate))
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Post("/import", h.importOrders)
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

// decode only parses the body. The service validates after normalizing, so
// values such as "Inbound" are accepted.
func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		var verrs shared.ValidationErrors
		verrs.Add("", "request body is not valid JSON")
		return verrs.Err()
	}
	return nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.service.ListProducts(r.Context(), ProductFilter{
		Search:       q.Get("search"),
		LowStockOnly: q.Get("lowStock") == "true",
		Scope:        scopeOf(r),
	})
	if err != nil {
		h.fail(w, r, "list products", err)
		return
	}
	page, meta := shared.Paginate(products, atoi(q.Get("page")), atoi(q.Get("perPage")))
	httpx.JSON(w, http.StatusOK, map[string]any{"products": page, "pagination": meta})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"), scopeOf(r))
	if err != nil {
		h.fail(w, r, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := h.decode(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := h.decode(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transactionFilter(r *http.Request) (TransactionFilter, error) {
	q := r.URL.Query()
	filter := TransactionFilter{
		Status: TransactionStatus(strings.ToLower(q.Get("status"))),
		Type:   TransactionType(strings.ToLower(q.Get("type"))),
		Search: q.Get("search"),
		Scope:  scopeOf(r),
	}
	var verrs shared.ValidationErrors
	var err error
	if filter.From, err = parseDay(q.Get("from")); err != nil {
		verrs.Add("from", "must be a date formatted YYYY-MM-DD")
	}
	if filter.To, err = parseDay(q.Get("to")); err != nil {
		verrs.Add("to", "must be a date formatted YYYY-MM-DD")
	} else if !filter.To.IsZero() {
		filter.To = endOfDay(filter.To)
	}
	return filter, verrs.Err()
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := h.transactionFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list transactions", err)
		return
	}
	q := r.URL.Query()
	page, meta := shared.Paginate(views, atoi(q.Get("page")), atoi(q.Get("perPage")))
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": page, "pagination": meta})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	h.listTransactions(w, r)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "id"), scopeOf(r))
	if err != nil {
		h.fail(w, r, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.PreviewWorkflowNumber(r.Context())
	if err != nil {
		h.fail(w, r, "preview workflow number", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"workflowNumber": number})
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var input TransactionInput
	if err := h.decode(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tx, err := h.service.CreateTransaction(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input TransactionInput
	if err := h.decode(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tx, err := h.service.CreateOrder(r.Context(), input, scopeOf(r))
	if err != nil {
		h.fail(w, r, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) editTransaction(w http.ResponseWriter, r *http.Request) {
	var input EditTransactionInput
	if err := h.decode(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tx, err := h.service.EditTransaction(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, "edit transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) completeTransaction(w http.ResponseWriter, r *http.Request) {
	tx, product, err := h.service.CompleteTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "complete transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transaction": tx, "product": product})
}

func (h *Handler) cancelTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.CancelTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "cancel transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) importTransactions(w http.ResponseWriter, r *http.Request) {
	typ := TransactionType(strings.ToLower(r.URL.Query().Get("type")))
	if !typ.Valid() {
		var verrs shared.ValidationErrors
		verrs.Add("type", "must be inbound or outbound")
		httpx.RespondError(w, verrs.Err())
		return
	}
	h.runImport(w, r, ImportOptions{Type: typ, RequireReference: true, Scope: shared.AllVendors})
}

func (h *Handler) importOrders(w http.ResponseWriter, r *http.Request) {
	typ := TransactionType(strings.ToLower(r.URL.Query().Get("type")))
	if typ != "" && !typ.Valid() {
		var verrs shared.ValidationErrors
		verrs.Add("type", "must be inbound or outbound")
		httpx.RespondError(w, verrs.Err())
		return
	}
	h.runImport(w, r, ImportOptions{Type: typ, Scope: scopeOf(r)})
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, opts ImportOptions) {
	name, body, err := readUpload(w, r)
	if err != nil {
		var verrs shared.ValidationErrors
		verrs.Add("file", err.Error())
		httpx.RespondError(w, verrs.Err())
		return
	}
	var rows []ImportRow
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		rows, err = ParseTransactionXLSX(bytes.NewReader(body))
	} else {
		rows, err = ParseTransactionCSV(bytes.NewReader(body))
	}
	if err != nil {
		h.fail(w, r, "parse import", err)
		return
	}
	opts.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	created, err := h.service.ImportTransactions(r.Context(), rows, opts)
	if err != nil {
		h.fail(w, r, "import transactions", err)
		return
	}
	h.logger.InfoContext(r.Context(), "import committed",
		slog.Int("count", len(created)),
		slog.String("file", name))
	httpx.JSON(w, http.StatusCreated, map[string]any{"count": len(created), "transactions": created})
}

// readUpload accepts a multipart "file" field or a raw request body.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("upload a file in the \"file\" field")
		}
		defer file.Close()
		body, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("could not read upload")
		}
		return header.Filename, body, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("could not read upload")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil, fmt.Errorf("upload is empty")
	}
	name := "upload.csv"
	if strings.Contains(r.Header.Get("Content-Type"), "spreadsheetml") {
		name = "upload.xlsx"
	}
	return name, body, nil
}

func parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(reportDateLayout, v)
}

func atoi(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

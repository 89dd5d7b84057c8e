package inventory

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
)

// withPrincipal stands in for session authentication: the X-Test-Role and
// X-Test-Vendor headers become the request principal.
func withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Test-Role")
		if role == "" {
			next.ServeHTTP(w, r)
			return
		}
		p := shared.Principal{UserID: "u-" + role, Role: role, VendorNumber: r.Header.Get("X-Test-Vendor")}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

func newTestRouter(t *testing.T) (*testEnv, http.Handler) {
	t.Helper()
	env := newTestEnv(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), env.svc, rbac.Middleware{}, HandlerConfig{})
	r := chi.NewRouter()
	r.Use(withPrincipal)
	r.Route("/products", h.MountProducts)
	r.Route("/transactions", h.MountTransactions)
	r.Route("/orders", h.MountOrders)
	r.Route("/dashboard", h.MountDashboard)
	r.Route("/reports", h.MountReports)
	return env, r
}

func do(t *testing.T, h http.Handler, method, target, role, vendor string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	if vendor != "" {
		req.Header.Set("X-Test-Vendor", vendor)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestHandlerWorkflowLifecycle(t *testing.T) {
	env, router := newTestRouter(t)
	p := env.product(t, "A-1", 5, 1)

	rec := do(t, router, http.MethodPost, "/transactions", shared.RoleStaff, "", jsonBody(t, map[string]any{
		"type": "outbound", "productId": p.ID, "quantity": 2, "referenceNumber": "SO-1",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tx Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	require.Equal(t, "WF0324-001", tx.WorkflowNumber)

	rec = do(t, router, http.MethodGet, "/transactions/next-number", shared.RoleStaff, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "WF0324-002")

	rec = do(t, router, http.MethodPost, "/transactions/"+tx.ID+"/complete", shared.RoleStaff, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 3, env.productByID(t, p.ID).Quantity)

	rec = do(t, router, http.MethodPost, "/transactions/"+tx.ID+"/cancel", shared.RoleStaff, "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = do(t, router, http.MethodGet, "/transactions?status=completed", shared.RoleStaff, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Transactions []TransactionView `json:"transactions"`
		Pagination   shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Transactions, 1)
	require.Equal(t, "A-1", list.Transactions[0].ProductSKU)
}

func TestHandlerValidationProblem(t *testing.T) {
	_, router := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/transactions", shared.RoleStaff, "", jsonBody(t, map[string]any{
		"type": "sideways", "quantity": 0,
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.NotNil(t, problem.Errors)

	rec = do(t, router, http.MethodPost, "/transactions", shared.RoleStaff, "", strings.NewReader(`{"bogus":1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAcceptsMixedCaseType(t *testing.T) {
	env, router := newTestRouter(t)
	p := env.product(t, "A-1", 5, 1)

	rec := do(t, router, http.MethodPost, "/transactions", shared.RoleStaff, "", jsonBody(t, map[string]any{
		"type": "Inbound", "productId": p.ID, "quantity": 2,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tx Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	require.Equal(t, TransactionTypeInbound, tx.Type)
}

func TestHandlerPermissions(t *testing.T) {
	_, router := newTestRouter(t)
	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/transactions", "", "", nil).Code)
	require.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, "/transactions", shared.RoleVendor, "V001", nil).Code)
	require.Equal(t, http.StatusForbidden, do(t, router, http.MethodPost, "/products", shared.RoleVendor, "V001", jsonBody(t, map[string]any{"sku": "X", "name": "X"})).Code)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/orders", shared.RoleVendor, "V001", nil).Code)
	require.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, "/reports/inventory", shared.RoleVendor, "V001", nil).Code)
}

func TestHandlerVendorSeesOwnProductsOnly(t *testing.T) {
	env, router := newTestRouter(t)
	mine := env.product(t, "A-1", 5, 1)
	_, err := env.svc.CreateProduct(t.Context(), ProductInput{SKU: "B-2", Name: "Other", Quantity: 5, VendorNumber: "V002"})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/products", shared.RoleVendor, "V001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Products []Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Products, 1)
	require.Equal(t, mine.ID, list.Products[0].ID)

	rec = do(t, router, http.MethodPost, "/orders", shared.RoleVendor, "V002", jsonBody(t, map[string]any{
		"type": "inbound", "productId": mine.ID, "quantity": 1,
	}))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerImportMultipart(t *testing.T) {
	env, router := newTestRouter(t)
	env.product(t, "A-1", 5, 1)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "inbound.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("SKU,Quantity,Reference Number,Handler Name\nA-1,4,PO-9,Ann\nA-1,1,PO-10,Ann\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(t, router, http.MethodPost, "/transactions/import?type=inbound", shared.RoleStaff, "", bytes.NewReader(buf.Bytes()),
		"Content-Type", mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"count":2`)

	rec = do(t, router, http.MethodPost, "/transactions/import", shared.RoleStaff, "", strings.NewReader("SKU,Quantity\nA-1,1\n"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/transactions/import?type=outbound", shared.RoleStaff, "", strings.NewReader("SKU,Quantity\nA-1,99\n"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Line 2: Insufficient quantity for SKU A-1 (available: 5)")
}

func TestHandlerImportMalformedFiles(t *testing.T) {
	env, router := newTestRouter(t)
	env.product(t, "A-1", 5, 1)

	rec := do(t, router, http.MethodPost, "/transactions/import?type=inbound", shared.RoleStaff, "",
		strings.NewReader("SKU,Quantity,ReferenceNumber,HandlerName,Notes\nA-1,2,REF1,Ann,12\" carton\n"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"count":1`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "inbound.xlsx")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not a zip"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec = do(t, router, http.MethodPost, "/transactions/import?type=inbound", shared.RoleStaff, "", bytes.NewReader(buf.Bytes()),
		"Content-Type", mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "Failed to parse XLSX file")
}

func TestHandlerDashboardAndReport(t *testing.T) {
	env, router := newTestRouter(t)
	env.product(t, "A-1", 1, 2)

	rec := do(t, router, http.MethodGet, "/dashboard", shared.RoleVendor, "V001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.TotalProducts)
	require.Equal(t, 1, summary.LowStockProducts)

	rec = do(t, router, http.MethodGet, "/reports/inventory?format=csv", shared.RoleStaff, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "inventory-report-2024-03-15.csv")
	require.Contains(t, rec.Body.String(), "A-1,Item A-1,1,2,,V001,2,Low Stock")

	rec = do(t, router, http.MethodGet, "/reports/inventory?format=pdf", shared.RoleStaff, "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

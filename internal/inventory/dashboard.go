package inventory

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sevensea/warehouse/internal/platform/export"
	"github.com/sevensea/warehouse/internal/platform/httpx"
	"github.com/sevensea/warehouse/internal/shared"
)

// MountDashboard registers the dashboard summary route.
func (h *Handler) MountDashboard(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermDashboardView))
		r.Get("/", h.summary)
	})
}

// MountReports registers report downloads.
func (h *Handler) MountReports(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsView))
		r.Get("/{kind}", h.report)
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	ctx := r.Context()
	// Identical concurrent requests share one computation.
	resultChan := h.dashboard.DoChan("dashboard:"+scope.String(), func() (interface{}, error) {
		return h.service.Dashboard(context.WithoutCancel(ctx), scope, h.cfg.TrendLookback, h.cfg.TrendWindow)
	})
	select {
	case <-ctx.Done():
		return
	case res := <-resultChan:
		if res.Err != nil {
			h.fail(w, r, "dashboard summary", res.Err)
			return
		}
		httpx.JSON(w, http.StatusOK, res.Val)
	}
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var verrs shared.ValidationErrors
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		verrs.Add("format", "must be csv or xlsx")
	}
	query := ReportQuery{Kind: ReportKind(chi.URLParam(r, "kind")), Scope: scopeOf(r)}
	if query.Start, err = parseDay(q.Get("start")); err != nil {
		verrs.Add("start", "must be a date formatted YYYY-MM-DD")
	}
	if query.End, err = parseDay(q.Get("end")); err != nil {
		verrs.Add("end", "must be a date formatted YYYY-MM-DD")
	}
	if err := verrs.Err(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	table, err := h.service.Report(r.Context(), query)
	if err != nil {
		h.fail(w, r, "build report", err)
		return
	}
	body, err := export.Render(table, format)
	if err != nil {
		h.fail(w, r, "render report", err)
		return
	}
	filename := string(query.Kind) + "-report-" + h.service.now().Format(reportDateLayout) + "." + string(format)
	httpx.Attachment(w, format.ContentType(), filename, body)
}

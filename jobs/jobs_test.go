package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sevensea/warehouse/internal/inventory"
	jobmetrics "github.com/sevensea/warehouse/internal/jobs"
)

type stubBilling struct {
	asOf  time.Time
	count int
	err   error
}

func (s *stubBilling) MarkOverdue(_ context.Context, now time.Time) (int, error) {
	s.asOf = now
	return s.count, s.err
}

type stubStock struct {
	products []inventory.Product
	err      error
}

func (s stubStock) LowStock(context.Context) ([]inventory.Product, error) {
	return s.products, s.err
}

func TestOverdueSweepUsesPayloadTime(t *testing.T) {
	billing := &stubBilling{count: 2}
	job := NewOverdueSweepJob(billing, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	task, err := NewOverdueSweepTask(asOf)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, billing.asOf.Equal(asOf))
}

func TestOverdueSweepDefaultsToClock(t *testing.T) {
	billing := &stubBilling{}
	fixed := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	job := NewOverdueSweepJob(billing, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return fixed }

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskBillingOverdueSweep, nil)))
	require.True(t, billing.asOf.Equal(fixed))
}

func TestOverdueSweepPropagatesFailure(t *testing.T) {
	boom := errors.New("store down")
	job := NewOverdueSweepJob(&stubBilling{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewOverdueSweepTask(time.Time{})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)

	bad := asynq.NewTask(TaskBillingOverdueSweep, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	var unset *OverdueSweepJob
	require.Error(t, unset.Handle(context.Background(), task))
}

func TestLowStockScan(t *testing.T) {
	source := stubStock{products: []inventory.Product{
		{SKU: "B-2", Quantity: 1, MinStockLevel: 3},
		{SKU: "A-1", Quantity: 0, MinStockLevel: 0},
	}}
	job := NewLowStockScanJob(source, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewLowStockScanTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	failing := NewLowStockScanJob(stubStock{err: errors.New("nope")}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.Error(t, failing.Handle(context.Background(), task))
}

func TestTaskConstructors(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	task, err := NewOverdueSweepTask(asOf)
	require.NoError(t, err)
	require.Equal(t, TaskBillingOverdueSweep, task.Type())
	var payload OverdueSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.AsOf.Equal(asOf))

	cron, err := DefaultCron()
	require.NoError(t, err)
	require.Len(t, cron, 2)
	require.Equal(t, TaskInventoryLowStockScan, cron[1].Task.Type())
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0}`, rec.Body.String())
}

package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/hibiken/asynq"

	"github.com/sevensea/warehouse/internal/inventory"
	jobmetrics "github.com/sevensea/warehouse/internal/jobs"
)

// LowStockSource is satisfied by the inventory service.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.Product, error)
}

// LowStockScanJob publishes the number of products at or below their minimum
// level and logs each of them.
type LowStockScanJob struct {
	Inventory LowStockSource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: source, Logger: logger, Metrics: metrics}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskInventoryLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskInventoryLowStockScan))

	products, err := j.Inventory.LowStock(ctx)
	if err != nil {
		logger.Error("low stock scan", slog.Any("error", err))
		return err
	}
	sort.Slice(products, func(a, b int) bool { return products[a].SKU < products[b].SKU })
	for _, p := range products {
		logger.Warn("product low on stock",
			slog.String("sku", p.SKU),
			slog.String("vendor_number", p.VendorNumber),
			slog.Int("quantity", p.Quantity),
			slog.Int("min_stock_level", p.MinStockLevel))
	}
	metrics.SetLowStock(len(products))
	logger.Info("completed low stock scan", slog.Int("products", len(products)))
	return nil
}

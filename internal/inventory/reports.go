package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sevensea/warehouse/internal/platform/export"
	"github.com/sevensea/warehouse/internal/shared"
)

// ReportKind names an inventory report.
type ReportKind string

const (
	ReportStorage      ReportKind = "storage"
	ReportInventory    ReportKind = "inventory"
	ReportTransactions ReportKind = "transactions"
)

// ReportQuery selects the rows of a report. Start and End bound the
// transaction report by creation date; End covers its whole day.
type ReportQuery struct {
	Kind  ReportKind
	Start time.Time
	End   time.Time
	Scope shared.VendorScope
}

const reportDateLayout = "2006-01-02"

// StorageReport lists each product's quantity and volume on the report date.
func StorageReport(products []Product, date time.Time) export.Table {
	t := export.Table{Sheet: "Storage", Headers: []string{"Date", "SKU", "Name", "Quantity", "CBM"}}
	day := date.Format(reportDateLayout)
	for _, p := range products {
		t.Rows = append(t.Rows, []string{day, p.SKU, p.Name, strconv.Itoa(p.Quantity), export.FormatFloat(p.CBM)})
	}
	return t
}

// InventoryReport lists products with their stock status.
func InventoryReport(products []Product) export.Table {
	t := export.Table{Sheet: "Inventory", Headers: []string{"SKU", "Name", "Quantity", "Min Stock Level", "Location", "Vendor Number", "CBM", "Status"}}
	for _, p := range products {
		status := "Normal"
		if p.IsLowStock() {
			status = "Low Stock"
		}
		t.Rows = append(t.Rows, []string{
			p.SKU,
			p.Name,
			strconv.Itoa(p.Quantity),
			strconv.Itoa(p.MinStockLevel),
			p.Location,
			p.VendorNumber,
			export.FormatFloat(p.CBM),
			status,
		})
	}
	return t
}

// TransactionReport lists workflows created between start and the end of end's day.
func TransactionReport(txs []Transaction, products []Product, start, end time.Time) export.Table {
	t := export.Table{Sheet: "Transactions", Headers: []string{"Date", "Type", "SKU", "Product Name", "Quantity", "Reference Number", "Handler", "Status"}}
	byID := indexProducts(products)
	endOfDay := endOfDay(end)
	// Casers keep state, so each report gets its own.
	titleCaser := cases.Title(language.English)
	for _, tx := range txs {
		if (!start.IsZero() && tx.CreatedAt.Before(start)) || (!end.IsZero() && tx.CreatedAt.After(endOfDay)) {
			continue
		}
		sku, name := "N/A", "Unknown Product"
		if p, ok := byID[tx.ProductID]; ok {
			sku, name = p.SKU, p.Name
		}
		t.Rows = append(t.Rows, []string{
			tx.CreatedAt.Format(reportDateLayout),
			titleCaser.String(string(tx.Type)),
			sku,
			name,
			strconv.Itoa(tx.Quantity),
			tx.ReferenceNumber,
			tx.HandlerName,
			titleCaser.String(string(tx.Status)),
		})
	}
	return t
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Report builds the requested inventory report from current state.
func (s *Service) Report(ctx context.Context, q ReportQuery) (export.Table, error) {
	products, txs, err := s.repo.Snapshot(ctx)
	if err != nil {
		return export.Table{}, err
	}
	if !q.Scope.Unrestricted() {
		products, txs = scopeDocument(products, txs, q.Scope)
	}
	switch q.Kind {
	case ReportStorage:
		return StorageReport(products, s.now()), nil
	case ReportInventory:
		return InventoryReport(products), nil
	case ReportTransactions:
		if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
			var verrs shared.ValidationErrors
			verrs.Add("end", "must not be before start")
			return export.Table{}, verrs.Err()
		}
		return TransactionReport(txs, products, q.Start, q.End), nil
	default:
		return export.Table{}, fmt.Errorf("inventory: unknown report %q: %w", q.Kind, shared.ErrNotFound)
	}
}

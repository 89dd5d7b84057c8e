package inventory

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sevensea/warehouse/internal/platform/docstore"
	"github.com/sevensea/warehouse/internal/platform/export"
	"github.com/sevensea/warehouse/internal/shared"
)

func TestParseTransactionCSV(t *testing.T) {
	input := "SKU, Quantity ,Reference Number,HandlerName,Notes\n" +
		"a-1,5,PO-1,Ann,first\n" +
		"\n" +
		"B-2,3,PO-2\n" +
		",,,,\n" +
		"C-3,\"7\",PO-3,Bob,\"fragile, upright\"\n"
	rows, err := ParseTransactionCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, ImportRow{Line: 2, SKU: "a-1", Quantity: "5", ReferenceNumber: "PO-1", HandlerName: "Ann", Notes: "first"}, rows[0])
	require.Equal(t, 4, rows[1].Line)
	require.Equal(t, "", rows[1].HandlerName, "short rows are padded")
	require.Equal(t, 6, rows[2].Line)
	require.Equal(t, "fragile, upright", rows[2].Notes)
}

func TestParseTransactionCSVRequiresHeaders(t *testing.T) {
	_, err := ParseTransactionCSV(strings.NewReader("Name,Notes\nx,y\n"))
	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	require.Len(t, importErr.Lines, 2)

	_, err = ParseTransactionCSV(strings.NewReader(""))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestParseTransactionCSVStrayQuote(t *testing.T) {
	rows, err := ParseTransactionCSV(strings.NewReader("SKU,Quantity,ReferenceNumber,HandlerName,Notes\nA-1,2,REF1,Ann,12\" carton\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, `12" carton`, rows[0].Notes)
}

func TestCSVImportErrorReportsLine(t *testing.T) {
	err := csvImportError(&csv.ParseError{StartLine: 3, Line: 3, Column: 5, Err: csv.ErrBareQuote})
	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, importErr.Lines, 1)
	require.True(t, strings.HasPrefix(importErr.Lines[0], "Line 3: "), importErr.Lines[0])

	err = csvImportError(errors.New("disk gone"))
	require.False(t, errors.As(err, &importErr))
	require.NotErrorIs(t, err, shared.ErrValidation)
}

func TestParseTransactionXLSXRejectsNonWorkbook(t *testing.T) {
	_, err := ParseTransactionXLSX(strings.NewReader("not a zip"))
	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, importErr.Lines[0], "Failed to parse XLSX file")
}

func TestParseTransactionXLSX(t *testing.T) {
	body, err := export.Render(export.Table{
		Headers: []string{"SKU", "Type", "Quantity", "Notes"},
		Rows:    [][]string{{"A-1", "inbound", "2", ""}, {"B-2", "Outbound", "1", "rush"}},
	}, export.FormatXLSX)
	require.NoError(t, err)

	rows, err := ParseTransactionXLSX(bytes.NewReader(body))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, ImportRow{Line: 2, SKU: "A-1", Type: "inbound", Quantity: "2"}, rows[0])
	require.Equal(t, "Outbound", rows[1].Type)
	require.Equal(t, 3, rows[1].Line)
}

func catalog() []Product {
	return []Product{
		{ID: "p1", SKU: "A-1", Quantity: 10, VendorNumber: "V001"},
		{ID: "p2", SKU: "B-2", Quantity: 2, VendorNumber: "V002"},
	}
}

func TestValidateImportCollectsEveryError(t *testing.T) {
	rows := []ImportRow{
		{Line: 2, SKU: "a-1", Quantity: "4", ReferenceNumber: "R", HandlerName: "H"},
		{Line: 3, SKU: "missing", Quantity: "1", ReferenceNumber: "R", HandlerName: "H"},
		{Line: 4, SKU: "B-2", Quantity: "5", ReferenceNumber: "R", HandlerName: "H"},
		{Line: 5, SKU: "A-1", Quantity: "-1"},
	}
	_, err := ValidateImport(rows, catalog(), ImportOptions{Type: TransactionTypeOutbound, RequireReference: true, Scope: shared.AllVendors})
	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	require.Equal(t, []string{
		"Line 3: SKU missing not found in inventory",
		"Line 4: Insufficient quantity for SKU B-2 (available: 2)",
		"Line 5: Quantity must be greater than 0",
		"Line 5: Reference Number is required",
		"Line 5: Handler Name is required",
	}, importErr.Lines)
}

func TestValidateImportPerRowType(t *testing.T) {
	rows := []ImportRow{
		{Line: 2, SKU: "A-1", Type: "Inbound", Quantity: "1"},
		{Line: 3, SKU: "A-1", Type: "", Quantity: "1"},
		{Line: 4, SKU: "A-1", Type: "transfer", Quantity: "1"},
	}
	_, err := ValidateImport(rows, catalog(), ImportOptions{Scope: shared.AllVendors})
	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	require.Equal(t, []string{
		"Line 3: Type must be inbound or outbound",
		"Line 4: Type must be inbound or outbound",
	}, importErr.Lines)

	inputs, err := ValidateImport(rows[:1], catalog(), ImportOptions{Scope: shared.AllVendors})
	require.NoError(t, err)
	require.Equal(t, TransactionTypeInbound, inputs[0].Type)
	require.Equal(t, "p1", inputs[0].ProductID)

	_, err = ValidateImport(rows[:1], catalog(), ImportOptions{Type: TransactionTypeOutbound, Scope: shared.AllVendors})
	require.ErrorContains(t, err, "conflicts with import type outbound")
}

func TestValidateImportHidesProductsOutsideScope(t *testing.T) {
	rows := []ImportRow{{Line: 2, SKU: "B-2", Type: "inbound", Quantity: "1"}}
	_, err := ValidateImport(rows, catalog(), ImportOptions{Scope: shared.VendorScope{"V001"}})
	require.ErrorContains(t, err, "Line 2: SKU B-2 not found in inventory")
}

func TestValidateImportEmpty(t *testing.T) {
	_, err := ValidateImport(nil, catalog(), ImportOptions{Scope: shared.AllVendors})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestImportTransactionsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "A-1", 10, 1)
	env.product(t, "B-2", 1, 1)

	rows := []ImportRow{
		{Line: 2, SKU: "A-1", Quantity: "3", ReferenceNumber: "R1", HandlerName: "H"},
		{Line: 3, SKU: "B-2", Quantity: "9", ReferenceNumber: "R2", HandlerName: "H"},
	}
	_, err := env.svc.ImportTransactions(ctx, rows, ImportOptions{Type: TransactionTypeOutbound, RequireReference: true, Scope: shared.AllVendors})
	require.ErrorIs(t, err, shared.ErrValidation)

	views, err := env.svc.ListTransactions(ctx, TransactionFilter{Scope: shared.AllVendors})
	require.NoError(t, err)
	require.Empty(t, views)
	require.Equal(t, 2, env.metrics.imports["rejected"])
}

func TestImportTransactionsNumbersInRowOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "A-1", 10, 1)
	_, err := env.svc.CreateTransaction(ctx, TransactionInput{Type: TransactionTypeInbound, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	rows := []ImportRow{
		{Line: 2, SKU: "A-1", Quantity: "1", ReferenceNumber: "R1", HandlerName: "H", Notes: "first"},
		{Line: 3, SKU: "a-1", Quantity: "2", ReferenceNumber: "R2", HandlerName: "H", Notes: "second"},
		{Line: 4, SKU: "A-1", Quantity: "3", ReferenceNumber: "R3", HandlerName: "H", Notes: "third"},
	}
	created, err := env.svc.ImportTransactions(ctx, rows, ImportOptions{Type: TransactionTypeInbound, RequireReference: true, Scope: shared.AllVendors})
	require.NoError(t, err)
	require.Len(t, created, 3)
	require.Equal(t, []string{"WF0324-002", "WF0324-003", "WF0324-004"},
		[]string{created[0].WorkflowNumber, created[1].WorkflowNumber, created[2].WorkflowNumber})
	require.Equal(t, "first", created[0].Notes)
	for _, tx := range created {
		require.Equal(t, StatusPending, tx.Status)
	}
	require.Equal(t, 10, env.productByID(t, p.ID).Quantity)
}

func TestImportTransactionsRejectsReplayedKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: march2024()}
	svc := NewService(NewRepository(docstore.NewMemoryStore()), nil, shared.NewIdempotencyStore(client, time.Hour), ServiceConfig{Now: clock.Now})
	ctx := context.Background()
	_, err := svc.CreateProduct(ctx, ProductInput{SKU: "A-1", Name: "A", Quantity: 1})
	require.NoError(t, err)

	bad := []ImportRow{{Line: 2, SKU: "nope", Quantity: "1"}}
	_, err = svc.ImportTransactions(ctx, bad, ImportOptions{Type: TransactionTypeInbound, Scope: shared.AllVendors, IdempotencyKey: "k1"})
	require.ErrorIs(t, err, shared.ErrValidation)

	good := []ImportRow{{Line: 2, SKU: "A-1", Quantity: "1"}}
	_, err = svc.ImportTransactions(ctx, good, ImportOptions{Type: TransactionTypeInbound, Scope: shared.AllVendors, IdempotencyKey: "k1"})
	require.NoError(t, err, "a rejected batch releases its key")

	_, err = svc.ImportTransactions(ctx, good, ImportOptions{Type: TransactionTypeInbound, Scope: shared.AllVendors, IdempotencyKey: "k1"})
	require.ErrorIs(t, err, ErrDuplicateImport)

	views, err := svc.ListTransactions(ctx, TransactionFilter{Scope: shared.AllVendors})
	require.NoError(t, err)
	require.Len(t, views, 1)
}

package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sevensea/warehouse/internal/platform/export"
	"github.com/sevensea/warehouse/internal/shared"
)

// ImportRow is one data line of an import file, before validation.
type ImportRow struct {
	Line            int
	SKU             string
	Type            string
	Quantity        string
	ReferenceNumber string
	HandlerName     string
	Notes           string
}

// ImportOptions controls how rows become workflows.
type ImportOptions struct {
	// Type applies to every row. When empty each row must carry a Type column.
	Type TransactionType
	// RequireReference demands ReferenceNumber and HandlerName on every row.
	RequireReference bool
	// Scope limits which products rows may reference.
	Scope shared.VendorScope
	// IdempotencyKey rejects a replay of the same upload when set.
	IdempotencyKey string
}

// ImportError rejects a whole batch and lists every offending line.
type ImportError struct {
	Lines []string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("inventory: import rejected with %d error(s): %s", len(e.Lines), strings.Join(e.Lines, "; "))
}

// Is lets errors.Is(err, shared.ErrValidation) match.
func (e *ImportError) Is(target error) bool {
	return target == shared.ErrValidation
}

// ErrorDetails exposes the per-line messages to problem responses.
func (e *ImportError) ErrorDetails() any {
	return e.Lines
}

type column int

const (
	colUnknown column = iota
	colSKU
	colType
	colQuantity
	colReference
	colHandler
	colNotes
)

func headerColumn(h string) column {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	switch h {
	case "sku":
		return colSKU
	case "type":
		return colType
	case "quantity":
		return colQuantity
	case "referencenumber", "reference number":
		return colReference
	case "handlername", "handler name":
		return colHandler
	case "notes":
		return colNotes
	default:
		return colUnknown
	}
}

// ParseTransactionCSV reads a header row followed by data rows. Header names
// are matched case-insensitively, blank lines are skipped, and short rows are
// padded with empty values.
func ParseTransactionCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ImportError{Lines: []string{"File is empty"}}
		}
		return nil, csvImportError(err)
	}
	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []ImportRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvImportError(err)
		}
		line, _ := reader.FieldPos(0)
		if row, ok := buildRow(columns, record, line); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// csvImportError turns a malformed file into a rejected batch. Errors that are
// not about the file contents pass through.
func csvImportError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ImportError{Lines: []string{fmt.Sprintf("Line %d: %v", perr.StartLine, perr.Err)}}
	}
	return fmt.Errorf("inventory: read csv: %w", err)
}

// ParseTransactionXLSX reads the active sheet of a workbook with the same
// header rules as ParseTransactionCSV. Line numbers are sheet row numbers.
func ParseTransactionXLSX(r io.Reader) ([]ImportRow, error) {
	records, err := export.ReadXLSXRows(r)
	if err != nil {
		return nil, &ImportError{Lines: []string{"Failed to parse XLSX file: " + err.Error()}}
	}
	if len(records) == 0 {
		return nil, &ImportError{Lines: []string{"File is empty"}}
	}
	columns, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}
	var rows []ImportRow
	for i, record := range records[1:] {
		if row, ok := buildRow(columns, record, i+2); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func mapHeader(header []string) ([]column, error) {
	columns := make([]column, len(header))
	seen := make(map[column]bool)
	for i, h := range header {
		columns[i] = headerColumn(h)
		seen[columns[i]] = true
	}
	var missing []string
	if !seen[colSKU] {
		missing = append(missing, "Header is missing the SKU column")
	}
	if !seen[colQuantity] {
		missing = append(missing, "Header is missing the Quantity column")
	}
	if len(missing) > 0 {
		return nil, &ImportError{Lines: missing}
	}
	return columns, nil
}

func buildRow(columns []column, record []string, line int) (ImportRow, bool) {
	row := ImportRow{Line: line}
	blank := true
	for i, col := range columns {
		value := ""
		if i < len(record) {
			value = strings.TrimSpace(record[i])
		}
		if value != "" {
			blank = false
		}
		switch col {
		case colSKU:
			row.SKU = value
		case colType:
			row.Type = value
		case colQuantity:
			row.Quantity = value
		case colReference:
			row.ReferenceNumber = value
		case colHandler:
			row.HandlerName = value
		case colNotes:
			row.Notes = value
		}
	}
	return row, !blank
}

// ValidateImport checks every row against products and returns one
// TransactionInput per row, or an *ImportError listing every problem.
// Outbound rows are checked against current stock, not against earlier rows.
func ValidateImport(rows []ImportRow, products []Product, opts ImportOptions) ([]TransactionInput, error) {
	if len(rows) == 0 {
		return nil, &ImportError{Lines: []string{"File contains no data rows"}}
	}
	bySKU := make(map[string]Product, len(products))
	for _, p := range products {
		bySKU[strings.ToLower(strings.TrimSpace(p.SKU))] = p
	}

	var problems []string
	addf := func(line int, format string, args ...any) {
		problems = append(problems, fmt.Sprintf("Line %d: ", line)+fmt.Sprintf(format, args...))
	}

	inputs := make([]TransactionInput, 0, len(rows))
	for _, row := range rows {
		product, found := bySKU[strings.ToLower(row.SKU)]
		if found && !opts.Scope.Allows(product.VendorNumber) {
			found = false
		}
		switch {
		case row.SKU == "":
			addf(row.Line, "SKU is required")
		case !found:
			addf(row.Line, "SKU %s not found in inventory", row.SKU)
		}

		quantity, err := strconv.Atoi(row.Quantity)
		if err != nil || quantity <= 0 {
			addf(row.Line, "Quantity must be greater than 0")
			quantity = 0
		}

		typ := opts.Type
		rowType := TransactionType(strings.ToLower(row.Type))
		switch {
		case typ == "" && !rowType.Valid():
			addf(row.Line, "Type must be inbound or outbound")
		case typ == "":
			typ = rowType
		case row.Type != "" && rowType != typ:
			addf(row.Line, "Type %s conflicts with import type %s", row.Type, typ)
		}

		if opts.RequireReference {
			if row.ReferenceNumber == "" {
				addf(row.Line, "Reference Number is required")
			}
			if row.HandlerName == "" {
				addf(row.Line, "Handler Name is required")
			}
		}

		if found && typ == TransactionTypeOutbound && quantity > 0 && product.Quantity < quantity {
			addf(row.Line, "Insufficient quantity for SKU %s (available: %d)", product.SKU, product.Quantity)
		}

		inputs = append(inputs, TransactionInput{
			Type:            typ,
			ProductID:       product.ID,
			Quantity:        quantity,
			ReferenceNumber: row.ReferenceNumber,
			HandlerName:     row.HandlerName,
			Notes:           row.Notes,
		})
	}
	if len(problems) > 0 {
		return nil, &ImportError{Lines: problems}
	}
	return inputs, nil
}

// ImportTransactions validates rows against the current catalog and commits
// them as pending workflows in one write, numbered in row order. Any problem
// rejects the batch and nothing is saved.
func (s *Service) ImportTransactions(ctx context.Context, rows []ImportRow, opts ImportOptions) ([]Transaction, error) {
	if opts.Type != "" && !opts.Type.Valid() {
		var verrs shared.ValidationErrors
		verrs.Add("type", "must be inbound or outbound")
		return nil, verrs.Err()
	}
	claimed := false
	if opts.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, opts.IdempotencyKey, "inventory.import"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrDuplicateImport
			}
			return nil, err
		}
		claimed = true
	}

	var created []Transaction
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		inputs, err := ValidateImport(rows, tx.Products(), opts)
		if err != nil {
			return err
		}
		now := s.now()
		alloc := newAllocator(tx.Transactions(), now)
		actor := actorID(ctx)
		created = make([]Transaction, 0, len(inputs))
		for _, in := range inputs {
			t := Transaction{
				ID:              uuid.NewString(),
				Type:            in.Type,
				ProductID:       in.ProductID,
				Quantity:        in.Quantity,
				Status:          StatusPending,
				WorkflowNumber:  alloc.next(),
				ReferenceNumber: in.ReferenceNumber,
				HandlerName:     in.HandlerName,
				Notes:           in.Notes,
				CreatedBy:       actor,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			tx.PutTransaction(t)
			created = append(created, t)
		}
		return nil
	})
	if err != nil {
		if claimed {
			if delErr := s.idempotency.Delete(ctx, opts.IdempotencyKey, "inventory.import"); delErr != nil {
				s.logger.WarnContext(ctx, "release idempotency key", slog.Any("error", delErr))
			}
		}
		if s.metrics != nil {
			s.metrics.RecordImport("rejected", len(rows))
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordImport("committed", len(created))
	}
	s.record(ctx, "inventory:workflow.import", "transaction", created[0].WorkflowNumber, map[string]any{
		"count": len(created),
		"first": created[0].WorkflowNumber,
		"last":  created[len(created)-1].WorkflowNumber,
	})
	return created, nil
}

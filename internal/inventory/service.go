package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sevensea/warehouse/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Snapshot(ctx context.Context) ([]Product, []Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsRecorder receives workflow counters.
type MetricsRecorder interface {
	RecordWorkflow(action, kind string)
	RecordImport(outcome string, rows int)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	// Locker serialises allocation across processes sharing the store.
	Locker  *shared.Locker
	Metrics MetricsRecorder
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service coordinates catalog and workflow operations. Every mutation runs
// load → validate → mutate → save under one mutex, so workflow numbers are
// allocated from a set that already contains every earlier workflow.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	locker      *shared.Locker
	metrics     MetricsRecorder
	logger      *slog.Logger
	now         func() time.Time
	validator   *validator.Validate

	mu sync.Mutex
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		locker:      cfg.Locker,
		metrics:     cfg.Metrics,
		logger:      logger,
		now:         now,
		validator:   shared.NewValidator(),
	}
}

func (s *Service) mutate(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locker.WithLock(ctx, shared.WorkflowLockKey, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, fn)
	})
}

// CreateProduct adds a catalog entry with a unique SKU.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	input = normalizeProductInput(input)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return Product{}, err
	}
	var created Product
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, exists := tx.ProductBySKU(input.SKU); exists {
			return ErrDuplicateSKU
		}
		now := s.now()
		created = Product{
			ID:            uuid.NewString(),
			SKU:           input.SKU,
			Name:          input.Name,
			Description:   input.Description,
			MinStockLevel: input.MinStockLevel,
			UnitCBM:       input.UnitCBM,
			Location:      input.Location,
			VendorNumber:  input.VendorNumber,
			CreatedAt:     now,
		}.withQuantity(input.Quantity, now)
		tx.PutProduct(created)
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "inventory:product.create", "product", created.ID, map[string]any{"sku": created.SKU})
	return created, nil
}

// UpdateProduct overwrites the writable fields of a product. A quantity
// overwrite recomputes CBM like every other quantity change.
func (s *Service) UpdateProduct(ctx context.Context, id string, input ProductInput) (Product, error) {
	input = normalizeProductInput(input)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return Product{}, err
	}
	var updated Product
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		current, ok := tx.ProductByID(id)
		if !ok {
			return ErrProductNotFound
		}
		if other, exists := tx.ProductBySKU(input.SKU); exists && other.ID != id {
			return ErrDuplicateSKU
		}
		current.SKU = input.SKU
		current.Name = input.Name
		current.Description = input.Description
		current.MinStockLevel = input.MinStockLevel
		current.UnitCBM = input.UnitCBM
		current.Location = input.Location
		current.VendorNumber = input.VendorNumber
		updated = current.withQuantity(input.Quantity, s.now())
		tx.PutProduct(updated)
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "inventory:product.update", "product", updated.ID, map[string]any{"sku": updated.SKU, "quantity": updated.Quantity})
	return updated, nil
}

// DeleteProduct removes a product. Workflows referencing it are kept.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		if !tx.DeleteProduct(id) {
			return ErrProductNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "inventory:product.delete", "product", id, nil)
	return nil
}

// GetProduct returns one product when visible in scope.
func (s *Service) GetProduct(ctx context.Context, id string, scope shared.VendorScope) (Product, error) {
	products, _, err := s.repo.Snapshot(ctx)
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.ID == id && scope.Allows(p.VendorNumber) {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

// ListProducts returns products matching filter ordered by SKU.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	products, _, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !filter.Scope.Allows(p.VendorNumber) {
			continue
		}
		if filter.LowStockOnly && !p.IsLowStock() {
			continue
		}
		if search != "" && !containsAny(search, p.SKU, p.Name, p.Location, p.VendorNumber) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].SKU) < strings.ToLower(out[j].SKU) })
	return out, nil
}

// CreateTransaction opens a pending workflow with a freshly allocated number.
// Outbound workflows larger than current stock are rejected before anything
// is persisted.
func (s *Service) CreateTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	return s.createTransaction(ctx, input, shared.AllVendors)
}

// PreviewWorkflowNumber reports the number the next workflow would receive.
// It is advisory; the number is only reserved by CreateTransaction.
func (s *Service) PreviewWorkflowNumber(ctx context.Context) (string, error) {
	_, txs, err := s.repo.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return NextWorkflowNumber(txs, s.now()), nil
}

// CreateOrder opens a workflow on behalf of a vendor, limited to products in scope.
func (s *Service) CreateOrder(ctx context.Context, input TransactionInput, scope shared.VendorScope) (Transaction, error) {
	return s.createTransaction(ctx, input, scope)
}

func (s *Service) createTransaction(ctx context.Context, input TransactionInput, scope shared.VendorScope) (Transaction, error) {
	input = normalizeTransactionInput(input)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return Transaction{}, err
	}
	var created Transaction
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		product, ok := tx.ProductByID(input.ProductID)
		if !ok || !scope.Allows(product.VendorNumber) {
			return ErrProductNotFound
		}
		if input.Type == TransactionTypeOutbound && product.Quantity < input.Quantity {
			return fmt.Errorf("%w: available %d, requested %d", ErrInsufficientStock, product.Quantity, input.Quantity)
		}
		now := s.now()
		created = Transaction{
			ID:              uuid.NewString(),
			Type:            input.Type,
			ProductID:       product.ID,
			Quantity:        input.Quantity,
			Status:          StatusPending,
			WorkflowNumber:  NextWorkflowNumber(tx.Transactions(), now),
			ReferenceNumber: input.ReferenceNumber,
			HandlerName:     input.HandlerName,
			Notes:           input.Notes,
			CreatedBy:       actorID(ctx),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		tx.PutTransaction(created)
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe("create", created.Type)
	s.record(ctx, "inventory:workflow.create", "transaction", created.ID, map[string]any{
		"workflow_number": created.WorkflowNumber,
		"type":            string(created.Type),
		"quantity":        created.Quantity,
	})
	return created, nil
}

// EditTransaction changes a pending workflow. The workflow number, type and
// creation time never change, and outbound stock is not re-checked.
func (s *Service) EditTransaction(ctx context.Context, id string, input EditTransactionInput) (Transaction, error) {
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.ReferenceNumber = strings.TrimSpace(input.ReferenceNumber)
	input.HandlerName = strings.TrimSpace(input.HandlerName)
	input.Notes = strings.TrimSpace(input.Notes)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return Transaction{}, err
	}
	var edited Transaction
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		current, ok := tx.TransactionByID(id)
		if !ok {
			return ErrTransactionNotFound
		}
		if !current.IsPending() {
			return ErrNotPending
		}
		if _, ok := tx.ProductByID(input.ProductID); !ok {
			return ErrProductNotFound
		}
		current.ProductID = input.ProductID
		current.Quantity = input.Quantity
		current.ReferenceNumber = strings.TrimSpace(input.ReferenceNumber)
		current.HandlerName = strings.TrimSpace(input.HandlerName)
		current.Notes = strings.TrimSpace(input.Notes)
		current.UpdatedAt = s.now()
		edited = current
		tx.PutTransaction(edited)
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe("edit", edited.Type)
	s.record(ctx, "inventory:workflow.edit", "transaction", edited.ID, map[string]any{"quantity": edited.Quantity})
	return edited, nil
}

// CompleteTransaction applies a pending workflow to its product and marks it
// completed; both changes are saved in one write. A workflow whose product
// was deleted stays pending and ErrProductNotFound is returned.
func (s *Service) CompleteTransaction(ctx context.Context, id string) (Transaction, Product, error) {
	var (
		completed Transaction
		product   Product
	)
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		current, ok := tx.TransactionByID(id)
		if !ok {
			return ErrTransactionNotFound
		}
		if !current.IsPending() {
			return ErrNotPending
		}
		target, ok := tx.ProductByID(current.ProductID)
		if !ok {
			return fmt.Errorf("complete %s: %w", current.WorkflowNumber, ErrProductNotFound)
		}
		now := s.now()
		updated, err := ApplyCompletion(target, current, now)
		if err != nil {
			return err
		}
		current.Status = StatusCompleted
		current.UpdatedAt = now
		tx.PutProduct(updated)
		tx.PutTransaction(current)
		completed, product = current, updated
		return nil
	})
	if err != nil {
		return Transaction{}, Product{}, err
	}
	if product.Quantity < 0 {
		s.logger.WarnContext(ctx, "outbound completion left negative stock",
			slog.String("workflow", completed.WorkflowNumber),
			slog.String("sku", product.SKU),
			slog.Int("quantity", product.Quantity))
	}
	s.observe("complete", completed.Type)
	s.record(ctx, "inventory:workflow.complete", "transaction", completed.ID, map[string]any{
		"workflow_number": completed.WorkflowNumber,
		"product_id":      product.ID,
		"quantity":        product.Quantity,
	})
	return completed, product, nil
}

// CancelTransaction closes a pending workflow without touching stock.
func (s *Service) CancelTransaction(ctx context.Context, id string) (Transaction, error) {
	var cancelled Transaction
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository) error {
		current, ok := tx.TransactionByID(id)
		if !ok {
			return ErrTransactionNotFound
		}
		if !current.IsPending() {
			return ErrNotPending
		}
		current.Status = StatusCancelled
		current.UpdatedAt = s.now()
		cancelled = current
		tx.PutTransaction(cancelled)
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe("cancel", cancelled.Type)
	s.record(ctx, "inventory:workflow.cancel", "transaction", cancelled.ID, map[string]any{"workflow_number": cancelled.WorkflowNumber})
	return cancelled, nil
}

// GetTransaction returns one workflow when its product is visible in scope.
func (s *Service) GetTransaction(ctx context.Context, id string, scope shared.VendorScope) (TransactionView, error) {
	views, err := s.ListTransactions(ctx, TransactionFilter{Scope: scope})
	if err != nil {
		return TransactionView{}, err
	}
	for _, v := range views {
		if v.ID == id {
			return v, nil
		}
	}
	return TransactionView{}, ErrTransactionNotFound
}

// ListTransactions returns workflows matching filter, newest first.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]TransactionView, error) {
	products, txs, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	byID := indexProducts(products)
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		view := viewOf(tx, byID)
		if !filter.Scope.Unrestricted() && !(view.VendorNumber != "" && filter.Scope.Allows(view.VendorNumber)) {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && tx.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && tx.CreatedAt.After(filter.To) {
			continue
		}
		if search != "" && !containsAny(search, view.ProductSKU, view.ProductName, tx.WorkflowNumber, view.VendorNumber, tx.ReferenceNumber) {
			continue
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Dashboard summarises stock and workflow trends visible in scope.
func (s *Service) Dashboard(ctx context.Context, scope shared.VendorScope, lookback, window time.Duration) (Summary, error) {
	products, txs, err := s.repo.Snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	if !scope.Unrestricted() {
		products, txs = scopeDocument(products, txs, scope)
	}
	return Summarize(products, txs, s.now(), lookback, window), nil
}

// LowStock lists every product at or below its minimum level.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.ListProducts(ctx, ProductFilter{LowStockOnly: true, Scope: shared.AllVendors})
}

func (s *Service) observe(action string, typ TransactionType) {
	if s.metrics != nil {
		s.metrics.RecordWorkflow(action, string(typ))
	}
}

func (s *Service) record(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func actorID(ctx context.Context) string {
	if p, ok := shared.PrincipalFromContext(ctx); ok {
		return p.UserID
	}
	return ""
}

func indexProducts(products []Product) map[string]Product {
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID
}

func viewOf(tx Transaction, byID map[string]Product) TransactionView {
	view := TransactionView{Transaction: tx}
	if p, ok := byID[tx.ProductID]; ok {
		view.ProductSKU = p.SKU
		view.ProductName = p.Name
		view.VendorNumber = p.VendorNumber
	}
	return view
}

func scopeDocument(products []Product, txs []Transaction, scope shared.VendorScope) ([]Product, []Transaction) {
	visible := make(map[string]struct{})
	scoped := make([]Product, 0, len(products))
	for _, p := range products {
		if scope.Allows(p.VendorNumber) {
			scoped = append(scoped, p)
			visible[p.ID] = struct{}{}
		}
	}
	scopedTxs := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if _, ok := visible[tx.ProductID]; ok {
			scopedTxs = append(scopedTxs, tx)
		}
	}
	return scoped, scopedTxs
}

func containsAny(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func normalizeProductInput(in ProductInput) ProductInput {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.VendorNumber = strings.TrimSpace(in.VendorNumber)
	return in
}

func normalizeTransactionInput(in TransactionInput) TransactionInput {
	in.Type = TransactionType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.ReferenceNumber = strings.TrimSpace(in.ReferenceNumber)
	in.HandlerName = strings.TrimSpace(in.HandlerName)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

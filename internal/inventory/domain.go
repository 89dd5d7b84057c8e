package inventory

import (
	"errors"
	"time"

	"github.com/sevensea/warehouse/internal/shared"
)

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TransactionTypeInbound adds stock on completion.
	TransactionTypeInbound TransactionType = "inbound"
	// TransactionTypeOutbound removes stock on completion.
	TransactionTypeOutbound TransactionType = "outbound"
)

// Valid reports whether t is a known movement type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeInbound || t == TransactionTypeOutbound
}

// TransactionStatus tracks the workflow lifecycle.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Product is a catalog entry. CBM always equals Quantity × UnitCBM at rest.
type Product struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Quantity      int       `json:"quantity"`
	MinStockLevel int       `json:"minStockLevel"`
	UnitCBM       float64   `json:"unitCbm"`
	CBM           float64   `json:"cbm"`
	Location      string    `json:"location"`
	VendorNumber  string    `json:"vendorNumber"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsLowStock reports whether quantity has fallen to the minimum level.
func (p Product) IsLowStock() bool {
	return p.Quantity <= p.MinStockLevel
}

// withQuantity is the single place quantity changes; it keeps CBM in step.
func (p Product) withQuantity(quantity int, now time.Time) Product {
	p.Quantity = quantity
	p.CBM = float64(quantity) * p.UnitCBM
	p.UpdatedAt = now
	return p
}

// Transaction is an inbound or outbound workflow.
type Transaction struct {
	ID              string            `json:"id"`
	Type            TransactionType   `json:"type"`
	ProductID       string            `json:"productId"`
	Quantity        int               `json:"quantity"`
	Status          TransactionStatus `json:"status"`
	WorkflowNumber  string            `json:"workflowNumber"`
	ReferenceNumber string            `json:"referenceNumber,omitempty"`
	HandlerName     string            `json:"handlerName,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	CreatedBy       string            `json:"createdBy,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// IsPending reports whether the workflow may still change.
func (t Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// TransactionView joins a transaction with the product fields shown in listings.
type TransactionView struct {
	Transaction
	ProductSKU   string `json:"productSku"`
	ProductName  string `json:"productName"`
	VendorNumber string `json:"vendorNumber"`
}

// ProductInput carries writable product fields.
type ProductInput struct {
	SKU           string  `json:"sku" validate:"required,max=64"`
	Name          string  `json:"name" validate:"required,max=200"`
	Description   string  `json:"description" validate:"max=2000"`
	Quantity      int     `json:"quantity" validate:"gte=0"`
	MinStockLevel int     `json:"minStockLevel" validate:"gte=0"`
	UnitCBM       float64 `json:"unitCbm" validate:"gte=0"`
	Location      string  `json:"location" validate:"max=100"`
	VendorNumber  string  `json:"vendorNumber" validate:"max=50"`
}

// TransactionInput carries the fields of a new workflow.
type TransactionInput struct {
	Type            TransactionType `json:"type" validate:"required,oneof=inbound outbound"`
	ProductID       string          `json:"productId" validate:"required"`
	Quantity        int             `json:"quantity" validate:"gt=0"`
	ReferenceNumber string          `json:"referenceNumber" validate:"max=100"`
	HandlerName     string          `json:"handlerName" validate:"max=100"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

// EditTransactionInput carries the fields editable while a workflow is pending.
type EditTransactionInput struct {
	ProductID       string `json:"productId" validate:"required"`
	Quantity        int    `json:"quantity" validate:"gt=0"`
	ReferenceNumber string `json:"referenceNumber" validate:"max=100"`
	HandlerName     string `json:"handlerName" validate:"max=100"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Search       string
	LowStockOnly bool
	Scope        shared.VendorScope
}

// TransactionFilter narrows workflow listings.
type TransactionFilter struct {
	Status TransactionStatus
	Type   TransactionType
	Search string
	From   time.Time
	To     time.Time
	Scope  shared.VendorScope
}

var (
	// ErrProductNotFound indicates an unknown product id or SKU.
	ErrProductNotFound = shared.Kinded(shared.ErrNotFound, "inventory: product not found")
	// ErrTransactionNotFound indicates an unknown workflow id.
	ErrTransactionNotFound = shared.Kinded(shared.ErrNotFound, "inventory: transaction not found")
	// ErrInsufficientStock blocks an outbound workflow larger than current stock.
	ErrInsufficientStock = shared.Kinded(shared.ErrConflict, "inventory: insufficient stock")
	// ErrNotPending blocks changes to completed or cancelled workflows.
	ErrNotPending = shared.Kinded(shared.ErrConflict, "inventory: transaction is not pending")
	// ErrDuplicateSKU indicates the SKU is already used by another product.
	ErrDuplicateSKU = shared.Kinded(shared.ErrConflict, "inventory: sku already exists")
	// ErrDuplicateImport indicates the idempotency key was already used.
	ErrDuplicateImport = shared.Kinded(shared.ErrConflict, "inventory: import already processed")
	// ErrProductMismatch is returned when a ledger entry targets another product.
	ErrProductMismatch = errors.New("inventory: transaction does not reference product")
)

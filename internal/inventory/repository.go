package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sevensea/warehouse/internal/platform/docstore"
)

// StoreName is the document holding products and transactions.
const StoreName = "inventory-storage"

// TxRepository exposes the loaded inventory document to one unit of work.
type TxRepository interface {
	Products() []Product
	Transactions() []Transaction
	ProductByID(id string) (Product, bool)
	ProductBySKU(sku string) (Product, bool)
	TransactionByID(id string) (Transaction, bool)
	PutProduct(p Product)
	DeleteProduct(id string) bool
	PutTransaction(tx Transaction)
}

type document struct {
	Products     []Product     `json:"products"`
	Transactions []Transaction `json:"transactions"`
}

// Repository persists inventory state as a single document.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// WithTx loads the document, runs fn, and saves once if fn changed anything.
// Nothing is written when fn fails.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	tx := &docTx{doc: doc}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	if err := r.store.Save(ctx, StoreName, tx.doc); err != nil {
		return fmt.Errorf("inventory: save: %w", err)
	}
	return nil
}

// Snapshot returns the current document for read-only use.
func (r *Repository) Snapshot(ctx context.Context) ([]Product, []Transaction, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return doc.Products, doc.Transactions, nil
}

func (r *Repository) load(ctx context.Context) (document, error) {
	var doc document
	if _, err := r.store.Load(ctx, StoreName, &doc); err != nil {
		return document{}, fmt.Errorf("inventory: load: %w", err)
	}
	return doc, nil
}

type docTx struct {
	doc   document
	dirty bool
}

func (t *docTx) Products() []Product { return t.doc.Products }

func (t *docTx) Transactions() []Transaction { return t.doc.Transactions }

func (t *docTx) ProductByID(id string) (Product, bool) {
	for _, p := range t.doc.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (t *docTx) ProductBySKU(sku string) (Product, bool) {
	sku = strings.TrimSpace(sku)
	for _, p := range t.doc.Products {
		if strings.EqualFold(p.SKU, sku) {
			return p, true
		}
	}
	return Product{}, false
}

func (t *docTx) TransactionByID(id string) (Transaction, bool) {
	for _, tx := range t.doc.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return Transaction{}, false
}

func (t *docTx) PutProduct(p Product) {
	t.dirty = true
	for i := range t.doc.Products {
		if t.doc.Products[i].ID == p.ID {
			t.doc.Products[i] = p
			return
		}
	}
	t.doc.Products = append(t.doc.Products, p)
}

func (t *docTx) DeleteProduct(id string) bool {
	for i := range t.doc.Products {
		if t.doc.Products[i].ID == id {
			t.doc.Products = append(t.doc.Products[:i], t.doc.Products[i+1:]...)
			t.dirty = true
			return true
		}
	}
	return false
}

func (t *docTx) PutTransaction(tx Transaction) {
	t.dirty = true
	for i := range t.doc.Transactions {
		if t.doc.Transactions[i].ID == tx.ID {
			t.doc.Transactions[i] = tx
			return
		}
	}
	t.doc.Transactions = append(t.doc.Transactions, tx)
}

package billing

import (
	"context"
	"fmt"

	"github.com/sevensea/warehouse/internal/platform/docstore"
)

// StoreName is the document holding every billing.
const StoreName = "billing-storage"

type document struct {
	Billings []Billing `json:"billings"`
}

// Repository persists billings as a single document.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// List returns every stored billing.
func (r *Repository) List(ctx context.Context) ([]Billing, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Billings, nil
}

// Update loads the billings, lets fn rewrite them and saves the result.
// fn reports whether it changed anything; nothing is written otherwise.
func (r *Repository) Update(ctx context.Context, fn func([]Billing) ([]Billing, bool, error)) error {
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	billings, changed, err := fn(doc.Billings)
	if err != nil || !changed {
		return err
	}
	doc.Billings = billings
	if err := r.store.Save(ctx, StoreName, doc); err != nil {
		return fmt.Errorf("billing: save: %w", err)
	}
	return nil
}

func (r *Repository) load(ctx context.Context) (document, error) {
	var doc document
	if _, err := r.store.Load(ctx, StoreName, &doc); err != nil {
		return document{}, fmt.Errorf("billing: load: %w", err)
	}
	return doc, nil
}

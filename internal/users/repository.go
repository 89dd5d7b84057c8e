package users

import (
	"context"
	"fmt"

	"github.com/sevensea/warehouse/internal/platform/docstore"
)

// StoreName is the document holding every account.
const StoreName = "auth-storage"

type document struct {
	Users []User `json:"users"`
}

// Repository persists accounts as a single document.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs a repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// Update loads the accounts, lets fn rewrite them and saves the result when
// fn reports a change.
func (r *Repository) Update(ctx context.Context, fn func([]User) ([]User, bool, error)) error {
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	users, changed, err := fn(doc.Users)
	if err != nil || !changed {
		return err
	}
	doc.Users = users
	if err := r.store.Save(ctx, StoreName, doc); err != nil {
		return fmt.Errorf("users: save: %w", err)
	}
	return nil
}

func (r *Repository) load(ctx context.Context) (document, error) {
	var doc document
	if _, err := r.store.Load(ctx, StoreName, &doc); err != nil {
		return document{}, fmt.Errorf("users: load: %w", err)
	}
	return doc, nil
}

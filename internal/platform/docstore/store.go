// Package docstore persists whole JSON documents keyed by a store name.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// Store loads and saves one JSON document per name.
type Store interface {
	// Load decodes the named document into dest. It reports false when the
	// document has never been saved, leaving dest untouched.
	Load(ctx context.Context, name string, dest any) (bool, error)
	// Save replaces the named document.
	Save(ctx context.Context, name string, doc any) error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// ErrUnknownDriver is returned for unsupported driver names.
var ErrUnknownDriver = errors.New("docstore: unknown driver")

func validateName(name string) error {
	if name == "" {
		return errors.New("docstore: document name required")
	}
	return nil
}

func wrap(op, name string, err error) error {
	return fmt.Errorf("docstore: %s %s: %w", op, name, err)
}

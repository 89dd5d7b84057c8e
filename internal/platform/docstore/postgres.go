package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists documents in the documents table as jsonb.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, name string, dest any) (bool, error) {
	if s == nil || s.pool == nil {
		return false, errors.New("docstore: postgres store not initialised")
	}
	if err := validateName(name); err != nil {
		return false, err
	}
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM documents WHERE name=$1`, name).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, wrap("load", name, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return false, wrap("decode", name, err)
	}
	return true, nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, name string, doc any) error {
	if s == nil || s.pool == nil {
		return errors.New("docstore: postgres store not initialised")
	}
	if err := validateName(name); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return wrap("encode", name, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO documents (name, body, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET body=EXCLUDED.body, updated_at=NOW()`, name, body)
	if err != nil {
		return wrap("save", name, err)
	}
	return nil
}

package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps documents in process memory. Documents are stored
// JSON-encoded so callers observe the same serialization as durable drivers.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

var _ Store = (*MemoryStore)(nil)

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, name string, dest any) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	raw, ok := s.docs[name]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, wrap("decode", name, err)
	}
	return true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, name string, doc any) error {
	if err := validateName(name); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return wrap("encode", name, err)
	}
	s.mu.Lock()
	s.docs[name] = raw
	s.mu.Unlock()
	return nil
}

// Raw returns the stored bytes of a document, mainly for inspection in tests.
func (s *MemoryStore) Raw(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[name]
	return raw, ok
}

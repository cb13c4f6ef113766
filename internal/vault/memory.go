package vault

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
)

// MemoryStore is a process-local store. Seed values come from the "values"
// setting; keys are sanitized the same way as on Secrets Manager.
type MemoryStore struct {
	mu        sync.RWMutex
	values    map[string]string
	sanitizer keyname.Sanitizer
	logger    *logging.Logger
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore(settings map[string]interface{}, opts Options) *MemoryStore {
	logger := opts.logger()
	m := &MemoryStore{
		values:    make(map[string]string),
		sanitizer: keyname.SecretsManager.WithLogger(logger),
		logger:    logger,
	}

	switch seed := settings["values"].(type) {
	case map[string]interface{}:
		for k, v := range seed {
			m.values[m.sanitizer.Sanitize(k)] = fmt.Sprint(v)
		}
	case map[string]string:
		for k, v := range seed {
			m.values[m.sanitizer.Sanitize(k)] = v
		}
	}
	return m
}

// Name returns the store type
func (m *MemoryStore) Name() string {
	return TypeMemory
}

// ResolveSecret returns the value held for key
func (m *MemoryStore) ResolveSecret(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[m.sanitizer.Sanitize(key)]
	return v, ok, nil
}

// StoreSecret sets key
func (m *MemoryStore) StoreSecret(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[m.sanitizer.Sanitize(key)] = value
	return nil
}

// DeleteSecret removes key
func (m *MemoryStore) DeleteSecret(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, m.sanitizer.Sanitize(key))
	return nil
}

// Keys returns the stored (sanitized) names in sorted order
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

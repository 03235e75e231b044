package store

import (
	"context"
	"sync"
)

// MemoryWatermarks is a process-local core.WatermarkStore. Values do not
// survive a restart.
type MemoryWatermarks struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryWatermarks returns an empty store.
func NewMemoryWatermarks() *MemoryWatermarks {
	return &MemoryWatermarks{values: make(map[string]string)}
}

func (m *MemoryWatermarks) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryWatermarks) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
